package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"talentmarket-engine/internal/domain"
	"talentmarket-engine/internal/mailer"
)

func newMigrateCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap(cmd.Context(), f)
			if err != nil {
				return err
			}
			a.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func newSweepCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Run one signal scan over every profile",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.store.ListProfileIDs(ctx)
			if err != nil {
				return err
			}
			res, err := a.services(ctx, nil).signals.Sweep(ctx, ids)
			if err != nil {
				return err
			}
			return printJSON(cmd, res)
		},
	}
}

func newDigestCmd(f *rootFlags) *cobra.Command {
	var bounces bool
	cmd := &cobra.Command{
		Use:   "digest",
		Short: "Send the signal digest now, then optionally reconcile bounces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			dg := a.services(ctx, nil).digest
			if dg == nil {
				return fmt.Errorf("smtp is not configured (smtp.host is empty)")
			}
			rep, err := dg.Run(ctx)
			if err != nil {
				return err
			}
			if !bounces {
				return printJSON(cmd, rep)
			}

			br, err := a.reconcileBounces(ctx)
			if err != nil {
				return fmt.Errorf("digest sent (%d), bounce reconcile failed: %w", rep.Sent, err)
			}
			return printJSON(cmd, struct {
				Digest  mailer.DigestReport `json:"digest"`
				Bounces mailer.BounceReport `json:"bounces"`
			}{rep, br})
		},
	}
	cmd.Flags().BoolVar(&bounces, "bounces", false, "reconcile the bounce mailbox after sending")
	return cmd
}

func newTokenCmd(f *rootFlags) *cobra.Command {
	tok := &cobra.Command{Use: "token", Short: "Manage API session tokens"}

	var (
		userID string
		ttl    time.Duration
	)
	issue := &cobra.Command{
		Use:   "issue",
		Short: "Issue a bearer token for a user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			token, err := a.store.CreateSession(ctx, userID, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	issue.Flags().StringVar(&userID, "user", "", "user id the token resolves to")
	issue.Flags().DurationVar(&ttl, "ttl", 30*24*time.Hour, "token lifetime")
	_ = issue.MarkFlagRequired("user")

	tok.AddCommand(issue)
	return tok
}

type seedProfile struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	FullName    string   `json:"full_name"`
	Territories []string `json:"territories"`
	DigestOptIn bool     `json:"digest_opt_in"`
}

type seedJob struct {
	Company       string    `json:"company"`
	BroadCategory string    `json:"broad_category"`
	Title         string    `json:"title"`
	Location      string    `json:"location"`
	County        string    `json:"county"`
	CreatedAt     time.Time `json:"created_at"`
}

type seedFile struct {
	Profiles []seedProfile `json:"profiles"`
	Jobs     []seedJob     `json:"jobs"`
}

func newSeedCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.json>",
		Short: "Load profiles and job posts from a JSON fixture",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			var sf seedFile
			if err := json.Unmarshal(b, &sf); err != nil {
				return fmt.Errorf("parse %s: %w", args[0], err)
			}

			ctx := cmd.Context()
			a, err := bootstrap(ctx, f)
			if err != nil {
				return err
			}
			defer a.Close()

			for _, p := range sf.Profiles {
				if err := a.store.UpsertProfile(ctx, domain.Profile{
					ID: p.ID, Email: p.Email, FullName: p.FullName,
					Territories: p.Territories, DigestOptIn: p.DigestOptIn,
				}); err != nil {
					return err
				}
			}
			jobs := make([]domain.JobPosting, 0, len(sf.Jobs))
			for _, j := range sf.Jobs {
				jobs = append(jobs, domain.JobPosting{
					Company: j.Company, BroadCategory: j.BroadCategory, Title: j.Title,
					Location: j.Location, County: j.County, CreatedAt: j.CreatedAt.UTC(),
				})
			}
			n, err := a.store.InsertJobPosts(ctx, jobs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d profiles, %d job posts\n", len(sf.Profiles), n)
			return nil
		},
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
