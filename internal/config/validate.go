package config

import (
	"fmt"
	"strings"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// Err folds the validation errors into a single error, or nil.
func (v Validation) Err() error {
	if v.OK() {
		return nil
	}
	return fmt.Errorf("config validation failed:\n- %s", strings.Join(v.Errors, "\n- "))
}

// NormalizeAndValidate returns a normalized copy and the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	out.Database.Driver = strings.ToLower(strings.TrimSpace(out.Database.Driver))
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.Intel.NewsURLTemplate = strings.TrimSpace(out.Intel.NewsURLTemplate)
	out.SMTP.Host = strings.TrimSpace(out.SMTP.Host)
	out.IMAP.Host = strings.TrimSpace(out.IMAP.Host)

	if out.App.Port <= 0 || out.App.Port > 65535 {
		res.addErr("app.port must be 1..65535")
	}

	switch out.Database.Driver {
	case "sqlite":
	case "postgres":
		if out.Database.DSN == "" {
			res.addErr("database.dsn is required when database.driver=postgres")
		}
	default:
		res.addErr("database.driver must be sqlite or postgres, got %q", out.Database.Driver)
	}
	if out.Database.MaxConns <= 0 {
		res.addErr("database.max_conns must be > 0")
	}

	switch out.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		res.addWarn("log.level %q is unknown; using info", out.Log.Level)
		out.Log.Level = "info"
	}

	if out.Analytics.SweepMinutes <= 0 {
		res.addErr("analytics.sweep_minutes must be > 0")
	} else if out.Analytics.SweepMinutes < 15 {
		res.addWarn("analytics.sweep_minutes is very low (%d); each sweep scans up to 20000 rows per user.", out.Analytics.SweepMinutes)
	}

	if out.Intel.NewsURLTemplate != "" && !strings.Contains(out.Intel.NewsURLTemplate, "%s") {
		res.addErr("intel.news_url_template must contain %%s for the company name")
	}
	if out.Intel.NewsURLTemplate == "" {
		res.addWarn("intel.news_url_template is empty; company intelligence lookups are disabled.")
	}
	if out.Intel.RequestsPerSec <= 0 {
		res.addErr("intel.requests_per_sec must be > 0")
	}
	if out.Intel.Burst <= 0 {
		res.addErr("intel.burst must be > 0")
	}
	if out.Intel.TTLHours < 0 {
		res.addErr("intel.ttl_hours must be >= 0")
	}

	if out.LLM.RequestsPerSec <= 0 {
		res.addErr("llm.requests_per_sec must be > 0")
	}
	if out.LLM.MaxPromptChars < 1000 {
		res.addErr("llm.max_prompt_chars must be >= 1000")
	}

	if out.SMTP.Host != "" {
		if out.SMTP.Port == 0 {
			res.addErr("smtp.port is required when smtp.host is set")
		}
		if strings.TrimSpace(out.SMTP.From) == "" {
			res.addErr("smtp.from is required when smtp.host is set")
		}
	} else {
		res.addWarn("smtp.host is empty; signal digests will not be sent.")
	}

	// password not required here; it may live in the keychain
	if out.IMAP.Enabled {
		if out.IMAP.Host == "" {
			res.addErr("imap.host is required when imap.enabled=true")
		}
		if out.IMAP.Port == 0 {
			res.addErr("imap.port is required when imap.enabled=true")
		}
		if strings.TrimSpace(out.IMAP.Username) == "" {
			res.addErr("imap.username is required when imap.enabled=true")
		}
		if strings.TrimSpace(out.IMAP.Mailbox) == "" {
			res.addErr("imap.mailbox is required when imap.enabled=true")
		}
	}

	if out.Digest.IntervalMinutes <= 0 {
		res.addErr("digest.interval_minutes must be > 0")
	}
	if out.Digest.Concurrency <= 0 {
		res.addErr("digest.concurrency must be > 0")
	} else if out.Digest.Concurrency > 32 {
		res.addWarn("digest.concurrency is %d; most SMTP relays throttle well below that.", out.Digest.Concurrency)
	}

	return out, res
}
