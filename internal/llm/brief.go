package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"talentmarket-engine/internal/analytics"
)

const briefPlayers = 10

// ParseError means the model answered but not with the JSON we asked for.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string { return "llm returned malformed brief: " + e.Err.Error() }
func (e *ParseError) Unwrap() error { return e.Err }

type BriefInput struct {
	Window    string
	Category  string
	Location  string
	Players   []analytics.Player
	Headlines map[string][]string // by player name
}

type Brief struct {
	Summary    string   `json:"summary"`
	Highlights []string `json:"highlights"`
	Watchlist  []string `json:"watchlist"`
}

type Briefer struct {
	Model          Completer
	MaxPromptChars int
}

const briefPrompt = `You are a recruitment market analyst. Below is a leaderboard of the companies hiring most in the given window.

### INSTRUCTIONS:
1. Summarize the hiring market in two or three sentences.
2. List up to five notable highlights (growth, category concentration, news).
3. List companies a recruiter should watch next.
4. Respond with valid JSON only. Do not wrap the output in markdown code blocks.

### OUTPUT SCHEMA:
{"summary": "...", "highlights": ["..."], "watchlist": ["..."]}

### MARKET:
Window: %s
Category: %s
Location: %s

### LEADERBOARD:
%s`

// Prompt renders the brief prompt for the top players, truncated to
// MaxPromptChars.
func (b *Briefer) Prompt(in BriefInput) string {
	players := in.Players
	if len(players) > briefPlayers {
		players = players[:briefPlayers]
	}

	var sb strings.Builder
	for i, p := range players {
		growth := "n/a"
		if p.Growth != nil {
			growth = fmt.Sprintf("%+.1f%%", *p.Growth)
		}
		fmt.Fprintf(&sb, "%d. %s: %d jobs, top category %s (%d), growth %s\n",
			i+1, p.Name, p.Volume, p.TopCategory, p.TopCategoryVolume, growth)
		for _, h := range in.Headlines[p.Name] {
			fmt.Fprintf(&sb, "   - news: %s\n", h)
		}
	}

	prompt := fmt.Sprintf(briefPrompt, in.Window, orAll(in.Category), orAll(in.Location), sb.String())
	if b.MaxPromptChars > 0 && len(prompt) > b.MaxPromptChars {
		prompt = truncateUTF8(prompt, b.MaxPromptChars)
	}
	return prompt
}

// Generate asks the model for a brief. A reply that is not the requested
// JSON yields a *ParseError.
func (b *Briefer) Generate(ctx context.Context, in BriefInput) (Brief, error) {
	if b.Model == nil {
		return Brief{}, errors.New("llm is not configured")
	}
	raw, err := b.Model.Complete(ctx, b.Prompt(in))
	if err != nil {
		return Brief{}, err
	}
	return ParseBrief(raw)
}

func ParseBrief(raw string) (Brief, error) {
	var out Brief
	if err := json.Unmarshal([]byte(stripFences(raw)), &out); err != nil {
		return Brief{}, &ParseError{Raw: raw, Err: err}
	}
	if strings.TrimSpace(out.Summary) == "" {
		return Brief{}, &ParseError{Raw: raw, Err: errors.New("summary is empty")}
	}
	return out, nil
}

// stripFences removes a surrounding ``` or ```json block, which models add
// despite being told not to.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func orAll(v string) string {
	if strings.TrimSpace(v) == "" {
		return "all"
	}
	return v
}

func truncateUTF8(s string, n int) string {
	for n > 0 && n < len(s) && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
