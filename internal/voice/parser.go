// Package voice turns recorded or typed speech into reminder fields.
package voice

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/jmhodges/clock"

	"reminders/internal/llm"
	"reminders/internal/reminder"
)

const (
	ModeLocal = "local"
	ModeCloud = "cloud"
	ModeNone  = "none"
)

// Parsed is the structured result of a voice parse.
type Parsed struct {
	Text         string  `json:"text"`
	DueDate      *string `json:"due_date"`
	DueTime      *string `json:"due_time"`
	TimeRequired bool    `json:"time_required"`
	Priority     *string `json:"priority"`
	Category     *string `json:"category"`
	Location     *string `json:"location"`
	Confidence   float64 `json:"confidence"`
	ParseMode    string  `json:"parse_mode"`
}

type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
}

type Parser struct {
	Provider llm.Provider
	Model    string
	Clock    clock.Clock
	Backoff  Backoff
	Log      *slog.Logger

	sleep func(ctx context.Context, d time.Duration) error
}

// NewParser builds a parser. A nil provider yields empty parses.
func NewParser(p llm.Provider, model string, retries int, clk clock.Clock, log *slog.Logger) *Parser {
	if clk == nil {
		clk = clock.New()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Parser{
		Provider: p,
		Model:    model,
		Clock:    clk,
		Backoff:  Backoff{Attempts: retries + 1, Base: 500 * time.Millisecond, Max: 4 * time.Second},
		Log:      log,
	}
}

func (p *Parser) mode() string {
	if p.Provider == nil {
		return ModeNone
	}
	if p.Provider.Name() == "deepseek" {
		return ModeCloud
	}
	return ModeLocal
}

// Parse never fails on provider trouble: it degrades to an empty parse
// with low confidence. Only a cancelled context is returned as an error.
func (p *Parser) Parse(ctx context.Context, text string) (Parsed, error) {
	text = strings.TrimSpace(text)
	if text == "" || p.Provider == nil {
		return p.empty(text, 0), nil
	}

	raw, err := p.complete(ctx, text)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Parsed{}, ctxErr
		}
		p.Log.Warn("voice parse failed", "provider", p.Provider.Name(), "error", err)
		return p.empty(text, 0), nil
	}

	fields := extractJSON(raw)
	if fields == nil {
		p.Log.Warn("voice parse returned no JSON", "provider", p.Provider.Name())
		return p.empty(text, 0.2), nil
	}
	return p.normalize(text, fields), nil
}

func (p *Parser) complete(ctx context.Context, text string) (string, error) {
	attempts := max(p.Backoff.Attempts, 1)
	delay := p.Backoff.Base

	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if serr := p.wait(ctx, delay); serr != nil {
				return "", serr
			}
			delay = min(delay*2, p.Backoff.Max)
		}

		var out string
		out, err = p.Provider.Complete(ctx, llm.Request{
			Model:       p.Model,
			System:      buildPrompt(p.Clock.Now()),
			Messages:    []llm.Message{{Role: "user", Content: text}},
			MaxTokens:   400,
			Temperature: 0.3,
		})
		if err == nil {
			return out, nil
		}
		p.Log.Debug("voice parse attempt failed", "attempt", i+1, "error", err)
	}
	return "", err
}

func (p *Parser) wait(ctx context.Context, d time.Duration) error {
	if p.sleep != nil {
		return p.sleep(ctx, d)
	}
	if d <= 0 {
		return ctx.Err()
	}
	t := p.Clock.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (p *Parser) empty(text string, confidence float64) Parsed {
	return Parsed{Text: text, Confidence: confidence, ParseMode: p.mode()}
}

type rawParse struct {
	Text         *string  `json:"text"`
	DueDate      *string  `json:"due_date"`
	DueTime      *string  `json:"due_time"`
	TimeRequired bool     `json:"time_required"`
	Priority     *string  `json:"priority"`
	Category     *string  `json:"category"`
	Location     *string  `json:"location"`
	Confidence   *float64 `json:"confidence"`
}

// extractJSON accepts a bare object, a ```json fenced block or the span
// between the first '{' and the last '}'.
func extractJSON(s string) *rawParse {
	try := func(body string) (*rawParse, error) {
		var out rawParse
		if err := json.Unmarshal([]byte(strings.TrimSpace(body)), &out); err != nil {
			return nil, err
		}
		return &out, nil
	}

	if out, err := try(s); err == nil {
		return out
	}
	if _, rest, ok := strings.Cut(s, "```json"); ok {
		if body, _, ok := strings.Cut(rest, "```"); ok {
			if out, err := try(body); err == nil {
				return out
			}
		}
	}
	start, end := strings.Index(s, "{"), strings.LastIndex(s, "}")
	if start >= 0 && end > start {
		if out, err := try(s[start : end+1]); err == nil {
			return out
		}
	}
	return nil
}

func (p *Parser) normalize(input string, r *rawParse) Parsed {
	out := Parsed{
		Text:         input,
		TimeRequired: r.TimeRequired,
		Confidence:   0.5,
		ParseMode:    p.mode(),
	}
	if r.Text != nil && strings.TrimSpace(*r.Text) != "" {
		out.Text = strings.TrimSpace(*r.Text)
	}
	if r.Confidence != nil {
		out.Confidence = *r.Confidence
	}

	now := p.Clock.Now()
	if v := nonEmpty(r.DueDate); v != nil {
		if _, err := reminder.ParseDate(*v); err == nil {
			out.DueDate = v
		} else if d, ok := naturalDate(*v, now); ok {
			out.DueDate = &d
		} else {
			out.Confidence *= 0.8
		}
	}

	if v := nonEmpty(r.DueTime); v != nil {
		t := *v
		if len(t) == 5 {
			t += ":00"
		}
		if _, err := time.Parse(reminder.TimeLayout, t); err == nil {
			out.DueTime = &t
		} else if nt, exact, ok := naturalTime(*v, now); ok {
			out.DueTime = &nt
			if !exact {
				out.TimeRequired = false
			}
		} else {
			out.Confidence *= 0.9
		}
	}

	if v := nonEmpty(r.Priority); v != nil {
		pr := strings.ToLower(*v)
		if reminder.Priority(pr).Valid() {
			out.Priority = &pr
		} else {
			out.Confidence *= 0.9
		}
	}

	if v := nonEmpty(r.Category); v != nil {
		if slices.Contains(categories, *v) {
			out.Category = v
		} else {
			out.Confidence *= 0.9
		}
	}

	out.Location = nonEmpty(r.Location)
	out.Confidence = max(0, min(1, out.Confidence))
	return out
}

func nonEmpty(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" || strings.EqualFold(v, "null") {
		return nil
	}
	return &v
}
