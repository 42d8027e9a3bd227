package voice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/jmhodges/clock"
	"github.com/stretchr/testify/require"

	"reminders/internal/llm"
)

type fakeProvider struct {
	name    string
	replies []string
	errs    []error
	calls   int
	last    llm.Request
}

func (f *fakeProvider) Complete(_ context.Context, req llm.Request) (string, error) {
	i := f.calls
	f.calls++
	f.last = req
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.replies) {
		return f.replies[i], nil
	}
	return f.replies[len(f.replies)-1], nil
}

func (f *fakeProvider) Name() string { return f.name }

func newParser(p llm.Provider, retries int) (*Parser, *[]time.Duration) {
	clk := clock.NewFake()
	clk.Set(time.Date(2025, 11, 9, 9, 0, 0, 0, time.UTC))
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	ps := NewParser(p, "test-model", retries, clk, log)
	var waits []time.Duration
	ps.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return ctx.Err()
	}
	return ps, &waits
}

func TestParse_Normalizes(t *testing.T) {
	fp := &fakeProvider{name: "ollama", replies: []string{`{
		"text": "call mom",
		"due_date": "2025-11-10",
		"due_time": "15:00",
		"time_required": true,
		"priority": "Important",
		"category": "Calls",
		"location": "",
		"confidence": 0.9
	}`}}
	p, _ := newParser(fp, 0)

	got, err := p.Parse(context.Background(), "call mom tomorrow at 3pm")
	require.NoError(t, err)
	require.Equal(t, "call mom", got.Text)
	require.Equal(t, "2025-11-10", *got.DueDate)
	require.Equal(t, "15:00:00", *got.DueTime)
	require.True(t, got.TimeRequired)
	require.Equal(t, "important", *got.Priority)
	require.Equal(t, "Calls", *got.Category)
	require.Nil(t, got.Location)
	require.InDelta(t, 0.9, got.Confidence, 1e-9)
	require.Equal(t, ModeLocal, got.ParseMode)

	require.Equal(t, "test-model", fp.last.Model)
	require.Contains(t, fp.last.System, "2025-11-09")
	require.Equal(t, 400, fp.last.MaxTokens)
}

func TestParse_InvalidFieldsLowerConfidence(t *testing.T) {
	fp := &fakeProvider{name: "deepseek", replies: []string{
		"Sure! ```json\n" + `{"text":"x","due_date":"not sure","due_time":"25:99","priority":"asap","category":"Garden","confidence":1}` + "\n```",
	}}
	p, _ := newParser(fp, 0)

	got, err := p.Parse(context.Background(), "x")
	require.NoError(t, err)
	require.Nil(t, got.DueDate)
	require.Nil(t, got.DueTime)
	require.Nil(t, got.Priority)
	require.Nil(t, got.Category)
	require.InDelta(t, 0.8*0.9*0.9*0.9, got.Confidence, 1e-9)
	require.Equal(t, ModeCloud, got.ParseMode)
}

func TestParse_NaturalLanguageDates(t *testing.T) {
	cases := []struct {
		name, date, tm   string
		wantDate, wantTm string
		required         bool
	}{
		{"tomorrow at 3pm", "tomorrow", "3pm", "2025-11-10", "15:00:00", true},
		{"weekday", "next Friday", "noon", "2025-11-14", "12:00:00", true},
		{"relative days", "in 3 days", "midnight", "2025-11-12", "00:00:00", true},
		{"vague time", "next Monday", "morning", "2025-11-10", "09:00:00", false},
		{"vague evening", "tomorrow", "this evening", "2025-11-10", "20:00:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reply := `{"text":"call mom","due_date":"` + tc.date + `","due_time":"` + tc.tm + `","time_required":true,"confidence":0.9}`
			p, _ := newParser(&fakeProvider{name: "ollama", replies: []string{reply}}, 0)

			got, err := p.Parse(context.Background(), "call mom")
			require.NoError(t, err)
			require.NotNil(t, got.DueDate)
			require.NotNil(t, got.DueTime)
			require.Equal(t, tc.wantDate, *got.DueDate)
			require.Equal(t, tc.wantTm, *got.DueTime)
			require.Equal(t, tc.required, got.TimeRequired)
			require.InDelta(t, 0.9, got.Confidence, 1e-9)
		})
	}
}

func TestNaturalDate_PrefersFuture(t *testing.T) {
	now := time.Date(2025, 11, 9, 9, 0, 0, 0, time.UTC)

	d, ok := naturalDate("friday", now)
	require.True(t, ok)
	require.Equal(t, "2025-11-14", d)

	_, ok = naturalDate("not sure", now)
	require.False(t, ok)
}

func TestParse_ConfidenceClamped(t *testing.T) {
	fp := &fakeProvider{name: "ollama", replies: []string{`noise {"text":"a","confidence":7} trailing`}}
	p, _ := newParser(fp, 0)

	got, err := p.Parse(context.Background(), "a")
	require.NoError(t, err)
	require.Equal(t, 1.0, got.Confidence)
}

func TestParse_NoJSON(t *testing.T) {
	fp := &fakeProvider{name: "ollama", replies: []string{"I could not understand that"}}
	p, _ := newParser(fp, 0)

	got, err := p.Parse(context.Background(), "buy milk")
	require.NoError(t, err)
	require.Equal(t, "buy milk", got.Text)
	require.Equal(t, 0.2, got.Confidence)
}

func TestParse_RetriesWithBackoff(t *testing.T) {
	boom := errors.New("connection refused")
	fp := &fakeProvider{
		name:    "ollama",
		errs:    []error{boom, boom},
		replies: []string{"", "", `{"text":"buy milk","confidence":0.7}`},
	}
	p, waits := newParser(fp, 2)

	got, err := p.Parse(context.Background(), "buy milk")
	require.NoError(t, err)
	require.Equal(t, 3, fp.calls)
	require.InDelta(t, 0.7, got.Confidence, 1e-9)
	require.Equal(t, []time.Duration{500 * time.Millisecond, time.Second}, *waits)
}

func TestParse_ProviderDownDegrades(t *testing.T) {
	boom := errors.New("connection refused")
	fp := &fakeProvider{name: "ollama", errs: []error{boom, boom, boom}, replies: []string{""}}
	p, _ := newParser(fp, 1)

	got, err := p.Parse(context.Background(), "buy milk")
	require.NoError(t, err)
	require.Equal(t, 2, fp.calls)
	require.Equal(t, "buy milk", got.Text)
	require.Zero(t, got.Confidence)
	require.Nil(t, got.DueDate)
}

func TestParse_NoProvider(t *testing.T) {
	p, _ := newParser(nil, 0)

	got, err := p.Parse(context.Background(), "  buy milk ")
	require.NoError(t, err)
	require.Equal(t, "buy milk", got.Text)
	require.Zero(t, got.Confidence)
	require.Equal(t, ModeNone, got.ParseMode)
}

func TestParse_CancelledContext(t *testing.T) {
	fp := &fakeProvider{name: "ollama", errs: []error{context.Canceled}, replies: []string{""}}
	p, _ := newParser(fp, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := p.Parse(ctx, "buy milk")
	require.ErrorIs(t, err, context.Canceled)
}

func TestExtractTranscript(t *testing.T) {
	out := strings.Join([]string{
		"whisper_init_from_file: loading model",
		"system_info: n_threads = 4",
		"main: processing 'audio.wav' (16000 samples)",
		"",
		" Call mom about Thanksgiving ",
		"[00:00:00.000 --> 00:00:02.000]",
		"",
	}, "\n")
	got, err := extractTranscript(out)
	require.NoError(t, err)
	require.Equal(t, "Call mom about Thanksgiving", got)

	_, err = extractTranscript("whisper_init\n[BLANK_AUDIO]\n")
	require.ErrorIs(t, err, ErrNoSpeech)

	_, err = extractTranscript("(silence)")
	require.ErrorIs(t, err, ErrNoSpeech)
}

func TestWhisper_Unavailable(t *testing.T) {
	w := &Whisper{Bin: "definitely-not-a-whisper-binary", Model: "missing.bin"}
	_, err := w.Transcribe(context.Background(), strings.NewReader("RIFF"), "a.wav")
	require.ErrorIs(t, err, ErrUnavailable)
}
