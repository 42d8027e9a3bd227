package voice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the whisper binary or model is missing.
	ErrUnavailable = errors.New("transcription unavailable")
	// ErrNoSpeech means whisper ran but heard nothing usable.
	ErrNoSpeech = errors.New("no speech detected")
)

// Transcriber converts an audio upload to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error)
}

// Whisper shells out to the whisper.cpp CLI, converting the input with
// ffmpeg first when it is installed.
type Whisper struct {
	Bin     string
	Model   string
	FFmpeg  string
	Timeout time.Duration
	Log     *slog.Logger
}

func (w *Whisper) logger() *slog.Logger {
	if w.Log == nil {
		return slog.Default()
	}
	return w.Log
}

// Available reports whether both the binary and the model can be found.
func (w *Whisper) Available() error {
	if _, err := exec.LookPath(w.Bin); err != nil {
		return fmt.Errorf("%w: whisper binary %q not found", ErrUnavailable, w.Bin)
	}
	if _, err := os.Stat(w.Model); err != nil {
		return fmt.Errorf("%w: whisper model %q not found", ErrUnavailable, w.Model)
	}
	return nil
}

func (w *Whisper) Transcribe(ctx context.Context, audio io.Reader, filename string) (string, error) {
	if err := w.Available(); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "reminders-voice-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	ext := filepath.Ext(filename)
	if ext == "" {
		ext = ".webm"
	}
	src := filepath.Join(dir, "input"+ext)
	f, err := os.Create(src)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	_, err = io.Copy(f, audio)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("write audio: %w", err)
	}

	timeout := w.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	input := w.convert(ctx, src, filepath.Join(dir, "audio.wav"))

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.Bin,
		"-m", w.Model,
		"-f", input,
		"-otxt",
		"--no-timestamps",
		"-l", "en",
		"-t", "4",
	)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("transcription timed out after %s", timeout)
		}
		return "", fmt.Errorf("whisper failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}

	return extractTranscript(stdout.String())
}

// convert returns the path whisper should read: the 16 kHz mono WAV when
// ffmpeg succeeds, the original upload otherwise.
func (w *Whisper) convert(ctx context.Context, src, dst string) string {
	if w.FFmpeg == "" {
		return src
	}
	if _, err := exec.LookPath(w.FFmpeg); err != nil {
		return src
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, w.FFmpeg,
		"-i", src, "-ar", "16000", "-ac", "1", "-c:a", "pcm_s16le", "-y", dst)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		w.logger().Warn("ffmpeg conversion failed, using original audio",
			"error", err, "stderr", strings.TrimSpace(stderr.String()))
		return src
	}
	return dst
}

// extractTranscript picks the last stdout line that is not whisper logging.
func extractTranscript(out string) (string, error) {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	for i := len(lines) - 1; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		lower := strings.ToLower(line)
		switch {
		case line == "",
			strings.HasPrefix(line, "["),
			strings.HasPrefix(line, "whisper_"),
			strings.Contains(lower, "processing"),
			strings.Contains(lower, "system_info"):
			continue
		case line == "(silence)", line == "(music)":
			return "", ErrNoSpeech
		}
		return line, nil
	}
	return "", ErrNoSpeech
}
