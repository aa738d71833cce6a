// Package synth converts text chunks into spoken audio through a pluggable
// engine: a local piper binary, a piper-http server, or the OpenAI speech
// API. Every engine returns WAV bytes; format agreement across chunks is
// enforced later at assembly.
package synth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lecternaudio/lectern/internal/book"
	"github.com/lecternaudio/lectern/internal/config"
	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/textnorm"
)

// Params tune engine delivery. Zero values select engine defaults.
type Params struct {
	LengthScale     float64 // speech rate multiplier, 1.0 is native pace
	NoiseScale      float64 // voice expressiveness
	NoiseW          float64 // phonetic variation
	SentenceSilence float64 // seconds of pause between sentences
}

// Request is one chunk synthesis call.
type Request struct {
	Text   string
	Voice  string
	Params Params
}

// Result is the audio for one chunk.
type Result struct {
	Audio      []byte // WAV container bytes as produced by the engine
	DurationMS int64  // estimated, for progress display only
}

// Synthesizer converts one text chunk to audio. Implementations block until
// audio is ready or ctx is done.
type Synthesizer interface {
	Name() string
	Synthesize(ctx context.Context, req Request) (*Result, error)
}

// HealthChecker is implemented by engines backed by an external service.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// ErrTimeout marks a chunk synthesis that exceeded its deadline. The owning
// chapter fails; nothing retries automatically.
var ErrTimeout = errors.New("synthesis timed out")

// Error is a chapter-scoped synthesis failure.
type Error struct {
	Engine string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("synthesis (%s): %v", e.Engine, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Timeout reports whether the failure was a deadline expiry.
func (e *Error) Timeout() bool {
	return errors.Is(e.Err, ErrTimeout) || errors.Is(e.Err, context.DeadlineExceeded)
}

// IsTimeout reports whether err represents a synthesis deadline expiry,
// wrapped or not.
func IsTimeout(err error) bool {
	var sErr *Error
	if errors.As(err, &sErr) && sErr.Timeout() {
		return true
	}
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// EstimateDuration predicts spoken length from word count, speech rate, and
// per-sentence pauses. Display quality only, never used for correctness.
func EstimateDuration(text string, p Params) time.Duration {
	scale := p.LengthScale
	if scale <= 0 {
		scale = 1.0
	}
	words := float64(textnorm.WordCount(text))
	sentences := float64(textnorm.SentenceCount(text))
	secs := words/book.WordsPerMinute*60*scale + sentences*p.SentenceSilence
	return time.Duration(secs * float64(time.Second))
}

// ParamsFromConfig maps synthesis configuration onto engine parameters.
func ParamsFromConfig(s config.SynthesisCfg) Params {
	return Params{
		LengthScale:     s.LengthScale,
		NoiseScale:      s.NoiseScale,
		NoiseW:          s.NoiseW,
		SentenceSilence: s.SentenceSilence,
	}
}

// FromConfig builds the configured engine.
func FromConfig(cfg *config.Config, h *home.Dir, logger *slog.Logger) (Synthesizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := cfg.Synthesis
	switch s.Engine {
	case "", PiperName:
		voicesDir := s.Piper.VoicesDir
		if voicesDir == "" && h != nil {
			voicesDir = h.VoicesPath()
		}
		return NewPiper(PiperConfig{
			Binary:    s.Piper.Binary,
			Command:   s.Piper.Command,
			VoicesDir: voicesDir,
		}, logger)
	case HTTPName:
		return NewHTTP(HTTPConfig{
			URL:     s.HTTP.URL,
			Timeout: time.Duration(s.HTTP.TimeoutSeconds) * time.Second,
		}, logger), nil
	case OpenAIName:
		key := config.ResolveEnvVars(s.OpenAI.APIKey)
		if key == "" {
			return nil, fmt.Errorf("openai engine requires an api key")
		}
		return NewOpenAI(OpenAIConfig{
			APIKey: key,
			Model:  s.OpenAI.Model,
			Speed:  s.OpenAI.Speed,
		}, logger), nil
	default:
		return nil, fmt.Errorf("unknown synthesis engine %q", s.Engine)
	}
}
