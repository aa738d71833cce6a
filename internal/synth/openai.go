package synth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const (
	OpenAIName           = "openai"
	openAIDefaultModel   = "gpt-4o-mini-tts"
	openAIDefaultVoice   = "onyx"
	openAIDefaultSpeed   = 1.0
	openAIRequestTimeout = 300 * time.Second
)

// OpenAIConfig holds configuration for the OpenAI speech engine.
type OpenAIConfig struct {
	APIKey     string
	Model      string       // "gpt-4o-mini-tts" (default), "tts-1", "tts-1-hd"
	Speed      float64      // 0.25-4.0
	BaseURL    string       // Optional (tests)
	HTTPClient *http.Client // Optional (tests)
}

// OpenAI synthesizes chunks through the OpenAI speech API. Responses are
// requested as WAV so assembly treats all engines alike.
type OpenAI struct {
	model  string
	speed  float64
	client openai.Client
	logger *slog.Logger
}

// NewOpenAI creates the OpenAI engine.
func NewOpenAI(cfg OpenAIConfig, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Model == "" {
		cfg.Model = openAIDefaultModel
	}
	if cfg.Speed <= 0 {
		cfg.Speed = openAIDefaultSpeed
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: openAIRequestTimeout}
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithHTTPClient(httpClient),
		option.WithMaxRetries(3),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAI{
		model:  cfg.Model,
		speed:  cfg.Speed,
		client: openai.NewClient(opts...),
		logger: logger,
	}
}

// Name returns the engine identifier.
func (o *OpenAI) Name() string {
	return OpenAIName
}

// Model returns the configured speech model.
func (o *OpenAI) Model() string {
	return o.model
}

// Synthesize converts one chunk through the speech API.
func (o *OpenAI) Synthesize(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &Error{Engine: OpenAIName, Err: fmt.Errorf("text is required")}
	}

	voice := strings.TrimSpace(req.Voice)
	if voice == "" {
		voice = openAIDefaultVoice
	}

	params := openai.AudioSpeechNewParams{
		Input:          text,
		Model:          openai.SpeechModel(o.model),
		Voice:          openai.AudioSpeechNewParamsVoice(voice),
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatWAV,
		Speed:          openai.Float(o.speed),
	}

	start := time.Now()
	resp, err := o.client.Audio.Speech.New(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, &Error{Engine: OpenAIName, Err: ErrTimeout}
		case ctx.Err() != nil:
			return nil, &Error{Engine: OpenAIName, Err: ctx.Err()}
		}
		return nil, &Error{Engine: OpenAIName, Err: mapOpenAIError(err)}
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Engine: OpenAIName, Err: fmt.Errorf("failed reading audio response: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &Error{Engine: OpenAIName, Err: fmt.Errorf("api returned no audio")}
	}

	o.logger.Debug("openai chunk synthesized",
		"model", o.model,
		"voice", voice,
		"chars", len(text),
		"bytes", len(audio),
		"elapsed", time.Since(start),
	)

	// The API does not report duration; scale the word-rate estimate by the
	// requested speed.
	est := EstimateDuration(text, Params{LengthScale: 1})
	est = time.Duration(float64(est) / o.speed)
	return &Result{Audio: audio, DurationMS: est.Milliseconds()}, nil
}

// HealthCheck verifies the API is reachable and the key is valid.
func (o *OpenAI) HealthCheck(ctx context.Context) error {
	page, err := o.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("openai models list failed: %w", mapOpenAIError(err))
	}
	if page == nil {
		return fmt.Errorf("openai models list returned nil response")
	}
	return nil
}

// Voices returns the built-in OpenAI speech voice names. The API has no
// voice-listing endpoint.
func (o *OpenAI) Voices() []string {
	return []string{
		"alloy", "ash", "ballad", "coral", "echo", "fable", "nova",
		"onyx", "sage", "shimmer", "verse", "marin", "cedar",
	}
}

func mapOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return fmt.Errorf("openai speech error (status %d): %s", apiErr.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("openai speech error (status %d)", apiErr.StatusCode)
	}
	return err
}

var (
	_ Synthesizer   = (*OpenAI)(nil)
	_ HealthChecker = (*OpenAI)(nil)
)
