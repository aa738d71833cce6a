package synth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// HTTPName identifies the piper-http engine.
const HTTPName = "http"

const defaultHTTPTimeout = 300 * time.Second

// HTTPConfig holds configuration for a piper-http style server, such as the
// managed engine container.
type HTTPConfig struct {
	URL     string // server base URL
	Timeout time.Duration
}

// HTTP talks to a piper-http server: POST a JSON body with the chunk text,
// receive WAV bytes. The server owns the loaded voice model; voice and
// prosody fields ride along for servers that honor them.
type HTTP struct {
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTP returns the piper-http engine.
func NewHTTP(cfg HTTPConfig, logger *slog.Logger) *HTTP {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	return &HTTP{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// Name returns the engine identifier.
func (h *HTTP) Name() string {
	return HTTPName
}

type httpSynthRequest struct {
	Text            string  `json:"text"`
	Voice           string  `json:"voice,omitempty"`
	LengthScale     float64 `json:"length_scale,omitempty"`
	NoiseScale      float64 `json:"noise_scale,omitempty"`
	NoiseW          float64 `json:"noise_w,omitempty"`
	SentenceSilence float64 `json:"sentence_silence,omitempty"`
}

// Synthesize posts the chunk to the server and returns its WAV response.
func (h *HTTP) Synthesize(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &Error{Engine: HTTPName, Err: fmt.Errorf("text is required")}
	}

	body, err := json.Marshal(httpSynthRequest{
		Text:            text,
		Voice:           req.Voice,
		LengthScale:     req.Params.LengthScale,
		NoiseScale:      req.Params.NoiseScale,
		NoiseW:          req.Params.NoiseW,
		SentenceSilence: req.Params.SentenceSilence,
	})
	if err != nil {
		return nil, &Error{Engine: HTTPName, Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/", bytes.NewReader(body))
	if err != nil {
		return nil, &Error{Engine: HTTPName, Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "audio/wav")

	start := time.Now()
	resp, err := h.client.Do(httpReq)
	if err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, &Error{Engine: HTTPName, Err: ErrTimeout}
		case ctx.Err() != nil:
			return nil, &Error{Engine: HTTPName, Err: ctx.Err()}
		}
		return nil, &Error{Engine: HTTPName, Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &Error{
			Engine: HTTPName,
			Err:    fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg))),
		}
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{Engine: HTTPName, Err: fmt.Errorf("failed reading audio response: %w", err)}
	}
	if len(audio) == 0 {
		return nil, &Error{Engine: HTTPName, Err: fmt.Errorf("server returned no audio")}
	}

	h.logger.Debug("http chunk synthesized",
		"chars", len(text),
		"bytes", len(audio),
		"elapsed", time.Since(start),
	)
	return &Result{
		Audio:      audio,
		DurationMS: EstimateDuration(text, req.Params).Milliseconds(),
	}, nil
}

// HealthCheck verifies the server is reachable. Any HTTP response counts;
// the synthesis endpoint contract is only checked on first use.
func (h *HTTP) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/", nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("engine server unreachable at %s: %w", h.baseURL, err)
	}
	resp.Body.Close()
	return nil
}

// URL returns the server base URL.
func (h *HTTP) URL() string {
	return h.baseURL
}

var (
	_ Synthesizer   = (*HTTP)(nil)
	_ HealthChecker = (*HTTP)(nil)
)
