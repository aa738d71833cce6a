package synth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lecternaudio/lectern/internal/config"
)

func TestPiperArgv(t *testing.T) {
	tests := []struct {
		name string
		cfg  PiperConfig
		req  Request
		want []string
	}{
		{
			name: "default params",
			cfg:  PiperConfig{VoicesDir: "/v"},
			req: Request{
				Voice: "en_US-lessac-medium",
				Params: Params{
					LengthScale:     1.0,
					NoiseScale:      0.667,
					NoiseW:          0.8,
					SentenceSilence: 0.35,
				},
			},
			want: []string{
				"piper",
				"--model", "/v/en_US-lessac-medium.onnx",
				"--output_file", "-",
				"--length-scale", "1",
				"--noise-scale", "0.667",
				"--noise-w", "0.8",
				"--sentence-silence", "0.35",
			},
		},
		{
			name: "zero params omitted",
			cfg:  PiperConfig{VoicesDir: "/v"},
			req:  Request{Voice: "alba"},
			want: []string{"piper", "--model", "/v/alba.onnx", "--output_file", "-"},
		},
		{
			name: "custom binary",
			cfg:  PiperConfig{Binary: "/opt/piper/piper", VoicesDir: "/v"},
			req: Request{
				Voice:  "alba",
				Params: Params{LengthScale: 1.2},
			},
			want: []string{
				"/opt/piper/piper",
				"--model", "/v/alba.onnx",
				"--output_file", "-",
				"--length-scale", "1.2",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewPiper(tt.cfg, nil)
			if err != nil {
				t.Fatalf("NewPiper() error = %v", err)
			}
			got := p.argv(tt.req)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("argv = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPiperCommandOverride(t *testing.T) {
	p, err := NewPiper(PiperConfig{
		Command: `piper-cuda --model "/opt/voices/My Voice.onnx" --output_file -`,
	}, nil)
	if err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}

	got := p.argv(Request{
		Voice:  "ignored",
		Params: Params{LengthScale: 1.5, SentenceSilence: 0.5},
	})
	want := []string{"piper-cuda", "--model", "/opt/voices/My Voice.onnx", "--output_file", "-"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("argv = %v, want %v", got, want)
	}
}

func TestNewPiperBadCommand(t *testing.T) {
	if _, err := NewPiper(PiperConfig{Command: `piper --model "unterminated`}, nil); err == nil {
		t.Fatal("expected parse error for unterminated quote")
	}
	if _, err := NewPiper(PiperConfig{Command: "   "}, nil); err == nil {
		t.Fatal("expected error for blank command")
	}
}

func TestPiperSynthesizeMissingModel(t *testing.T) {
	p, err := NewPiper(PiperConfig{VoicesDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}

	_, err = p.Synthesize(context.Background(), Request{Text: "Hello.", Voice: "missing"})
	if err == nil {
		t.Fatal("expected error for missing voice model")
	}
	var sErr *Error
	if !errors.As(err, &sErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if sErr.Engine != PiperName {
		t.Fatalf("expected engine %q, got %q", PiperName, sErr.Engine)
	}
	if !strings.Contains(err.Error(), "voice model not found") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestPiperSynthesizeEmptyText(t *testing.T) {
	p, err := NewPiper(PiperConfig{VoicesDir: t.TempDir()}, nil)
	if err != nil {
		t.Fatalf("NewPiper() error = %v", err)
	}
	if _, err := p.Synthesize(context.Background(), Request{Text: "  \n "}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestEstimateDuration(t *testing.T) {
	minuteOfWords := strings.Repeat("word ", 149) + "word."

	tests := []struct {
		name string
		text string
		p    Params
		want time.Duration
	}{
		{
			name: "native pace",
			text: minuteOfWords,
			p:    Params{LengthScale: 1.0},
			want: 60 * time.Second,
		},
		{
			name: "slowed pace scales linearly",
			text: minuteOfWords,
			p:    Params{LengthScale: 1.2},
			want: 72 * time.Second,
		},
		{
			name: "sentence pauses added",
			text: "Hello there world.",
			p:    Params{LengthScale: 1.0, SentenceSilence: 0.35},
			want: 1550 * time.Millisecond,
		},
		{
			name: "zero scale defaults to native",
			text: "One. Two. Three.",
			p:    Params{SentenceSilence: 1.0},
			want: 4200 * time.Millisecond,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := EstimateDuration(tt.text, tt.p)
			diff := got - tt.want
			if diff < 0 {
				diff = -diff
			}
			if diff > 5*time.Millisecond {
				t.Fatalf("EstimateDuration = %v, want about %v", got, tt.want)
			}
		})
	}
}

func TestParamsFromConfig(t *testing.T) {
	got := ParamsFromConfig(config.SynthesisCfg{
		LengthScale:     1.1,
		NoiseScale:      0.5,
		NoiseW:          0.7,
		SentenceSilence: 0.2,
	})
	want := Params{LengthScale: 1.1, NoiseScale: 0.5, NoiseW: 0.7, SentenceSilence: 0.2}
	if got != want {
		t.Fatalf("ParamsFromConfig = %+v, want %+v", got, want)
	}
}

func TestErrorTimeout(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"timeout sentinel", &Error{Engine: "piper", Err: ErrTimeout}, true},
		{"deadline exceeded", &Error{Engine: "http", Err: context.DeadlineExceeded}, true},
		{"plain failure", &Error{Engine: "piper", Err: errors.New("boom")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sErr := tt.err.(*Error)
			if sErr.Timeout() != tt.want {
				t.Fatalf("Timeout() = %v, want %v", sErr.Timeout(), tt.want)
			}
			if IsTimeout(tt.err) != tt.want {
				t.Fatalf("IsTimeout() = %v, want %v", IsTimeout(tt.err), tt.want)
			}
		})
	}

	wrapped := fmt.Errorf("chunk 3: %w", &Error{Engine: "piper", Err: ErrTimeout})
	if !IsTimeout(wrapped) {
		t.Fatal("expected IsTimeout to see through wrapping")
	}
	if IsTimeout(errors.New("unrelated")) {
		t.Fatal("unrelated error reported as timeout")
	}
}

func TestHTTPSynthesize(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %s", ct)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}

		w.Header().Set("Content-Type", "audio/wav")
		_, _ = w.Write([]byte("wav-bytes"))
	}))
	defer server.Close()

	engine := NewHTTP(HTTPConfig{URL: server.URL + "/"}, nil)

	result, err := engine.Synthesize(context.Background(), Request{
		Text:  "Hello world.",
		Voice: "alba",
		Params: Params{
			LengthScale:     1.2,
			SentenceSilence: 0.35,
		},
	})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(result.Audio) != "wav-bytes" {
		t.Fatalf("unexpected audio bytes: %q", string(result.Audio))
	}
	if result.DurationMS <= 0 {
		t.Fatalf("expected positive duration estimate, got %d", result.DurationMS)
	}
	if got, _ := payload["text"].(string); got != "Hello world." {
		t.Fatalf("expected text in payload, got %q", got)
	}
	if got, _ := payload["voice"].(string); got != "alba" {
		t.Fatalf("expected voice alba, got %q", got)
	}
	if got, _ := payload["length_scale"].(float64); got != 1.2 {
		t.Fatalf("expected length_scale 1.2, got %v", got)
	}
}

func TestHTTPSynthesizeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer server.Close()

	engine := NewHTTP(HTTPConfig{URL: server.URL}, nil)

	_, err := engine.Synthesize(context.Background(), Request{Text: "Hello."})
	if err == nil {
		t.Fatal("expected error for 500 response")
	}
	var sErr *Error
	if !errors.As(err, &sErr) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	if sErr.Engine != HTTPName {
		t.Fatalf("expected engine %q, got %q", HTTPName, sErr.Engine)
	}
	if !strings.Contains(err.Error(), "server returned 500") {
		t.Fatalf("unexpected error: %v", err)
	}
	if IsTimeout(err) {
		t.Fatal("server error misreported as timeout")
	}
}

func TestHTTPSynthesizeEmptyText(t *testing.T) {
	engine := NewHTTP(HTTPConfig{URL: "http://localhost:0"}, nil)
	if _, err := engine.Synthesize(context.Background(), Request{Text: ""}); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestHTTPSynthesizeDeadline(t *testing.T) {
	// The handler must be released once the client gives up, or
	// server.Close would wait on it forever.
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	engine := NewHTTP(HTTPConfig{URL: server.URL}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := engine.Synthesize(ctx, Request{Text: "Hello."})
	if err == nil {
		t.Fatal("expected error for expired deadline")
	}
	if !IsTimeout(err) {
		t.Fatalf("expected timeout classification, got %v", err)
	}
}

func TestHTTPHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	engine := NewHTTP(HTTPConfig{URL: server.URL}, nil)
	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v, want nil for any HTTP response", err)
	}

	server.Close()
	if err := engine.HealthCheck(context.Background()); err == nil {
		t.Fatal("expected error when server is down")
	}
}

func TestOpenAISynthesize(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		if err := json.Unmarshal(body, &payload); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("wav-bytes"))
	}))
	defer server.Close()

	engine := NewOpenAI(OpenAIConfig{
		APIKey:  "test-key",
		Model:   "gpt-4o-mini-tts",
		Speed:   1.25,
		BaseURL: server.URL,
	}, nil)

	result, err := engine.Synthesize(context.Background(), Request{Text: "Hello world.", Voice: "onyx"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(result.Audio) != "wav-bytes" {
		t.Fatalf("unexpected audio bytes: %q", string(result.Audio))
	}
	if result.DurationMS <= 0 {
		t.Fatalf("expected positive duration estimate, got %d", result.DurationMS)
	}
	if got, _ := payload["model"].(string); got != "gpt-4o-mini-tts" {
		t.Fatalf("expected model gpt-4o-mini-tts, got %q", got)
	}
	if got, _ := payload["voice"].(string); got != "onyx" {
		t.Fatalf("expected voice onyx, got %q", got)
	}
	if got, _ := payload["response_format"].(string); got != "wav" {
		t.Fatalf("expected response_format wav, got %q", got)
	}
	if got, _ := payload["speed"].(float64); got != 1.25 {
		t.Fatalf("expected speed 1.25, got %v", got)
	}
}

func TestOpenAISynthesizeDefaultVoice(t *testing.T) {
	var payload map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		_, _ = w.Write([]byte("wav-bytes"))
	}))
	defer server.Close()

	engine := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL}, nil)

	if _, err := engine.Synthesize(context.Background(), Request{Text: "Hi there."}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if got, _ := payload["voice"].(string); got != "onyx" {
		t.Fatalf("expected default voice onyx, got %q", got)
	}
	if got, _ := payload["model"].(string); got != "gpt-4o-mini-tts" {
		t.Fatalf("expected default model, got %q", got)
	}
}

func TestOpenAISynthesizeAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid voice","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	engine := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL}, nil)

	_, err := engine.Synthesize(context.Background(), Request{Text: "Hello.", Voice: "nope"})
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "status 400") {
		t.Fatalf("unexpected error: %v", err)
	}
	if IsTimeout(err) {
		t.Fatal("api error misreported as timeout")
	}
}

func TestOpenAIHealthCheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"id":"tts-1","object":"model","created":1,"owned_by":"openai"}]}`))
	}))
	defer server.Close()

	engine := NewOpenAI(OpenAIConfig{APIKey: "test-key", BaseURL: server.URL}, nil)
	if err := engine.HealthCheck(context.Background()); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
}

func TestOpenAIVoices(t *testing.T) {
	engine := NewOpenAI(OpenAIConfig{APIKey: "test-key"}, nil)
	voices := engine.Voices()
	if len(voices) == 0 {
		t.Fatal("expected built-in voice list")
	}
	found := false
	for _, v := range voices {
		if v == "onyx" {
			found = true
			break
		}
	}
	if !found {
		t.Fatal("expected onyx in voice list")
	}
}

func TestFromConfig(t *testing.T) {
	t.Run("default is piper", func(t *testing.T) {
		cfg := config.DefaultConfig()
		engine, err := FromConfig(cfg, nil, nil)
		if err != nil {
			t.Fatalf("FromConfig() error = %v", err)
		}
		if engine.Name() != PiperName {
			t.Fatalf("expected piper engine, got %q", engine.Name())
		}
	})

	t.Run("http engine", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Synthesis.Engine = HTTPName
		cfg.Synthesis.HTTP.URL = "http://localhost:5123"
		engine, err := FromConfig(cfg, nil, nil)
		if err != nil {
			t.Fatalf("FromConfig() error = %v", err)
		}
		h, ok := engine.(*HTTP)
		if !ok {
			t.Fatalf("expected *HTTP, got %T", engine)
		}
		if h.URL() != "http://localhost:5123" {
			t.Fatalf("unexpected engine url: %s", h.URL())
		}
	})

	t.Run("openai requires key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "")
		cfg := config.DefaultConfig()
		cfg.Synthesis.Engine = OpenAIName
		if _, err := FromConfig(cfg, nil, nil); err == nil {
			t.Fatal("expected error without api key")
		}
	})

	t.Run("openai with key", func(t *testing.T) {
		t.Setenv("OPENAI_API_KEY", "sk-test")
		cfg := config.DefaultConfig()
		cfg.Synthesis.Engine = OpenAIName
		engine, err := FromConfig(cfg, nil, nil)
		if err != nil {
			t.Fatalf("FromConfig() error = %v", err)
		}
		if engine.Name() != OpenAIName {
			t.Fatalf("expected openai engine, got %q", engine.Name())
		}
	})

	t.Run("unknown engine", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.Synthesis.Engine = "espeak"
		if _, err := FromConfig(cfg, nil, nil); err == nil {
			t.Fatal("expected error for unknown engine")
		}
	})
}
