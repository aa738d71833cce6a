package synth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	shellwords "github.com/mattn/go-shellwords"
)

// PiperName identifies the local piper engine.
const PiperName = "piper"

// PiperConfig holds configuration for the local piper engine.
type PiperConfig struct {
	Binary    string // executable, resolved via PATH when bare
	Command   string // full invocation override, parsed shell-style
	VoicesDir string // directory holding <voice>.onnx models
}

// Piper drives the piper binary directly: chunk text on stdin, WAV on
// stdout. One subprocess per chunk.
type Piper struct {
	binary    string
	override  []string
	voicesDir string
	logger    *slog.Logger
}

// NewPiper returns the local piper engine.
func NewPiper(cfg PiperConfig, logger *slog.Logger) (*Piper, error) {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Piper{
		binary:    cfg.Binary,
		voicesDir: cfg.VoicesDir,
		logger:    logger,
	}
	if p.binary == "" {
		p.binary = "piper"
	}
	if cfg.Command != "" {
		args, err := shellwords.NewParser().Parse(cfg.Command)
		if err != nil {
			return nil, fmt.Errorf("parse piper command: %w", err)
		}
		if len(args) == 0 {
			return nil, fmt.Errorf("piper command is empty")
		}
		p.override = args
	}
	return p, nil
}

// Name returns the engine identifier.
func (p *Piper) Name() string {
	return PiperName
}

// ModelPath returns the onnx model file for a voice name.
func (p *Piper) ModelPath(voice string) string {
	return filepath.Join(p.voicesDir, voice+".onnx")
}

// argv builds the full piper invocation for a request. A configured command
// override wins and is used verbatim.
func (p *Piper) argv(req Request) []string {
	if len(p.override) > 0 {
		return append([]string{}, p.override...)
	}
	argv := []string{
		p.binary,
		"--model", p.ModelPath(req.Voice),
		"--output_file", "-",
	}
	if v := req.Params.LengthScale; v > 0 {
		argv = append(argv, "--length-scale", formatScale(v))
	}
	if v := req.Params.NoiseScale; v > 0 {
		argv = append(argv, "--noise-scale", formatScale(v))
	}
	if v := req.Params.NoiseW; v > 0 {
		argv = append(argv, "--noise-w", formatScale(v))
	}
	if v := req.Params.SentenceSilence; v > 0 {
		argv = append(argv, "--sentence-silence", formatScale(v))
	}
	return argv
}

func formatScale(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Synthesize runs one piper invocation for the chunk.
func (p *Piper) Synthesize(ctx context.Context, req Request) (*Result, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, &Error{Engine: PiperName, Err: fmt.Errorf("text is required")}
	}
	if len(p.override) == 0 {
		if _, err := os.Stat(p.ModelPath(req.Voice)); err != nil {
			return nil, &Error{Engine: PiperName, Err: fmt.Errorf("voice model not found: %s", p.ModelPath(req.Voice))}
		}
	}

	argv := p.argv(req)
	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdin = strings.NewReader(text + "\n")
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Run(); err != nil {
		switch {
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			return nil, &Error{Engine: PiperName, Err: ErrTimeout}
		case ctx.Err() != nil:
			return nil, &Error{Engine: PiperName, Err: ctx.Err()}
		}
		return nil, &Error{
			Engine: PiperName,
			Err:    fmt.Errorf("piper failed: %w (output: %s)", err, strings.TrimSpace(stderr.String())),
		}
	}
	if stdout.Len() == 0 {
		return nil, &Error{Engine: PiperName, Err: fmt.Errorf("piper produced no audio")}
	}

	p.logger.Debug("piper chunk synthesized",
		"chars", len(text),
		"bytes", stdout.Len(),
		"elapsed", time.Since(start),
	)
	return &Result{
		Audio:      stdout.Bytes(),
		DurationMS: EstimateDuration(text, req.Params).Milliseconds(),
	}, nil
}

// HealthCheck verifies the piper executable can be invoked.
func (p *Piper) HealthCheck(ctx context.Context) error {
	bin := p.binary
	if len(p.override) > 0 {
		bin = p.override[0]
	}
	if _, err := exec.LookPath(bin); err != nil {
		return fmt.Errorf("piper is not installed or not in PATH: %w", err)
	}
	return ctx.Err()
}

var (
	_ Synthesizer   = (*Piper)(nil)
	_ HealthChecker = (*Piper)(nil)
)
