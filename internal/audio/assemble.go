package audio

import (
	"fmt"
	"log/slog"
)

// AssemblyError is a chapter-scoped concatenation failure. Chunk is the
// zero-based index of the offending chunk, or -1 when no single chunk is at
// fault.
type AssemblyError struct {
	Chunk int
	Err   error
}

func (e *AssemblyError) Error() string {
	if e.Chunk < 0 {
		return fmt.Sprintf("assembly: %v", e.Err)
	}
	return fmt.Sprintf("assembly (chunk %d): %v", e.Chunk, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// Assembler concatenates chunk WAV payloads into one chapter clip, inserting
// a fixed silence gap between chunks. The gap supplements the engine's own
// sentence pauses.
type Assembler struct {
	silence float64 // seconds between chunks
	logger  *slog.Logger
}

// NewAssembler returns an assembler with the given inter-chunk silence.
func NewAssembler(silenceSeconds float64, logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	if silenceSeconds < 0 {
		silenceSeconds = 0
	}
	return &Assembler{silence: silenceSeconds, logger: logger}
}

// Assemble decodes ordered chunk payloads and concatenates them. The first
// chunk fixes the chapter format; any chunk that disagrees fails the chapter.
// Silence goes between chunks, never after the last.
func (a *Assembler) Assemble(chunks [][]byte) (*Clip, error) {
	if len(chunks) == 0 {
		return nil, &AssemblyError{Chunk: -1, Err: fmt.Errorf("no chunks to assemble")}
	}

	clips := make([]*Clip, len(chunks))
	var format Format
	for i, data := range chunks {
		clip, err := Decode(data)
		if err != nil {
			return nil, &AssemblyError{Chunk: i, Err: err}
		}
		if i == 0 {
			format = clip.Format
		} else if clip.Format != format {
			return nil, &AssemblyError{
				Chunk: i,
				Err:   fmt.Errorf("format mismatch: chunk is %s, chapter uses %s", clip.Format, format),
			}
		}
		clips[i] = clip
	}

	gap := make([]int, int(a.silence*float64(format.SampleRate))*format.Channels)

	total := (len(clips) - 1) * len(gap)
	for _, c := range clips {
		total += len(c.Samples)
	}

	samples := make([]int, 0, total)
	for i, c := range clips {
		if i > 0 {
			samples = append(samples, gap...)
		}
		samples = append(samples, c.Samples...)
	}

	out := &Clip{Format: format, Samples: samples}
	a.logger.Debug("chapter assembled",
		"chunks", len(chunks),
		"frames", out.Frames(),
		"duration", out.Duration(),
	)
	return out, nil
}

// AssembleFile assembles the chunks and writes the chapter WAV to path.
func (a *Assembler) AssembleFile(path string, chunks [][]byte) (*Clip, error) {
	clip, err := a.Assemble(chunks)
	if err != nil {
		return nil, err
	}
	if err := EncodeFile(path, clip); err != nil {
		return nil, &AssemblyError{Chunk: -1, Err: err}
	}
	return clip, nil
}
