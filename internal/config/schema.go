package config

// Config holds lectern configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Log       LogCfg       `mapstructure:"log" yaml:"log"`
	Books     BooksCfg     `mapstructure:"books" yaml:"books"`
	Chapters  ChaptersCfg  `mapstructure:"chapters" yaml:"chapters"`
	Chunking  ChunkingCfg  `mapstructure:"chunking" yaml:"chunking"`
	Synthesis SynthesisCfg `mapstructure:"synthesis" yaml:"synthesis"`
	Audio     AudioCfg     `mapstructure:"audio" yaml:"audio"`
	Engine    EngineCfg    `mapstructure:"engine" yaml:"engine"`
}

// LogCfg configures logging output.
type LogCfg struct {
	Level  string `mapstructure:"level" yaml:"level"`   // "debug", "info", "warn", "error"
	Format string `mapstructure:"format" yaml:"format"` // "text" or "json"
}

// BooksCfg configures book identity.
type BooksCfg struct {
	// TimestampIDs salts book ids with the upload time so re-uploading the
	// same file always starts a fresh book. Off by default so identical
	// uploads dedupe to one book id.
	TimestampIDs bool `mapstructure:"timestamp_ids" yaml:"timestamp_ids"`
}

// ChaptersCfg configures chapter detection.
type ChaptersCfg struct {
	// MaxMinutes bounds the estimated spoken duration of a single chapter.
	// Longer chapters are split into "<title> - Part k" sub-chapters.
	MaxMinutes int `mapstructure:"max_minutes" yaml:"max_minutes"`
}

// ChunkingCfg configures synthesis chunk planning.
type ChunkingCfg struct {
	// MaxChars is the character budget for one synthesis call.
	MaxChars int `mapstructure:"max_chars" yaml:"max_chars"`
}

// SynthesisCfg configures the synthesis engine and orchestration.
type SynthesisCfg struct {
	Engine              string  `mapstructure:"engine" yaml:"engine"` // "piper", "http", "openai"
	Voice               string  `mapstructure:"voice" yaml:"voice"`
	Workers             int     `mapstructure:"workers" yaml:"workers"`                             // concurrent chapters
	ChunkTimeoutSeconds int     `mapstructure:"chunk_timeout_seconds" yaml:"chunk_timeout_seconds"` // hard per-chunk timeout
	LengthScale         float64 `mapstructure:"length_scale" yaml:"length_scale"`                   // speech rate (1.0 = normal)
	NoiseScale          float64 `mapstructure:"noise_scale" yaml:"noise_scale"`
	NoiseW              float64 `mapstructure:"noise_w" yaml:"noise_w"`
	SentenceSilence     float64 `mapstructure:"sentence_silence" yaml:"sentence_silence"` // seconds of pause per sentence

	Piper  PiperCfg  `mapstructure:"piper" yaml:"piper"`
	HTTP   HTTPCfg   `mapstructure:"http" yaml:"http"`
	OpenAI OpenAICfg `mapstructure:"openai" yaml:"openai"`
}

// PiperCfg configures the local piper binary engine.
type PiperCfg struct {
	// Binary is the piper executable (resolved via PATH if bare).
	Binary string `mapstructure:"binary" yaml:"binary"`
	// Command optionally overrides the whole invocation; parsed shell-style.
	// When set, Binary and the generated flags are ignored.
	Command string `mapstructure:"command" yaml:"command"`
	// VoicesDir holds <voice>.onnx model files. Empty means {home}/voices.
	VoicesDir string `mapstructure:"voices_dir" yaml:"voices_dir"`
}

// HTTPCfg configures a remote piper-http style engine.
type HTTPCfg struct {
	URL            string `mapstructure:"url" yaml:"url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
}

// OpenAICfg configures the OpenAI speech engine.
type OpenAICfg struct {
	Model  string  `mapstructure:"model" yaml:"model"`
	APIKey string  `mapstructure:"api_key" yaml:"api_key"` // supports ${ENV_VAR} syntax
	Speed  float64 `mapstructure:"speed" yaml:"speed"`
}

// AudioCfg configures audio assembly.
type AudioCfg struct {
	// SilenceSeconds of zero samples inserted between chunks of a chapter.
	SilenceSeconds float64 `mapstructure:"silence_seconds" yaml:"silence_seconds"`
}

// EngineCfg holds the managed TTS engine container configuration.
type EngineCfg struct {
	// ContainerName is the Docker container name (default: lectern-piper)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: artibex/piper-http:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 5000)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Log: LogCfg{
			Level:  "info",
			Format: "text",
		},
		Books: BooksCfg{
			TimestampIDs: false,
		},
		Chapters: ChaptersCfg{
			MaxMinutes: 30,
		},
		Chunking: ChunkingCfg{
			MaxChars: 800,
		},
		Synthesis: SynthesisCfg{
			Engine:              "piper",
			Voice:               "en_US-lessac-medium",
			Workers:             2,
			ChunkTimeoutSeconds: 300,
			LengthScale:         1.0,
			NoiseScale:          0.667,
			NoiseW:              0.8,
			SentenceSilence:     0.35,
			Piper: PiperCfg{
				Binary: "piper",
			},
			HTTP: HTTPCfg{
				URL:            "http://localhost:5000",
				TimeoutSeconds: 300,
			},
			OpenAI: OpenAICfg{
				Model:  "gpt-4o-mini-tts",
				APIKey: "${OPENAI_API_KEY}",
				Speed:  1.0,
			},
		},
		Audio: AudioCfg{
			SilenceSeconds: 0.35,
		},
		Engine: EngineCfg{
			ContainerName: "lectern-piper",
			Image:         "artibex/piper-http:latest",
			Port:          "5000",
		},
	}
}
