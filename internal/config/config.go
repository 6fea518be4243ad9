// Package config loads and validates the pipeline's runtime configuration
// from a YAML file, environment variables, and CLI flags, in that
// increasing order of precedence.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PostProcessMode selects the tagged-variant post-processing behavior;
// exactly one is active for the lifetime of a process.
type PostProcessMode string

const (
	ModeSidecar  PostProcessMode = "sidecar"
	ModeHardSubs PostProcessMode = "hard_subs"
	ModeEmbedded PostProcessMode = "embedded"
)

// TranscriptionConfig configures the speech-to-text transcription stage.
type TranscriptionConfig struct {
	Mode            string `yaml:"mode"` // "transcribe" | "translate" | "both"; ignored when both_tracks is set
	SourceLanguage  string `yaml:"source_language"` // tag, or "auto"
	BeamSize        int    `yaml:"beam_size"`
	VADFilter       *bool  `yaml:"vad_filter"`
	FilterFile      string `yaml:"filter_file"`
	VocabularyFile  string `yaml:"vocabulary_file"`
	UseCUDA         *bool  `yaml:"use_cuda"`
	BothTracks      *bool  `yaml:"both_tracks"`
	CollaboratorURL string `yaml:"collaborator_url"` // speech-to-text HTTP endpoint
}

// CaptionDispatchConfig configures the optional caption dispatcher.
type CaptionDispatchConfig struct {
	Enabled      *bool  `yaml:"enabled"`
	PublishURL   string `yaml:"publish_url"` // rtmp://host[:port]/app/stream
	HTTPPort     int    `yaml:"http_port"`
	BasicAuthUser string `yaml:"basic_auth_user"`
	BasicAuthPass string `yaml:"basic_auth_pass"`
}

// BufferConfig configures the playlist follower's sliding window.
type BufferConfig struct {
	TargetBufferSecs    float64 `yaml:"target_buffer_secs"`
	MaxTargetBufferSecs float64 `yaml:"max_target_buffer_secs"`

	// DownloadRatePerSec optionally paces outbound segment fetches; 0
	// (default) leaves downloads unpaced.
	DownloadRatePerSec float64 `yaml:"download_rate_per_sec"`
	DownloadBurst      int     `yaml:"download_burst"`
}

// FileConfig is the top-level configuration document.
type FileConfig struct {
	UpstreamURL string `yaml:"upstream_url"`
	UserAgent   string `yaml:"user_agent"`
	ListenAddr  string `yaml:"listen_addr"`

	// PublicAddress is the externally reachable host[:port] advertised in
	// startup logs. It is never auto-detected; deployments behind NAT or a
	// container network set it explicitly.
	PublicAddress string `yaml:"public_address"`

	Mode PostProcessMode `yaml:"mode"`

	Buffer        BufferConfig          `yaml:"buffer"`
	Transcription TranscriptionConfig   `yaml:"transcription"`
	Captions      CaptionDispatchConfig `yaml:"captions"`

	MuxerBinary string `yaml:"muxer_binary"`
	ProbeBinary string `yaml:"probe_binary"`
	ScratchDir  string `yaml:"scratch_dir"`

	MaxConcurrentSegments int64 `yaml:"max_concurrent_segments"`

	LogLevel string `yaml:"log_level"`
}

// Load reads and parses a YAML config file, applies defaults for any unset
// field, and validates the mutually-exclusive mode selection.
func Load(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = "retranscoder/1.0"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeSidecar
	}
	if cfg.Buffer.TargetBufferSecs <= 0 {
		cfg.Buffer.TargetBufferSecs = 60
	}
	if cfg.Buffer.MaxTargetBufferSecs <= 0 {
		cfg.Buffer.MaxTargetBufferSecs = 120
	}
	if cfg.Transcription.BeamSize <= 0 {
		cfg.Transcription.BeamSize = 5
	}
	if cfg.Transcription.SourceLanguage == "" {
		cfg.Transcription.SourceLanguage = "auto"
	}
	if cfg.Transcription.Mode == "" {
		cfg.Transcription.Mode = "translate"
	}
	if cfg.Transcription.CollaboratorURL == "" {
		cfg.Transcription.CollaboratorURL = "http://127.0.0.1:9000/transcribe"
	}
	if cfg.MuxerBinary == "" {
		cfg.MuxerBinary = "ffmpeg"
	}
	if cfg.ProbeBinary == "" {
		cfg.ProbeBinary = "ffprobe"
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks invariants that applyDefaults cannot enforce, such as
// mutual exclusivity of hard-burn and embedded modes.
func Validate(cfg *FileConfig) error {
	switch cfg.Mode {
	case ModeSidecar, ModeHardSubs, ModeEmbedded:
	default:
		return fmt.Errorf("config: invalid mode %q", cfg.Mode)
	}
	if cfg.UpstreamURL == "" {
		return fmt.Errorf("config: upstream_url is required")
	}
	switch cfg.Transcription.Mode {
	case "transcribe", "translate", "both":
	default:
		return fmt.Errorf("config: invalid transcription.mode %q", cfg.Transcription.Mode)
	}
	return nil
}

// BoolOr returns *p if p is non-nil, else def. Mirrors the
// pointer-for-optional-field idiom used throughout this config: nil means
// "unset, use default" rather than "explicitly false".
func BoolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}
