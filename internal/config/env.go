package config

import (
	"os"
	"strconv"
)

// Environment variables use a RETRANS_ prefix and override values parsed
// from the YAML file; CLI flags override both. An empty value is treated as
// unset so `RETRANS_FOO= retranscoder ...` does not clobber the file value.

func envString(key string, dst *string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envBool(key string, dst **bool) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = &b
		}
	}
}

func envInt(key string, dst *int) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envFloat(key string, dst *float64) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func applyEnvOverrides(cfg *FileConfig) {
	envString("RETRANS_UPSTREAM_URL", &cfg.UpstreamURL)
	envString("RETRANS_USER_AGENT", &cfg.UserAgent)
	envString("RETRANS_LISTEN_ADDR", &cfg.ListenAddr)
	envString("RETRANS_PUBLIC_ADDRESS", &cfg.PublicAddress)
	envString("RETRANS_LOG_LEVEL", &cfg.LogLevel)
	envString("RETRANS_SCRATCH_DIR", &cfg.ScratchDir)
	envString("RETRANS_MUXER_BINARY", &cfg.MuxerBinary)
	envString("RETRANS_PROBE_BINARY", &cfg.ProbeBinary)

	if v, ok := os.LookupEnv("RETRANS_MODE"); ok && v != "" {
		cfg.Mode = PostProcessMode(v)
	}

	envFloat("RETRANS_TARGET_BUFFER_SECS", &cfg.Buffer.TargetBufferSecs)
	envFloat("RETRANS_MAX_TARGET_BUFFER_SECS", &cfg.Buffer.MaxTargetBufferSecs)

	envString("RETRANS_TRANSCRIPTION_MODE", &cfg.Transcription.Mode)
	envString("RETRANS_SOURCE_LANGUAGE", &cfg.Transcription.SourceLanguage)
	envString("RETRANS_COLLABORATOR_URL", &cfg.Transcription.CollaboratorURL)
	envString("RETRANS_FILTER_FILE", &cfg.Transcription.FilterFile)
	envString("RETRANS_VOCABULARY_FILE", &cfg.Transcription.VocabularyFile)
	envInt("RETRANS_BEAM_SIZE", &cfg.Transcription.BeamSize)
	envBool("RETRANS_VAD_FILTER", &cfg.Transcription.VADFilter)
	envBool("RETRANS_BOTH_TRACKS", &cfg.Transcription.BothTracks)
	envBool("RETRANS_USE_CUDA", &cfg.Transcription.UseCUDA)

	envBool("RETRANS_CAPTIONS_ENABLED", &cfg.Captions.Enabled)
	envString("RETRANS_CAPTIONS_PUBLISH_URL", &cfg.Captions.PublishURL)
	envInt("RETRANS_CAPTIONS_HTTP_PORT", &cfg.Captions.HTTPPort)
	envString("RETRANS_CAPTIONS_BASIC_AUTH_USER", &cfg.Captions.BasicAuthUser)
	envString("RETRANS_CAPTIONS_BASIC_AUTH_PASS", &cfg.Captions.BasicAuthPass)
}
