package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	SinkGoogleDoc = "gdoc"
	SinkDocxDir   = "docx"
)

// Config carries everything the pipeline and its collaborators need.
// Populated once in main and passed down explicitly.
type Config struct {
	YouTubeAPIKey string
	ChannelID     string

	OpenAIAPIKey string
	Language     string

	// Sink selects between the hosted document and the local docx archive.
	Sink                 string
	GoogleDocID          string
	GoogleCredentialsB64 string
	OutputDir            string

	GitHubToken string
	GitHubRepo  string

	// Optional endpoint of an external audio conversion service used as the
	// last download fallback. Empty disables that strategy.
	ConverterURL string

	MaxResults  int
	MaxDuration time.Duration
	MaxWords    int
}

var ErrMissing = errors.New("missing required configuration")

func FromEnv() (*Config, error) {
	cfg := &Config{
		YouTubeAPIKey:        os.Getenv("YOUTUBE_API_KEY"),
		ChannelID:            os.Getenv("CHANNEL_ID"),
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		Language:             envOr("TRANSCRIBE_LANGUAGE", "he"),
		Sink:                 envOr("SINK", SinkGoogleDoc),
		GoogleDocID:          os.Getenv("GOOGLE_DOC_ID"),
		GoogleCredentialsB64: os.Getenv("GOOGLE_CREDENTIALS_B64"),
		OutputDir:            envOr("OUTPUT_DIR", "transcripts"),
		GitHubToken:          os.Getenv("GITHUB_TOKEN"),
		GitHubRepo:           os.Getenv("GITHUB_REPOSITORY"),
		ConverterURL:         os.Getenv("CONVERTER_URL"),
		MaxResults:           envIntOr("MAX_RESULTS", 10),
		MaxDuration:          time.Duration(envIntOr("MAX_DURATION_SEC", 180)) * time.Second,
		MaxWords:             envIntOr("MAX_WORDS", 500),
	}

	if cfg.YouTubeAPIKey == "" {
		return nil, fmt.Errorf("%w: YOUTUBE_API_KEY", ErrMissing)
	}
	if cfg.ChannelID == "" {
		return nil, fmt.Errorf("%w: CHANNEL_ID", ErrMissing)
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", ErrMissing)
	}

	switch cfg.Sink {
	case SinkGoogleDoc:
		if cfg.GoogleDocID == "" {
			return nil, fmt.Errorf("%w: GOOGLE_DOC_ID", ErrMissing)
		}
		if cfg.GoogleCredentialsB64 == "" {
			return nil, fmt.Errorf("%w: GOOGLE_CREDENTIALS_B64", ErrMissing)
		}
	case SinkDocxDir:
		// OutputDir always has a default
	default:
		return nil, fmt.Errorf("unknown sink %q", cfg.Sink)
	}

	return cfg, nil
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envIntOr(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
