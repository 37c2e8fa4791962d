package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"time"
)

// YtdlpStrategy shells out to yt-dlp. PlayerClient switches the client
// identity yt-dlp presents, which unblocks some videos the default web
// client cannot fetch.
type YtdlpStrategy struct {
	Format       string
	PlayerClient string

	// Binary overrides the yt-dlp executable, mainly for tests.
	Binary string
}

func (s *YtdlpStrategy) Name() string {
	if s.PlayerClient != "" {
		return "yt-dlp/" + s.PlayerClient
	}
	return "yt-dlp"
}

func (s *YtdlpStrategy) Fetch(ctx context.Context, videoURL, dir string) (string, error) {
	binary := s.Binary
	if binary == "" {
		binary = "yt-dlp"
	}

	args := []string{
		"-f", s.Format,
		"-o", filepath.Join(dir, "audio.%(ext)s"),
		"--no-playlist",
		"--quiet",
	}
	if s.PlayerClient != "" {
		args = append(args, "--extractor-args", "youtube:player_client="+s.PlayerClient)
	}
	args = append(args, videoURL)

	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("yt-dlp: %w: %s", err, stderr.String())
	}

	return findAudioFile(dir)
}

// ConverterStrategy asks an external conversion service for a direct audio
// URL and downloads it. Last resort when direct extraction is blocked.
type ConverterStrategy struct {
	Endpoint string
	HTTP     *http.Client
}

func NewConverterStrategy(endpoint string) *ConverterStrategy {
	return &ConverterStrategy{
		Endpoint: endpoint,
		HTTP:     &http.Client{Timeout: 60 * time.Second},
	}
}

func (s *ConverterStrategy) Name() string { return "converter" }

type converterResponse struct {
	AudioURL string `json:"audio_url"`
}

func (s *ConverterStrategy) Fetch(ctx context.Context, videoURL, dir string) (string, error) {
	payload, err := json.Marshal(map[string]string{"url": videoURL})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("converter request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return "", fmt.Errorf("reading converter response: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("converter status %d: %s", res.StatusCode, body)
	}

	var cr converterResponse
	if err := json.Unmarshal(body, &cr); err != nil {
		return "", fmt.Errorf("decoding converter response: %w", err)
	}
	if cr.AudioURL == "" {
		return "", fmt.Errorf("converter returned no audio url")
	}

	return s.download(ctx, cr.AudioURL, dir)
}

func (s *ConverterStrategy) download(ctx context.Context, audioURL, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, audioURL, nil)
	if err != nil {
		return "", err
	}

	res, err := s.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading converted audio: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("converted audio status %d", res.StatusCode)
	}

	path := filepath.Join(dir, "audio.mp3")
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, res.Body); err != nil {
		return "", fmt.Errorf("writing converted audio: %w", err)
	}
	return path, nil
}
