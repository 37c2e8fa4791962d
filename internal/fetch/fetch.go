package fetch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

var ErrAllStrategiesFailed = errors.New("all acquisition strategies failed")

// Strategy is one way of getting a video's audio onto disk. Strategies are
// tried in order until one produces a file.
type Strategy interface {
	Name() string
	Fetch(ctx context.Context, videoURL, dir string) (path string, err error)
}

// Audio is a handle to downloaded audio in its own scratch directory.
// Close removes the file and the directory; it is safe to call always.
type Audio struct {
	path string
	dir  string
}

func (a *Audio) Path() string { return a.path }

func (a *Audio) Close() error {
	if a.dir == "" {
		return nil
	}
	// best-effort, a leftover temp dir is not worth failing an item over
	_ = os.RemoveAll(a.dir)
	a.dir = ""
	return nil
}

type Downloader struct {
	strategies []Strategy
	log        *logrus.Entry
}

func NewDownloader(log *logrus.Entry, strategies ...Strategy) *Downloader {
	return &Downloader{
		strategies: strategies,
		log:        log.WithField("module", "fetch"),
	}
}

// DefaultStrategies is the production chain: best audio, then an alternate
// format under a different player identity, then the external converter if
// one is configured.
func DefaultStrategies(converterURL string) []Strategy {
	strategies := []Strategy{
		&YtdlpStrategy{Format: "bestaudio/best"},
		&YtdlpStrategy{Format: "m4a/bestaudio", PlayerClient: "android"},
	}
	if converterURL != "" {
		strategies = append(strategies, NewConverterStrategy(converterURL))
	}
	return strategies
}

// Acquire downloads the audio for one video into a fresh scratch directory.
// On total failure the scratch directory is removed before returning.
func (d *Downloader) Acquire(ctx context.Context, videoURL string) (*Audio, error) {
	dir, err := os.MkdirTemp("", "yt-audio-*")
	if err != nil {
		return nil, fmt.Errorf("creating scratch dir: %w", err)
	}

	log := d.log.WithField("video_url", videoURL)
	for _, strategy := range d.strategies {
		path, err := strategy.Fetch(ctx, videoURL, dir)
		if err != nil {
			log.WithField("strategy", strategy.Name()).WithError(err).Warn("strategy failed")
			continue
		}
		log.WithField("strategy", strategy.Name()).Debug("audio acquired")
		return &Audio{path: path, dir: dir}, nil
	}

	_ = os.RemoveAll(dir)
	return nil, fmt.Errorf("acquiring %q: %w", videoURL, ErrAllStrategiesFailed)
}

// findAudioFile locates whatever file a strategy left in the scratch dir.
func findAudioFile(dir string) (string, error) {
	for _, ext := range []string{"wav", "mp3", "m4a", "opus", "webm", "mp4"} {
		matches, err := filepath.Glob(filepath.Join(dir, "audio."+ext))
		if err == nil && len(matches) > 0 {
			return matches[0], nil
		}
	}
	return "", fmt.Errorf("no audio file produced in %s", dir)
}
