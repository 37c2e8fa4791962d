package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/MSA696/youtube-hebrew-transcription/internal/fetch"
	"github.com/MSA696/youtube-hebrew-transcription/internal/sink"
	"github.com/MSA696/youtube-hebrew-transcription/internal/tube"
)

// Collaborator contracts. The orchestrator only sees these.

type Discovery interface {
	RecentShorts(ctx context.Context, channelID string, since time.Time, max int) ([]tube.Video, error)
}

// Handle is scratch audio owned by exactly one item; Close releases it.
type Handle interface {
	Path() string
	Close() error
}

type Acquirer interface {
	Acquire(ctx context.Context, videoURL string) (Handle, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Sink interface {
	Append(ctx context.Context, e sink.Entry) error
}

type Checkpoints interface {
	Watermark(ctx context.Context) time.Time
	SaveWatermark(ctx context.Context, t time.Time) error
	ProcessedIDs(ctx context.Context) map[string]bool
	SaveProcessedIDs(ctx context.Context, ids map[string]bool) error
}

type Deps struct {
	Discovery   Discovery
	Acquirer    Acquirer
	Transcriber Transcriber
	Sink        Sink
	Checkpoints Checkpoints
}

type Options struct {
	ChannelID  string
	MaxResults int
}

// Result summarizes one run. Succeeded counts items that made it all the
// way into the sink.
type Result struct {
	Attempted int
	Succeeded int
}

type Pipeline struct {
	deps Deps
	opts Options
	log  *logrus.Entry
	now  func() time.Time
}

func New(deps Deps, opts Options, log *logrus.Entry) *Pipeline {
	return &Pipeline{
		deps: deps,
		opts: opts,
		log:  log.WithField("module", "pipeline"),
		now:  time.Now,
	}
}

// Run processes everything published since the stored watermark.
func (p *Pipeline) Run(ctx context.Context) Result {
	return p.run(ctx, p.deps.Checkpoints.Watermark(ctx))
}

// RunSince is the operator retry entry: an explicit lookback boundary
// instead of the stored watermark. Already-processed items are still
// skipped, so re-running a window never duplicates sink entries.
func (p *Pipeline) RunSince(ctx context.Context, since time.Time) Result {
	return p.run(ctx, since)
}

func (p *Pipeline) run(ctx context.Context, since time.Time) Result {
	p.log.WithField("since", since.Format(time.RFC3339)).Info("starting run")

	processed := p.deps.Checkpoints.ProcessedIDs(ctx)

	videos, err := p.deps.Discovery.RecentShorts(ctx, p.opts.ChannelID, since, p.opts.MaxResults)
	if err != nil {
		// Indistinguishable from "nothing new"; a known limitation.
		p.log.WithError(err).Warn("discovery unavailable, treating as empty batch")
		videos = nil
	}

	var res Result
	newlyProcessed := 0
	for _, v := range videos {
		if processed[v.ID] {
			p.log.WithField("video_id", v.ID).Debug("already processed, skipping")
			continue
		}

		res.Attempted++
		if err := p.processOne(ctx, v); err != nil {
			p.log.WithField("video_id", v.ID).WithError(err).Warn("item failed, leaving for a later run")
			continue
		}
		processed[v.ID] = true
		newlyProcessed++
		res.Succeeded++
	}

	if newlyProcessed > 0 {
		if err := p.deps.Checkpoints.SaveProcessedIDs(ctx, processed); err != nil {
			p.log.WithError(err).Error("saving processed set failed")
		}
	}

	// Advance the watermark only when no work existed or every attempted
	// item succeeded. Holding it keeps failed items inside the discovery
	// window; re-discovered successes are absorbed by the processed set.
	if res.Attempted == 0 || res.Succeeded == res.Attempted {
		if err := p.deps.Checkpoints.SaveWatermark(ctx, p.now()); err != nil {
			p.log.WithError(err).Error("saving watermark failed")
		}
	} else {
		p.log.WithFields(logrus.Fields{
			"attempted": res.Attempted,
			"succeeded": res.Succeeded,
		}).Info("partial failure, holding watermark")
	}

	p.log.WithFields(logrus.Fields{
		"attempted": res.Attempted,
		"succeeded": res.Succeeded,
	}).Info("run complete")
	return res
}

func (p *Pipeline) processOne(ctx context.Context, v tube.Video) error {
	log := p.log.WithField("video_id", v.ID).WithField("title", v.Title)
	log.Info("processing video")

	audio, err := p.deps.Acquirer.Acquire(ctx, v.URL)
	if err != nil {
		return fmt.Errorf("acquire: %w", err)
	}
	defer audio.Close()

	text, err := p.deps.Transcriber.Transcribe(ctx, audio.Path())
	if err != nil {
		return fmt.Errorf("transcribe: %w", err)
	}

	entry := sink.Entry{
		Title:       v.Title,
		URL:         v.URL,
		Body:        text,
		PublishedAt: v.PublishedAt,
		LoggedAt:    p.now(),
	}
	if err := p.deps.Sink.Append(ctx, entry); err != nil {
		return fmt.Errorf("sink append: %w", err)
	}

	log.Info("transcription written to sink")
	return nil
}

// DownloaderAcquirer adapts fetch.Downloader to the Acquirer contract.
type DownloaderAcquirer struct {
	D *fetch.Downloader
}

func (a DownloaderAcquirer) Acquire(ctx context.Context, videoURL string) (Handle, error) {
	audio, err := a.D.Acquire(ctx, videoURL)
	if err != nil {
		return nil, err
	}
	return audio, nil
}
