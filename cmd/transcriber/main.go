package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/MSA696/youtube-hebrew-transcription/internal/checkpoint"
	"github.com/MSA696/youtube-hebrew-transcription/internal/config"
	"github.com/MSA696/youtube-hebrew-transcription/internal/fetch"
	"github.com/MSA696/youtube-hebrew-transcription/internal/logger"
	"github.com/MSA696/youtube-hebrew-transcription/internal/pipeline"
	"github.com/MSA696/youtube-hebrew-transcription/internal/sink"
	"github.com/MSA696/youtube-hebrew-transcription/internal/transcribe"
	"github.com/MSA696/youtube-hebrew-transcription/internal/tube"
)

var rootCmd = &cobra.Command{
	Use:   "transcriber",
	Short: "Transcribes new Hebrew shorts from a channel into a document",
	Long: `transcriber polls a YouTube channel for newly published short videos,
downloads their audio, transcribes the Hebrew speech and appends the result
to a destination document. Progress checkpoints (scan watermark + processed
video ids) live in a repository, so repeated runs never duplicate work and
failed items are retried automatically.

Commands:
  run    - process everything published since the stored watermark
  retry  - process an explicit lookback window (stuck watermark recovery)
  reset  - force the watermark to a given time`,
	SilenceUsage: true,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process new videos since the stored watermark",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, _, log, err := build(ctx)
		if err != nil {
			return err
		}
		res := p.Run(ctx)
		log.WithField("attempted", res.Attempted).
			WithField("succeeded", res.Succeeded).
			Info("run finished")
		return nil
	},
}

var retryWindow time.Duration

var retryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Process an explicit lookback window instead of the watermark",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		p, _, log, err := build(ctx)
		if err != nil {
			return err
		}
		since := time.Now().Add(-retryWindow)
		res := p.RunSince(ctx, since)
		log.WithField("attempted", res.Attempted).
			WithField("succeeded", res.Succeeded).
			Info("retry run finished")
		return nil
	},
}

var resetTo string

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Force the stored watermark to a given RFC3339 time",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		t, err := time.Parse(time.RFC3339, resetTo)
		if err != nil {
			return fmt.Errorf("parsing --to: %w", err)
		}
		_, store, log, err := build(ctx)
		if err != nil {
			return err
		}
		if err := store.SaveWatermark(ctx, t); err != nil {
			return fmt.Errorf("saving watermark: %w", err)
		}
		log.WithField("watermark", t.Format(time.RFC3339)).Info("watermark reset")
		return nil
	},
}

func init() {
	retryCmd.Flags().DurationVar(&retryWindow, "window", 72*time.Hour, "how far back to rescan")
	resetCmd.Flags().StringVar(&resetTo, "to", "", "RFC3339 timestamp to set the watermark to")
	_ = resetCmd.MarkFlagRequired("to")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(retryCmd)
	rootCmd.AddCommand(resetCmd)
}

func build(ctx context.Context) (*pipeline.Pipeline, *checkpoint.Store, *logger.Logger, error) {
	log := logger.New()

	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, nil, err
	}

	store := checkpoint.New(cfg.GitHubToken, cfg.GitHubRepo, log.Entry)

	var dest pipeline.Sink
	switch cfg.Sink {
	case config.SinkGoogleDoc:
		doc, err := sink.NewGoogleDoc(ctx, cfg.GoogleDocID, cfg.GoogleCredentialsB64, cfg.MaxWords)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("building docs sink: %w", err)
		}
		dest = doc
	case config.SinkDocxDir:
		dest = sink.NewDocxDir(cfg.OutputDir, cfg.MaxWords)
	}

	runLog := log.WithRun()
	downloader := fetch.NewDownloader(runLog, fetch.DefaultStrategies(cfg.ConverterURL)...)

	p := pipeline.New(pipeline.Deps{
		Discovery:   tube.NewClient(cfg.YouTubeAPIKey, cfg.MaxDuration),
		Acquirer:    pipeline.DownloaderAcquirer{D: downloader},
		Transcriber: transcribe.New(cfg.OpenAIAPIKey, cfg.Language),
		Sink:        dest,
		Checkpoints: store,
	}, pipeline.Options{
		ChannelID:  cfg.ChannelID,
		MaxResults: cfg.MaxResults,
	}, runLog)

	return p, store, log, nil
}

func main() {
	_ = godotenv.Load() // loads .env

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
