package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/hexflood/switchboard/internal/bot"
	"github.com/hexflood/switchboard/internal/config"
	"github.com/hexflood/switchboard/internal/digest"
	"github.com/hexflood/switchboard/internal/extractor"
	"github.com/hexflood/switchboard/internal/health"
	"github.com/hexflood/switchboard/internal/journal"
	"github.com/hexflood/switchboard/internal/podcast"
	"github.com/hexflood/switchboard/internal/shorts"
	"github.com/hexflood/switchboard/internal/status"
	"github.com/hexflood/switchboard/internal/storage"
	"github.com/hexflood/switchboard/internal/telegram"
	"github.com/hexflood/switchboard/internal/torrent"
	"github.com/hexflood/switchboard/internal/transmission"
	"github.com/hexflood/switchboard/internal/youtube"
)

func newStartCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot relay",
		Long:  "Polls Telegram for updates and dispatches each message to the handlers enabled in the config file. Secrets come from the environment (TELEGRAM_TOKEN, YOUTUBE_API_KEY, AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY); a .env file next to the binary is loaded when present.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(cmd, configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "switchboard.yaml", "path to config file")
	return cmd
}

func runStart(cmd *cobra.Command, configPath string) error {
	// Best-effort: absence of a .env file is not an error.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		return fmt.Errorf("TELEGRAM_TOKEN is required")
	}

	client, err := telegram.NewClient(telegram.ClientOpts{
		Token:          token,
		PollTimeoutSec: cfg.Poll.TimeoutSec,
	})
	if err != nil {
		return err
	}

	handlers, err := buildHandlers(cfg, client)
	if err != nil {
		return err
	}

	offsets, err := bot.NewOffsetStore(cfg.StatePath)
	if err != nil {
		return err
	}

	jnl, err := journal.Open(cfg.Journal.Path)
	if err != nil {
		return err
	}

	dispatcher, err := bot.NewDispatcher(bot.DispatcherOpts{
		Platform:   client,
		Handlers:   handlers,
		Offsets:    offsets,
		Recorder:   jnl,
		RetryDelay: time.Duration(cfg.Poll.RetryDelaySec) * time.Second,
		Out:        cmd.OutOrStdout(),
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Status != nil {
		go func() {
			err := status.Start(ctx, status.StartOpts{
				Offset: dispatcher,
				Stats:  jnl,
				Port:   cfg.Status.Port,
				Out:    cmd.OutOrStdout(),
			})
			if err != nil {
				log.Printf("status server: %v", err)
			}
		}()
	}

	if cfg.Digest != nil {
		d, err := digest.New(digest.Opts{
			Stats:    jnl,
			Telegram: client,
			ChatID:   cfg.Digest.ChatID,
			Cron:     cfg.Digest.Cron,
		})
		if err != nil {
			return err
		}
		go d.Run(ctx)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Switchboard started with %d handlers\n", len(handlers))
	return dispatcher.Run(ctx)
}

// buildHandlers wires up the handlers enabled by the config. The health
// check is always registered.
func buildHandlers(cfg *config.Config, client *telegram.Client) ([]bot.Handler, error) {
	healthHandler, err := health.NewHandler(client)
	if err != nil {
		return nil, err
	}
	handlers := []bot.Handler{healthHandler}

	var tool *extractor.Tool
	if cfg.Podcast != nil || cfg.Shorts != nil {
		tool, err = extractor.NewTool(cfg.Extractor.Binary, cfg.Extractor.Proxy, cfg.Extractor.Cookies)
		if err != nil {
			return nil, err
		}
	}

	if cfg.Transmission != nil {
		tc, err := transmission.NewClient(cfg.Transmission.Address, nil)
		if err != nil {
			return nil, err
		}
		th, err := torrent.NewHandler(torrent.HandlerOpts{Telegram: client, Downloader: tc})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, th)
	}

	if cfg.Podcast != nil {
		apiKey := os.Getenv("YOUTUBE_API_KEY")
		if apiKey == "" {
			return nil, fmt.Errorf("YOUTUBE_API_KEY is required when the podcast section is enabled")
		}
		yt, err := youtube.NewClient(youtube.ClientOpts{APIKey: apiKey})
		if err != nil {
			return nil, err
		}
		bucket, err := storage.NewBucket(storage.BucketOpts{
			Endpoint: cfg.Podcast.Storage.Endpoint,
			Region:   cfg.Podcast.Storage.Region,
			Bucket:   cfg.Podcast.Storage.Bucket,
		})
		if err != nil {
			return nil, err
		}
		store, err := podcast.NewStore(bucket)
		if err != nil {
			return nil, err
		}
		ph, err := podcast.NewHandler(podcast.HandlerOpts{
			Telegram:  client,
			Extractor: tool,
			Metadata:  yt,
			Bucket:    bucket,
			Store:     store,
			TmpDir:    cfg.TmpDir,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, ph)
	}

	if cfg.Shorts != nil {
		sh, err := shorts.NewHandler(shorts.HandlerOpts{
			Telegram:   client,
			Downloader: tool,
			TmpDir:     cfg.TmpDir,
		})
		if err != nil {
			return nil, err
		}
		handlers = append(handlers, sh)
	}

	return handlers, nil
}
