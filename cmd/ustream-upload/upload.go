package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/alanbriolat/video-uploader"
	"github.com/alanbriolat/video-uploader/api"
	"github.com/alanbriolat/video-uploader/generic"
	"github.com/alanbriolat/video-uploader/internal/config"
	"github.com/alanbriolat/video-uploader/internal/progressapi"
	"github.com/alanbriolat/video-uploader/progress"
	"github.com/alanbriolat/video-uploader/transfer"
)

func uploadCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "upload video files to a channel, one after another",
		ArgsUsage: "FILE...",
		Flags: []cli.Flag{
			&cli.Int64Flag{
				Name:     "channel",
				Usage:    "upload to channel `ID`",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "title",
				Usage: "video title; defaults to the file name",
			},
			&cli.StringFlag{
				Name:  "description",
				Usage: "video description",
			},
			&cli.StringFlag{
				Name:  "protect",
				Value: string(video_uploader.DefaultProtect),
				Usage: "`LEVEL` of protection, public or private",
			},
			&cli.StringFlag{
				Name:  "serve",
				Usage: "serve progress over HTTP on `ADDR` while uploading",
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, "files"); err != nil {
				return err
			}
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if cfg.API.AccessToken == "" {
				return fmt.Errorf("%s must be set to upload", config.EnvAccessToken)
			}
			opts := video_uploader.UploadOptions{
				Title:       c.String("title"),
				Description: c.String("description"),
				Protect:     video_uploader.Protect(c.String("protect")),
			}
			if err := opts.Validate(); err != nil {
				return err
			}

			store, err := openStore(ctx, cfg.Progress, false)
			if err != nil {
				return err
			}
			defer store.Close()
			observed := progress.NewObserved(store)

			if addr := c.String("serve"); addr != "" {
				stopServer := startProgressServer(addr, observed)
				defer stopServer()
			}

			uploader := newUploader(ctx, cfg, observed)
			for _, path := range c.Args().Slice() {
				fileOpts := opts
				if fileOpts.Title == "" {
					fileOpts.Title = filepath.Base(path)
				}
				if err := uploadFile(ctx, uploader, observed, c.Int64("channel"), path, fileOpts); err != nil {
					observed.Close()
					return err
				}
			}
			observed.Close()
			return nil
		},
	}
}

func newUploader(ctx context.Context, cfg *config.Config, store progress.Store) *video_uploader.Uploader {
	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.API.AccessToken}))
	httpClient.Timeout = cfg.API.Timeout
	gateway := api.NewClient(api.Options{BaseURL: cfg.API.URL, HTTPClient: httpClient})
	return video_uploader.New(gateway,
		video_uploader.WithProgressStore(store),
		video_uploader.WithDialer(transfer.FTPDialer{Timeout: cfg.FTP.Timeout, DisableEPSV: cfg.FTP.DisableEPSV}),
	)
}

func uploadFile(ctx context.Context, uploader *video_uploader.Uploader, observed *progress.Observed, channelID int64, path string, opts video_uploader.UploadOptions) error {
	logger := video_uploader.Logger(ctx).Sugar()
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	updates, err := observed.Watch()
	if err != nil {
		return err
	}
	bar := progressbar.DefaultBytes(-1, filepath.Base(path))
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range updates.Receive() {
			if update.ID != path {
				continue
			}
			if update.Record.Status == progress.StatusError {
				_ = bar.Clear()
				continue
			}
			if bar.GetMax64() != update.Record.Total {
				bar.ChangeMax64(update.Record.Total)
			}
			generic.Unwrap_(bar.Set64(update.Record.Loaded))
		}
	}()

	file := video_uploader.File{OriginalName: filepath.Base(path), Path: path, Stream: f}
	session, err := uploader.Upload(ctx, channelID, file, opts)
	updates.Close()
	wg.Wait()
	if err != nil {
		var transportErr *api.TransportError
		if errors.As(err, &transportErr) && transportErr.StatusCode == http.StatusUnauthorized {
			return fmt.Errorf("upload of %s rejected, check %s: %w", path, config.EnvAccessToken, err)
		}
		if session != nil {
			return fmt.Errorf("upload of %s failed, video %d left pending: %w", path, session.VideoID, err)
		}
		return fmt.Errorf("upload of %s failed: %w", path, err)
	}
	_ = bar.Finish()
	logger.Infow("upload complete", "file", path, "video_id", session.VideoID, "session_id", session.ID)
	return nil
}

func startProgressServer(addr string, store progress.Store) func() {
	logger := zap.S().Named("serve")
	server := &http.Server{Addr: addr, Handler: progressapi.NewRouter(store)}
	go func() {
		logger.Infof("serving progress on http://%s/progress", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("progress server failed: %v", err)
		}
	}()
	return func() {
		if err := server.Shutdown(context.Background()); err != nil {
			logger.Warnf("progress server shutdown: %v", err)
		}
	}
}
