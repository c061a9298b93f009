package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-uploader/internal/config"
	"github.com/alanbriolat/video-uploader/internal/progressapi"
)

const shutdownTimeout = 5 * time.Second

func serveCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "serve a shared progress store over HTTP at /progress?id=FILE",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Usage:   "listen on `ADDR`",
				EnvVars: []string{config.EnvServeAddr},
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			addr := cfg.Serve.Addr
			if c.IsSet("addr") {
				addr = c.String("addr")
			}

			if kind, _, _ := cfg.Progress.StoreLocation(); kind == config.StoreMemory {
				return errNoSharedStore
			}
			store, err := openStore(ctx, cfg.Progress, true)
			if err != nil {
				return err
			}
			defer store.Close()

			gin.SetMode(gin.ReleaseMode)
			server := &http.Server{Addr: addr, Handler: progressapi.NewRouter(store)}
			return runServer(ctx, server)
		},
	}
}

func runServer(ctx context.Context, server *http.Server) error {
	logger := zap.S().Named("serve")
	errs := make(chan error, 1)
	go func() {
		logger.Infof("serving progress on http://%s/progress", server.Addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errs; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
