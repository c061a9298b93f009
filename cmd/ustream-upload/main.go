package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/alanbriolat/video-uploader"
	"github.com/alanbriolat/video-uploader/async"
	"github.com/alanbriolat/video-uploader/internal/config"
)

func main() {
	logConfig := zap.NewDevelopmentConfig()
	logConfig.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	logConfig.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	logger, err := logConfig.Build()
	if err != nil {
		log.Fatalf("can't initialize zap logger: %v", err)
	}
	defer logger.Sync()
	zap.RedirectStdLog(logger)
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = video_uploader.WithLogger(ctx, logger)

	app := newApp(ctx, logConfig.Level)
	result := async.Run(func() error { return app.Run(os.Args) })

	select {
	case err = <-result:
	case <-ctx.Done():
		stop()
		err = <-result
	}
	if err != nil {
		logger.Fatal(err.Error())
	}
}

func newApp(ctx context.Context, level zap.AtomicLevel) *cli.App {
	return &cli.App{
		Name:  "ustream-upload",
		Usage: "upload videos to a channel and inspect upload progress",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "config",
				Value: config.DefaultConfigPath,
				Usage: "read settings from YAML `FILE`, if it exists",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Value: config.DefaultEnvPath,
				Usage: "load environment variables from `FILE`, if it exists",
			},
			&cli.StringFlag{
				Name:    "progress-store",
				Usage:   "keep progress in `STORE`: memory, bolt:<path> or redis://...",
				EnvVars: []string{config.EnvProgressStore},
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug logging",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") {
				level.SetLevel(zap.DebugLevel)
			}
			return nil
		},
		Commands: []*cli.Command{
			uploadCommand(ctx),
			statusCommand(ctx),
			serveCommand(ctx),
		},
		HideHelpCommand: true,
	}
}

// loadConfig applies global flags on top of config.Load.
func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(config.LoadOptions{
		EnvPath:    c.String("env-file"),
		ConfigPath: c.String("config"),
		Required:   c.IsSet("config"),
	})
	if err != nil {
		return nil, err
	}
	if c.IsSet("progress-store") {
		cfg.Progress.Store = c.String("progress-store")
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func requireArgs(c *cli.Context, what string) error {
	if c.NArg() == 0 {
		return fmt.Errorf("no %s given", what)
	}
	return nil
}
