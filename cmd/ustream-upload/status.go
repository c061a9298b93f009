package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/r3labs/diff/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/alanbriolat/video-uploader/internal/config"
	"github.com/alanbriolat/video-uploader/progress"
)

var errNoSharedStore = errors.New("the memory progress store is only visible inside the uploading process, use bolt: or redis://")

func statusCommand(ctx context.Context) *cli.Command {
	return &cli.Command{
		Name:      "status",
		Usage:     "show upload progress from a shared progress store",
		ArgsUsage: "[FILE...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "watch",
				Usage: "keep polling and log each change",
			},
			&cli.DurationFlag{
				Name:  "interval",
				Value: time.Second,
				Usage: "poll every `DURATION` with --watch",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if kind, _, _ := cfg.Progress.StoreLocation(); kind == config.StoreMemory {
				return errNoSharedStore
			}
			ids := c.Args().Slice()
			if !c.Bool("watch") {
				return showStatus(ctx, cfg.Progress, ids)
			}
			return watchStatus(ctx, cfg.Progress, ids, c.Duration("interval"))
		},
	}
}

func showStatus(ctx context.Context, cfg config.ProgressConfig, ids []string) error {
	records, err := readRecords(ctx, cfg, ids)
	if err != nil {
		return err
	}
	for _, id := range sortedKeys(records) {
		record := records[id]
		if record.Status == progress.StatusError {
			fmt.Printf("%s\t%s\t%s\n", id, record.Status, record.ErrorMessage)
		} else {
			fmt.Printf("%s\t%s\t%d%%\t%d/%d\n", id, record.Status, record.Percent(), record.Loaded, record.Total)
		}
	}
	for _, id := range ids {
		if _, ok := records[id]; !ok {
			fmt.Printf("%s\tunknown\n", id)
		}
	}
	return nil
}

func watchStatus(ctx context.Context, cfg config.ProgressConfig, ids []string, interval time.Duration) error {
	logger := zap.S().Named("status")
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	previous := make(map[string]progress.Record)
	for {
		records, err := readRecords(ctx, cfg, ids)
		if errors.Is(err, errStoreBusy) {
			logger.Debugf("%v, retrying", err)
		} else if err != nil {
			return err
		} else {
			for _, id := range sortedKeys(records) {
				logChanges(logger, id, previous[id], records[id])
				previous[id] = records[id]
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func logChanges(logger *zap.SugaredLogger, id string, prev, next progress.Record) {
	changes, err := diff.Diff(prev, next)
	if err != nil {
		logger.Errorf("failed to diff old and new progress for %s: %v", id, err)
		return
	}
	for _, change := range changes {
		logger.Infof("%s: %v: %#v -> %#v", id, change.Path, change.From, change.To)
	}
}

// readRecords opens the store for each poll, so a redis connection isn't held between ticks.
func readRecords(ctx context.Context, cfg config.ProgressConfig, ids []string) (map[string]progress.Record, error) {
	store, err := openStore(ctx, cfg, true)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	records := make(map[string]progress.Record)
	if len(ids) == 0 {
		if store.list == nil {
			return nil, fmt.Errorf("listing uploads needs a bolt store, name the files to check instead")
		}
		items, err := store.list(ctx)
		if err != nil {
			return nil, err
		}
		for id, value := range items {
			if record, err := progress.Decode(value); err != nil {
				zap.S().Named("status").Warnf("skipping %s: %v", id, err)
			} else {
				records[id] = record
			}
		}
		return records, nil
	}
	for _, id := range ids {
		record, err := progress.Get(ctx, store, id)
		if err != nil {
			return nil, err
		}
		if value, ok := record.Get(); ok {
			records[id] = value
		}
	}
	return records, nil
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
