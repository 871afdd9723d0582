// Package seed applies a JSON dashboard snapshot from disk to a store and can
// keep re-applying it while the file changes.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gridboard/pkg/dashboard"
)

// Load reads a `{layout?, widgets?}` document from path.
func Load(path string) (dashboard.Replacement, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return dashboard.Replacement{}, fmt.Errorf("read seed: %w", err)
	}
	r, err := dashboard.DecodeReplacement(body)
	if err != nil {
		return dashboard.Replacement{}, fmt.Errorf("decode seed %s: %w", path, err)
	}
	return r, nil
}

// Apply loads path and replaces the halves it carries in store.
func Apply(ctx context.Context, store dashboard.Store, path string) (dashboard.State, error) {
	r, err := Load(path)
	if err != nil {
		return dashboard.State{}, err
	}
	state, err := store.Replace(ctx, r)
	if err != nil {
		return dashboard.State{}, fmt.Errorf("apply seed %s: %w", path, err)
	}
	return state, nil
}

// Follow re-applies path each time the watcher reports a change, until ctx is
// done. Failed applies are logged and leave the store as it was.
func Follow(ctx context.Context, store dashboard.Store, path string, logger *slog.Logger) error {
	w, err := NewWatcher(path, 100*time.Millisecond)
	if err != nil {
		return err
	}
	defer func() { _ = w.Close() }()
	return follow(ctx, store, path, w.Changes(), logger)
}

func follow(ctx context.Context, store dashboard.Store, path string, changes <-chan struct{}, logger *slog.Logger) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			state, err := Apply(ctx, store, path)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "seed reload failed", slog.String("path", path), slog.Any("error", err))
				}
				continue
			}
			if logger != nil {
				logger.InfoContext(ctx, "seed reloaded", slog.String("path", path),
					slog.Int("items", len(state.Layout)), slog.Int("widgets", len(state.Widgets)))
			}
		}
	}
}
