package commands

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/strata/internal/watch"
)

// watchProject runs once, then again after every batch of changes under the
// models and seeds directories until ctx is cancelled. Failures are
// reported and watching continues.
func watchProject(ctx context.Context, c *CommandContext, once func(context.Context) error) error {
	if err := once(ctx); err != nil {
		if isCancelled(ctx, err) {
			return nil
		}
		c.Renderer.Error(err.Error())
	}

	w := watch.New([]string{c.Cfg.ModelsDir, c.Cfg.SeedsDir}, watch.WithLogger(c.Logger))
	c.Renderer.Muted("Watching for changes. Press Ctrl+C to stop.")

	return w.Run(ctx, func(ctx context.Context, paths []string) {
		c.Logger.Debug("change detected", slog.Int("files", len(paths)))
		c.Renderer.Println("")
		c.Renderer.Muted(fmt.Sprintf("Changed: %s", strings.Join(relativeTo(c.Cfg.ProjectRoot, paths), ", ")))

		if err := once(ctx); err != nil && !isCancelled(ctx, err) {
			c.Renderer.Error(err.Error())
		}
	})
}

func relativeTo(root string, paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = p
		if root == "" {
			continue
		}
		if rel, err := filepath.Rel(root, p); err == nil && !strings.HasPrefix(rel, "..") {
			out[i] = rel
		}
	}
	return out
}
