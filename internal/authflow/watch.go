package authflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// WatchTokenFile re-reads path whenever it changes and calls onToken with
// the trimmed contents. Deployments that rotate token files in place (for
// example via a mounted secret) pick up new tokens without a restart. The
// watcher stops when ctx is canceled.
func WatchTokenFile(ctx context.Context, log *slog.Logger, path string, onToken func(token string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	// Watch the directory. Secret mounts replace the file by rename, which
	// drops a watch on the file itself.
	if err := w.Add(filepath.Dir(path)); err != nil {
		w.Close()
		return err
	}

	go func() {
		defer w.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if ev.Name != path {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
					continue
				}
				b, err := os.ReadFile(path)
				if err != nil {
					log.WarnContext(ctx, "auth.tokenfile.read.fail", slog.String("path", path), slog.String("err", err.Error()))
					continue
				}
				tok := strings.TrimSpace(string(b))
				if tok == "" {
					continue
				}
				log.InfoContext(ctx, "auth.tokenfile.reload", slog.String("path", path))
				onToken(tok)
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				log.WarnContext(ctx, "auth.tokenfile.watch.fail", slog.String("err", err.Error()))
			}
		}
	}()
	return nil
}
