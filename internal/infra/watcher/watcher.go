// Package watcher はドキュメントファイルの変更を監視します。
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce は連続した書き込みをまとめる待ち時間
const DefaultDebounce = 300 * time.Millisecond

// FileWatcher は1つのファイルの作成・更新を通知します
type FileWatcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	logger   *slog.Logger
}

// Option は FileWatcher のオプション
type Option func(*FileWatcher)

// WithDebounce は待ち時間を設定します
func WithDebounce(d time.Duration) Option {
	return func(w *FileWatcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithLogger はロガーを設定します
func WithLogger(l *slog.Logger) Option {
	return func(w *FileWatcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// New は新しい FileWatcher を作成します
func New(opts ...Option) (*FileWatcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	w := &FileWatcher{
		watcher:  fw,
		debounce: DefaultDebounce,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Watch は path の変更を通知するチャネルを返します。
// エディタの置き換え保存にも追従できるよう親ディレクトリを監視します。
// チャネルは ctx の終了か Close で閉じられます
func (w *FileWatcher) Watch(ctx context.Context, path string) (<-chan string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}
	if err := w.watcher.Add(filepath.Dir(abs)); err != nil {
		return nil, fmt.Errorf("failed to watch %s: %w", abs, err)
	}

	changes := make(chan string, 1)
	go w.loop(ctx, abs, changes)
	return changes, nil
}

func (w *FileWatcher) loop(ctx context.Context, path string, changes chan<- string) {
	defer close(changes)

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != path {
				continue
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
				continue
			}
			timer.Reset(w.debounce)
		case <-timer.C:
			select {
			case changes <- path:
			default:
				// 未読の通知があればまとめる
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("ファイル監視でエラーが発生しました", "path", path, "error", err)
		}
	}
}

// Close は監視を終了します
func (w *FileWatcher) Close() error {
	return w.watcher.Close()
}
