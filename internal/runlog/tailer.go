package runlog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// LogTailer streams new lines from the queries file of a run directory as
// they are written, for `crs logs`. It uses fsnotify for
// efficient file change detection, falling back to a short poll interval
// so events missed under heavy write load are still picked up.
type LogTailer struct {
	path    string
	watcher *fsnotify.Watcher
	mu      sync.Mutex
	closed  bool
}

// NewLogTailer creates a new LogTailer for the given file path. The file
// does not need to exist yet; the tailer waits for its creation.
func NewLogTailer(path string) (*LogTailer, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating fsnotify watcher: %w", err)
	}

	return &LogTailer{
		path:    path,
		watcher: watcher,
	}, nil
}

// Tail streams lines from the log file. The returned channel is closed
// when the context is cancelled or Close is called. If follow is false,
// it dumps existing content and returns immediately.
func (t *LogTailer) Tail(ctx context.Context, follow bool) (<-chan string, error) {
	lines := make(chan string, 100)

	go t.tailLoop(ctx, lines, follow)

	return lines, nil
}

func (t *LogTailer) tailLoop(ctx context.Context, lines chan<- string, follow bool) {
	defer close(lines)

	if err := t.waitForFile(ctx); err != nil {
		return
	}

	offset, err := t.readExistingContent(ctx, lines)
	if err != nil {
		return
	}

	if !follow {
		return
	}

	t.streamNewContent(ctx, lines, offset)
}

func (t *LogTailer) waitForFile(ctx context.Context) error {
	if _, err := os.Stat(t.path); err == nil {
		return nil
	}

	parentDir := filepath.Dir(t.path)
	if err := t.ensureParentAndWatch(parentDir); err != nil {
		return err
	}

	return t.pollForFileCreation(ctx)
}

func (t *LogTailer) ensureParentAndWatch(parentDir string) error {
	if err := os.MkdirAll(parentDir, 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	if err := t.watcher.Add(parentDir); err != nil {
		return fmt.Errorf("watching parent directory: %w", err)
	}

	return nil
}

func (t *LogTailer) pollForFileCreation(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-t.watcher.Events:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			if event.Name == t.path && (event.Has(fsnotify.Create) || event.Has(fsnotify.Write)) {
				return nil
			}
		case <-ticker.C:
			if _, err := os.Stat(t.path); err == nil {
				return nil
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return fmt.Errorf("watcher closed")
			}
			return fmt.Errorf("watcher error: %w", err)
		}
	}
}

func (t *LogTailer) readExistingContent(ctx context.Context, lines chan<- string) (int64, error) {
	file, err := os.Open(t.path)
	if err != nil {
		return 0, fmt.Errorf("opening log file: %w", err)
	}
	defer file.Close()

	return t.scanAndSendLines(ctx, file, lines)
}

func (t *LogTailer) scanAndSendLines(ctx context.Context, r io.Reader, lines chan<- string) (int64, error) {
	scanner := bufio.NewScanner(r)
	var offset int64

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return offset, ctx.Err()
		case lines <- scanner.Text():
			offset += int64(len(scanner.Bytes())) + 1
		}
	}

	if err := scanner.Err(); err != nil {
		return offset, fmt.Errorf("scanning log file: %w", err)
	}

	return offset, nil
}

func (t *LogTailer) streamNewContent(ctx context.Context, lines chan<- string, offset int64) {
	if err := t.watcher.Add(t.path); err != nil {
		return
	}

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-t.watcher.Events:
			if !ok {
				return
			}
			offset = t.handleFileEvent(ctx, event, lines, offset)
		case <-ticker.C:
			offset = t.readNewLines(ctx, lines, offset)
		case _, ok := <-t.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (t *LogTailer) handleFileEvent(ctx context.Context, event fsnotify.Event, lines chan<- string, offset int64) int64 {
	if event.Name != t.path {
		return offset
	}

	if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
		return t.readNewLines(ctx, lines, offset)
	}

	return offset
}

func (t *LogTailer) readNewLines(ctx context.Context, lines chan<- string, offset int64) int64 {
	file, err := os.Open(t.path)
	if err != nil {
		return offset
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return offset
	}

	if info.Size() < offset {
		offset = 0
	}

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset
	}

	newOffset, _ := t.scanAndSendLines(ctx, file, lines)
	return offset + newOffset
}

// Close stops the tailer and releases resources.
func (t *LogTailer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true

	if t.watcher != nil {
		return t.watcher.Close()
	}
	return nil
}

// Path returns the path being tailed.
func (t *LogTailer) Path() string {
	return t.path
}
