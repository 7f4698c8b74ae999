package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

var unsafeChars = regexp.MustCompile(`[\\/*?:"<>|]`)

// SafeName replaces the characters that cannot appear in a file name with '_'.
func SafeName(name string) string {
	return unsafeChars.ReplaceAllString(name, "_")
}

// FS keeps one JSON file per idea under a directory per principal topic:
// <root>/<principal>/<idea>.json.
type FS struct {
	root string
	mu   *sync.RWMutex
}

var (
	_ Store   = (*FS)(nil)
	_ Watcher = (*FS)(nil)
)

func NewFS(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("creating store root: %w", err)
	}
	return &FS{root: root, mu: &sync.RWMutex{}}, nil
}

func (f *FS) Root() string {
	return f.root
}

func (f *FS) path(principal, idea string) string {
	return filepath.Join(f.root, SafeName(principal), SafeName(idea)+".json")
}

func (f *FS) Topics(ctx context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("listing topics: %w", err)
	}
	topics := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			topics = append(topics, e.Name())
		}
	}
	sort.Strings(topics)
	return topics, nil
}

func (f *FS) Load(ctx context.Context, principal, idea string) (Connections, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	data, err := os.ReadFile(f.path(principal, idea))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading connections of %q: %w", idea, err)
	}

	var conns Connections
	if err := json.Unmarshal(data, &conns); err != nil {
		return nil, fmt.Errorf("parsing connections of %q: %w", idea, err)
	}
	return conns, nil
}

func (f *FS) Save(ctx context.Context, principal, idea string, conns Connections) error {
	if len(conns) == 0 {
		return nil
	}

	data, err := json.MarshalIndent(conns, "", "    ")
	if err != nil {
		return fmt.Errorf("encoding connections of %q: %w", idea, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	path := f.path(principal, idea)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating topic directory: %w", err)
	}

	// Write then rename so a watcher never reads a half written file.
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("saving connections of %q: %w", idea, err)
	}
	return nil
}

func (f *FS) Close() error {
	return nil
}

// watchSettle is how long a principal has to stay quiet before a change is reported,
// so saving many files in a row produces one notification.
const watchSettle = 200 * time.Millisecond

// Watch reports the principal topic of every file created, written, renamed or removed
// under the root until ctx is done. It blocks.
func (f *FS) Watch(ctx context.Context, changed func(principal string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(f.root); err != nil {
		return fmt.Errorf("watching %s: %w", f.root, err)
	}
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return fmt.Errorf("listing topics: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			if err := w.Add(filepath.Join(f.root, e.Name())); err != nil {
				return fmt.Errorf("watching %s: %w", e.Name(), err)
			}
		}
	}

	pending := map[string]struct{}{}
	ticker := time.NewTicker(watchSettle)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			principal, isDir := f.principalOf(ev)
			if principal == "" {
				continue
			}
			if isDir && ev.Has(fsnotify.Create) {
				// New topic directory, fsnotify is not recursive.
				_ = w.Add(ev.Name)
			} else if strings.HasPrefix(filepath.Base(ev.Name), ".tmp-") {
				continue
			}
			pending[principal] = struct{}{}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watcher: %w", err)

		case <-ticker.C:
			for principal := range pending {
				changed(principal)
			}
			clear(pending)
		}
	}
}

// principalOf maps an event path to the principal directory it belongs to.
func (f *FS) principalOf(ev fsnotify.Event) (principal string, isDir bool) {
	rel, err := filepath.Rel(f.root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 1 {
		info, err := os.Stat(ev.Name)
		return parts[0], err == nil && info.IsDir()
	}
	return parts[0], false
}
