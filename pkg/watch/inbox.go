// Package watch monitors an inbox directory for delivered amendment act
// files and feeds them to the consolidation engine as they arrive.
package watch

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/coolbeans/consolex/pkg/amend"
	"github.com/coolbeans/consolex/pkg/seed"
	"github.com/coolbeans/consolex/pkg/types"
)

// Engine is the slice of the consolidation engine the watcher needs.
// Implemented by consolidate.Engine.
type Engine interface {
	ProcessText(meta amend.ActMeta, raw string) (types.ConsolidationRun, error)
}

// Inbox watches a directory of YAML act files. Files present at startup are
// processed in name order, then filesystem events drive processing. A file
// seen twice is harmless: the engine deduplicates by act id.
type Inbox struct {
	dir      string
	engine   Engine
	debounce time.Duration

	// OnRun, when set, receives every recorded run.
	OnRun func(path string, run types.ConsolidationRun)

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewInbox creates a watcher over dir.
func NewInbox(dir string, engine Engine) *Inbox {
	return &Inbox{
		dir:      dir,
		engine:   engine,
		debounce: 250 * time.Millisecond,
		pending:  make(map[string]time.Time),
	}
}

// Run processes existing files, then watches for new ones until ctx is
// cancelled. The directory is registered before the startup scan, so a file
// delivered during the scan is caught by either path; processing it twice is
// a duplicate no-op.
func (in *Inbox) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(in.dir); err != nil {
		return fmt.Errorf("watch %s: %w", in.dir, err)
	}

	if err := in.processExisting(); err != nil {
		return err
	}

	ticker := time.NewTicker(in.debounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isActFile(event.Name) {
				continue
			}
			in.mu.Lock()
			in.pending[event.Name] = time.Now()
			in.mu.Unlock()

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Printf("watch: %v", err)

		case now := <-ticker.C:
			for _, path := range in.takeSettled(now) {
				in.process(path)
			}
		}
	}
}

// processExisting handles files already in the inbox, sorted by name so
// delivery order is deterministic.
func (in *Inbox) processExisting() error {
	entries, err := os.ReadDir(in.dir)
	if err != nil {
		return fmt.Errorf("read inbox: %w", err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !isActFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(in.dir, e.Name()))
	}
	sort.Strings(paths)

	for _, path := range paths {
		in.process(path)
	}
	return nil
}

// takeSettled removes and returns pending paths whose last event is older
// than the debounce window.
func (in *Inbox) takeSettled(now time.Time) []string {
	in.mu.Lock()
	defer in.mu.Unlock()

	var ready []string
	for path, last := range in.pending {
		if now.Sub(last) >= in.debounce {
			ready = append(ready, path)
			delete(in.pending, path)
		}
	}
	sort.Strings(ready)
	return ready
}

func (in *Inbox) process(path string) {
	meta, raw, err := seed.LoadAct(path)
	if err != nil {
		log.Printf("watch: skip %s: %v", path, err)
		return
	}

	run, err := in.engine.ProcessText(meta, raw)
	if err != nil {
		log.Printf("watch: %s: consolidation error: %v", path, err)
		return
	}
	log.Printf("watch: %s: act %s -> %s", filepath.Base(path), meta.ID, run.Status)

	if in.OnRun != nil {
		in.OnRun(path, run)
	}
}

func isActFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
