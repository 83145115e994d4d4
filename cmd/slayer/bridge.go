package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/goccy/go-json"

	"slayer/internal/container"
	"slayer/internal/engine"
	"slayer/internal/envelope"
	"slayer/internal/logging"
	"slayer/internal/project"
)

// fileBridge is the CLI's editing host: the live project is whatever the
// tracked file last contained. External writes to the file are picked up by
// Watch and surface as unsaved changes.
type fileBridge struct {
	mu      sync.Mutex
	path    string
	logger  *slog.Logger
	project *project.Project
}

func newFileBridge(path string, logger *slog.Logger) *fileBridge {
	return &fileBridge{
		path:   path,
		logger: logging.NewComponentLogger(logger, "bridge"),
	}
}

func (b *fileBridge) ProjectData() (*project.Project, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.project == nil {
		return nil, fmt.Errorf("no project loaded")
	}
	return b.project, nil
}

func (b *fileBridge) LoadProjectData(p *project.Project) (project.LoadResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.project = p
	return project.LoadResult{Loaded: p.ActiveAppNames()}, nil
}

// SetProject seeds the bridge directly, bypassing file IO. Used by commands
// that create a fresh project.
func (b *fileBridge) SetProject(p *project.Project) {
	b.mu.Lock()
	b.project = p
	b.mu.Unlock()
}

// reload re-reads the tracked file into the live project without touching
// the engine's change baseline, so the next incremental save captures the
// difference.
func (b *fileBridge) reload() error {
	p, _, err := readProjectFile(b.path)
	if err != nil {
		return err
	}
	b.SetProject(p)
	return nil
}

// Watch follows the tracked file until ctx is cancelled, reloading it and
// invoking onChange after every external write. The parent directory is
// watched so editors that replace the file via rename stay visible.
func (b *fileBridge) Watch(ctx context.Context, onChange func()) error {
	if strings.TrimSpace(b.path) == "" {
		return fmt.Errorf("no project file to watch")
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(b.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(b.path), err)
	}

	target := filepath.Base(b.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(event.Name) != target {
					continue
				}
				if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
					continue
				}
				if err := b.reload(); err != nil {
					b.logger.Warn("reload after file change failed", logging.Args(logging.Error(err))...)
					continue
				}
				b.logger.Debug("project file changed", logging.Args(logging.String("path", b.path))...)
				onChange()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				b.logger.Warn("file watcher error", logging.Args(logging.Error(err))...)
			}
		}
	}()
	return nil
}

// readProjectFile decodes a project file of either flavor: container files
// yield the embedded document alongside the project.
func readProjectFile(path string) (*project.Project, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), engine.ContainerExtension) {
		metadata, document, err := container.Decode(data)
		if err != nil {
			return nil, nil, err
		}
		raw, err := json.Marshal(metadata)
		if err != nil {
			return nil, nil, fmt.Errorf("re-serialize container metadata: %w", err)
		}
		env, err := envelope.NewCodec(0, nil).Decode(raw)
		if err != nil {
			return nil, nil, err
		}
		return env.Project, document, nil
	}
	env, err := envelope.NewCodec(0, nil).Decode(data)
	if err != nil {
		return nil, nil, err
	}
	return env.Project, nil, nil
}
