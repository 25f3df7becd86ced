package acl

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"radiohub/internal/logging"
)

const defaultReloadDebounce = 100 * time.Millisecond

// FileStore keeps the ACL in a YAML file holding a sequence of rid and flag
// mappings.
//
// Edits made by other processes are picked up through fsnotify. The parent
// directory is watched because editors usually replace files by rename.
type FileStore struct {
	path     string
	logger   *logging.Logger
	debounce time.Duration

	mu      sync.RWMutex
	rows    []fileRow
	watcher *fsnotify.Watcher
	done    chan struct{}
	closed  bool
}

type fileRow struct {
	RID  string `yaml:"rid"`
	Flag string `yaml:"flag"`
}

type FileOptions struct {
	Path     string
	Logger   *logging.Logger
	Watch    bool
	Debounce time.Duration
}

func OpenFileStore(options FileOptions) (*FileStore, error) {
	if options.Path == "" {
		return nil, errors.New("file acl: path is required")
	}
	logger := options.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	debounce := options.Debounce
	if debounce <= 0 {
		debounce = defaultReloadDebounce
	}
	store := &FileStore{
		path:     options.Path,
		logger:   logger.ForCategory("acl"),
		debounce: debounce,
		done:     make(chan struct{}),
	}
	if err := store.Reload(); err != nil {
		return nil, err
	}
	if options.Watch {
		if err := store.watch(); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *FileStore) Lookup(_ context.Context, rid string) (Entry, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for index, row := range s.rows {
		if matchRID(row.RID, rid) {
			return Entry{RID: row.RID, Flag: row.Flag, Row: index + 1}, true, nil
		}
	}
	return Entry{}, false, nil
}

func (s *FileStore) Update(_ context.Context, entry Entry, flag string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	index := entry.Row - 1
	if index < 0 || index >= len(s.rows) || !matchRID(s.rows[index].RID, entry.RID) {
		return ErrNotFound
	}
	previous := s.rows[index].Flag
	s.rows[index].Flag = flag
	if err := s.writeLocked(); err != nil {
		s.rows[index].Flag = previous
		return err
	}
	return nil
}

// Reload re-reads the file. A missing file yields an empty table.
func (s *FileStore) Reload() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.mu.Lock()
		s.rows = nil
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		return fmt.Errorf("file acl: read %s: %w", s.path, err)
	}
	var rows []fileRow
	if err := yaml.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("file acl: parse %s: %w", s.path, err)
	}
	s.mu.Lock()
	s.rows = rows
	s.mu.Unlock()
	return nil
}

func (s *FileStore) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	watcher := s.watcher
	s.mu.Unlock()

	close(s.done)
	if watcher == nil {
		return nil
	}
	return watcher.Close()
}

func (s *FileStore) writeLocked() error {
	data, err := yaml.Marshal(s.rows)
	if err != nil {
		return fmt.Errorf("file acl: encode: %w", err)
	}
	temp, err := os.CreateTemp(filepath.Dir(s.path), ".acl-*.yaml")
	if err != nil {
		return fmt.Errorf("file acl: write: %w", err)
	}
	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())
		return fmt.Errorf("file acl: write: %w", err)
	}
	if err := temp.Close(); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("file acl: write: %w", err)
	}
	if err := os.Rename(temp.Name(), s.path); err != nil {
		_ = os.Remove(temp.Name())
		return fmt.Errorf("file acl: write: %w", err)
	}
	return nil
}

func (s *FileStore) watch() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("file acl: watch: %w", err)
	}
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		_ = watcher.Close()
		return fmt.Errorf("file acl: watch: %w", err)
	}
	s.mu.Lock()
	s.watcher = watcher
	s.mu.Unlock()
	go s.watchLoop(watcher)
	return nil
}

func (s *FileStore) watchLoop(watcher *fsnotify.Watcher) {
	target := filepath.Clean(s.path)
	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(s.debounce, s.reloadFromWatch)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.logger.Warn("acl watch error", map[string]string{"path": s.path, "error": err.Error()})
		case <-s.done:
			return
		}
	}
}

func (s *FileStore) reloadFromWatch() {
	select {
	case <-s.done:
		return
	default:
	}
	if err := s.Reload(); err != nil {
		s.logger.Warn("acl reload failed", map[string]string{"path": s.path, "error": err.Error()})
		return
	}
	s.mu.RLock()
	count := len(s.rows)
	s.mu.RUnlock()
	s.logger.Info("acl reloaded", map[string]string{"path": s.path, "rows": fmt.Sprint(count)})
}
