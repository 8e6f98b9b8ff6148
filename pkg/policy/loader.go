package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// DefaultReloadDelay debounces bursts of file events into one reload.
const DefaultReloadDelay = 500 * time.Millisecond

// decoders turn file contents into a policy, keyed by extension.
var decoders = map[string]func(path string, data []byte) (*Policy, error){
	".rego": decodeRego,
	".json": func(_ string, data []byte) (*Policy, error) {
		var p Policy
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("parse JSON policy: %w", err)
		}
		return definedPolicy(&p)
	},
	".yaml": decodeYAML,
	".yml":  decodeYAML,
}

// Loader reads policies from .rego files and from .json or .yaml
// definitions that embed Rego. Parsed files are cached by path until they
// change under Watch or ClearCache is called.
type Loader struct {
	logger      zerolog.Logger
	reloadDelay time.Duration

	mu    sync.RWMutex
	cache map[string]*Policy

	watcher *fsnotify.Watcher
}

// NewLoader creates a policy loader.
func NewLoader(logger zerolog.Logger) *Loader {
	return &Loader{
		logger:      logger.With().Str("component", "policy-loader").Logger(),
		cache:       make(map[string]*Policy),
		reloadDelay: DefaultReloadDelay,
	}
}

// LoadFromPaths loads every policy file under paths. A path that cannot be
// read fails the load; unreadable files found inside a directory are
// logged and skipped.
func (l *Loader) LoadFromPaths(ctx context.Context, paths []string) ([]Policy, error) {
	var all []Policy
	for _, root := range paths {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || (path != root && !isPolicyFile(path)) {
				return nil
			}
			p, err := l.loadFromFile(ctx, path)
			switch {
			case err == nil:
				all = append(all, *p)
			case path == root:
				return err
			default:
				l.logger.Warn().Err(err).Str("path", path).Msg("Skipping policy file")
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load policies from %s: %w", root, err)
		}
	}

	l.logger.Info().Int("total", len(all)).Int("sources", len(paths)).Msg("Policies loaded")
	return all, nil
}

func (l *Loader) loadFromFile(_ context.Context, path string) (*Policy, error) {
	l.mu.RLock()
	cached, ok := l.cache[path]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	decode, ok := decoders[filepath.Ext(path)]
	if !ok {
		return nil, fmt.Errorf("unsupported policy file type: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	p, err := decode(path, data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	l.mu.Lock()
	l.cache[path] = p
	l.mu.Unlock()

	l.logger.Debug().Str("path", path).Str("policy", p.Name).Msg("Policy loaded")
	return p, nil
}

func isPolicyFile(path string) bool {
	_, ok := decoders[filepath.Ext(path)]
	return ok
}

// decodeRego names the policy after its file. Leading comments become the
// description; a "# severity: <level>" comment sets the severity.
func decodeRego(path string, data []byte) (*Policy, error) {
	description, severity := parseHeader(string(data))
	now := time.Now()
	return &Policy{
		Name:        strings.TrimSuffix(filepath.Base(path), ".rego"),
		Description: description,
		Rego:        string(data),
		Severity:    severity,
		Enabled:     true,
		Metadata:    map[string]interface{}{"source": path},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

func decodeYAML(_ string, data []byte) (*Policy, error) {
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse YAML policy: %w", err)
	}
	return definedPolicy(&p)
}

// definedPolicy checks a decoded definition and fills its defaults.
func definedPolicy(p *Policy) (*Policy, error) {
	if p.Name == "" {
		return nil, errors.New("policy definition has no name")
	}
	if p.Severity == "" {
		p.Severity = SeverityWarning
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = p.CreatedAt
	}
	return p, nil
}

// parseHeader reads the leading comment block of a Rego file.
func parseHeader(content string) (string, Severity) {
	severity := SeverityWarning
	var parts []string

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		comment, isComment := strings.CutPrefix(line, "#")
		if !isComment {
			if line != "" && len(parts) > 0 {
				break
			}
			continue
		}
		comment = strings.TrimSpace(comment)
		if level, ok := strings.CutPrefix(comment, "severity:"); ok {
			severity = Severity(strings.TrimSpace(level))
		} else if comment != "" {
			parts = append(parts, comment)
		}
	}
	return strings.Join(parts, " "), severity
}

// Watch reloads policies from paths whenever a policy file changes and hands
// the result to reloadFn. It returns once the watcher is set up; reloads
// run on the watch goroutine, one at a time, until ctx is done.
func (l *Loader) Watch(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create policy watcher: %w", err)
	}
	l.watcher = watcher

	for _, root := range paths {
		// Directories are watched recursively; fsnotify is not.
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() || path == root {
				return watcher.Add(path)
			}
			return nil
		})
		if err != nil {
			l.logger.Warn().Err(err).Str("path", root).Msg("Not watching policy path")
		}
	}

	go l.watchLoop(ctx, paths, reloadFn)

	l.logger.Info().Int("paths", len(paths)).Msg("Watching policy paths")
	return nil
}

func (l *Loader) watchLoop(ctx context.Context, paths []string, reloadFn func([]Policy) error) {
	defer l.watcher.Close()

	debounce := time.NewTimer(l.reloadDelay)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if !isPolicyFile(ev.Name) {
				continue
			}
			l.logger.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("Policy file changed")

			l.mu.Lock()
			delete(l.cache, ev.Name)
			l.mu.Unlock()
			debounce.Reset(l.reloadDelay)

		case <-debounce.C:
			if err := l.reload(ctx, paths, reloadFn); err != nil {
				l.logger.Error().Err(err).Msg("Policy reload failed")
			}

		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Error().Err(err).Msg("Policy watcher error")
		}
	}
}

func (l *Loader) reload(ctx context.Context, paths []string, reloadFn func([]Policy) error) error {
	policies, err := l.LoadFromPaths(ctx, paths)
	if err != nil {
		return err
	}
	if err := reloadFn(policies); err != nil {
		return fmt.Errorf("apply reloaded policies: %w", err)
	}
	l.logger.Info().Int("count", len(policies)).Msg("Policies reloaded")
	return nil
}

// StopWatching stops watching for file changes.
func (l *Loader) StopWatching() error {
	if l.watcher != nil {
		return l.watcher.Close()
	}
	return nil
}

// ClearCache clears the policy cache.
func (l *Loader) ClearCache() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.cache = make(map[string]*Policy)
	l.logger.Debug().Msg("Policy cache cleared")
}
