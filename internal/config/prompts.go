package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"sqlinsight/internal/logger"
)

// Prompts is the template file. Every field under system_prompts is required.
type Prompts struct {
	SystemPrompts SystemPrompts `yaml:"system_prompts"`
}

type SystemPrompts struct {
	Primary          string `yaml:"primary"`
	Graphical        string `yaml:"graphical"`
	Descriptive      string `yaml:"descriptive_prompt"`
	ChartJSFormatter string `yaml:"chartjs_formatter"`
	Insights         string `yaml:"Insights"`
}

func (p *Prompts) Validate() error {
	sp := p.SystemPrompts
	var missing []string
	for key, value := range map[string]string{
		"primary":            sp.Primary,
		"graphical":          sp.Graphical,
		"descriptive_prompt": sp.Descriptive,
		"chartjs_formatter":  sp.ChartJSFormatter,
		"Insights":           sp.Insights,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("prompt templates missing system_prompts keys: %s", strings.Join(missing, ", "))
	}
	return nil
}

// LoadPrompts reads and validates a template file.
func LoadPrompts(path string) (*Prompts, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read prompts: %w", err)
	}
	var p Prompts
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse prompts %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// PromptStore serves the current templates and swaps them when the file changes.
type PromptStore struct {
	path    string
	current atomic.Pointer[Prompts]
}

func NewPromptStore(path string) (*PromptStore, error) {
	p, err := LoadPrompts(path)
	if err != nil {
		return nil, err
	}
	s := &PromptStore{path: path}
	s.current.Store(p)
	return s, nil
}

func (s *PromptStore) Get() *Prompts {
	return s.current.Load()
}

// Reload re-reads the file. On error the previous templates stay active.
func (s *PromptStore) Reload() error {
	p, err := LoadPrompts(s.path)
	if err != nil {
		return err
	}
	s.current.Store(p)
	return nil
}

// Watch reloads the templates on every change until ctx is done. The parent
// directory is watched so that editors which replace the file are picked up.
func (s *PromptStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return err
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				logger.Error.Printf("Prompt reload failed, keeping previous templates: %v", err)
				continue
			}
			logger.Info.Printf("Prompt templates reloaded from %s", s.path)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Error.Printf("Prompt watcher: %v", err)
		}
	}
}
