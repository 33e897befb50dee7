// Package prompts loads and renders the prompt templates that drive every
// LLM call in the engine.
//
// Templates are plain text files with {placeholder} markers. A built-in set
// is embedded in the binary; a configured prompt directory overrides
// individual templates by file name. A template that fails to load is
// replaced by an error-marked placeholder rather than aborting startup — the
// components using it fall back to minimal built-in prompts and the game
// stays playable.
package prompts

import (
	"embed"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// Template names. Each maps to <name>.txt in the prompt directory.
const (
	Gamemaster         = "gamemaster"
	NarrativeSystem    = "narrative_system"
	NarrativeTurn      = "narrative_turn"
	Dialogue           = "dialogue"
	DialogueSummary    = "dialogue_summary"
	LocationGeneration = "location_generation"
	Translator         = "translator"
)

// errorMarker prefixes the body of a template that failed to load. Usable
// checks for it; the marker never reaches an LLM.
const errorMarker = "Error:"

//go:embed defaults/*.txt
var defaultFS embed.FS

// Store holds the loaded template bodies.
type Store struct {
	templates map[string]string
}

// Load returns a Store with the embedded defaults, overridden by any
// matching .txt files in dir. An empty dir loads only the defaults.
// A template file that exists but cannot be read is recorded as error-marked
// and logged; Load itself only fails when the embedded defaults are broken,
// which would be a packaging bug.
func Load(dir string) (*Store, error) {
	s := &Store{templates: make(map[string]string)}

	entries, err := defaultFS.ReadDir("defaults")
	if err != nil {
		return nil, fmt.Errorf("prompts: embedded defaults unavailable: %w", err)
	}
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), ".txt")
		body, err := defaultFS.ReadFile("defaults/" + e.Name())
		if err != nil {
			return nil, fmt.Errorf("prompts: read embedded %s: %w", e.Name(), err)
		}
		s.templates[name] = string(body)
	}

	if dir == "" {
		return s, nil
	}

	files, err := os.ReadDir(dir)
	if err != nil {
		slog.Warn("prompt directory unreadable, using embedded defaults", "dir", dir, "error", err)
		return s, nil
	}
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".txt") {
			continue
		}
		name := strings.TrimSuffix(f.Name(), ".txt")
		body, err := os.ReadFile(filepath.Join(dir, f.Name()))
		if err != nil {
			slog.Warn("prompt template unreadable", "template", name, "error", err)
			s.templates[name] = fmt.Sprintf("%s failed to load template %s: %v", errorMarker, name, err)
			continue
		}
		s.templates[name] = string(body)
	}
	return s, nil
}

// Usable reports whether the named template loaded cleanly. Components
// consult it before rendering and fall back to a built-in minimal prompt
// when it returns false.
func (s *Store) Usable(name string) bool {
	body, ok := s.templates[name]
	return ok && !strings.HasPrefix(body, errorMarker)
}

// Render substitutes {key} markers in the named template with vars values.
// Unknown markers are left in place so a malformed template degrades visibly
// in logs instead of silently dropping context.
func (s *Store) Render(name string, vars map[string]string) (string, error) {
	body, ok := s.templates[name]
	if !ok {
		return "", fmt.Errorf("prompts: unknown template %q", name)
	}
	if strings.HasPrefix(body, errorMarker) {
		return "", fmt.Errorf("prompts: template %q did not load: %s", name, body)
	}

	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(body), nil
}
