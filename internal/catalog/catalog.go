// Package catalog loads the course sessions the tutor can talk about.
package catalog

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/aiamooz/amooz-tutor/internal/models"
)

// Catalog is a read-only set of course sessions keyed by id.
type Catalog struct {
	sessions map[string]*models.Session
}

type file struct {
	Sessions []models.Session `yaml:"sessions"`
}

// New builds a catalog from sessions, rejecting duplicate or empty ids.
func New(sessions ...models.Session) (*Catalog, error) {
	c := &Catalog{sessions: make(map[string]*models.Session, len(sessions))}
	for i := range sessions {
		s := sessions[i]
		if strings.TrimSpace(s.ID) == "" {
			return nil, fmt.Errorf("session %d has no id", i)
		}
		if _, dup := c.sessions[s.ID]; dup {
			return nil, fmt.Errorf("duplicate session id %q", s.ID)
		}
		seen := make(map[string]bool, len(s.Questions))
		for _, q := range s.Questions {
			if q.QuestionID == "" {
				return nil, fmt.Errorf("session %q: %w", s.ID, models.ErrEmptyQuestionID)
			}
			if seen[q.QuestionID] {
				return nil, fmt.Errorf("session %q: duplicate question id %q", s.ID, q.QuestionID)
			}
			seen[q.QuestionID] = true
		}
		c.sessions[s.ID] = &s
	}
	return c, nil
}

// Parse decodes a YAML document with a top-level "sessions" list.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Sessions...)
}

// Load reads and parses the catalog file at path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, err
	}
	slog.Info("Catalog loaded", "path", path, "sessions", len(c.sessions))
	return c, nil
}

// Session returns the session with the given id.
func (c *Catalog) Session(id string) (*models.Session, error) {
	if c != nil {
		if s, ok := c.sessions[id]; ok {
			return s, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrSessionNotFound, id)
}

// IDs returns the session ids in sorted order.
func (c *Catalog) IDs() []string {
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
