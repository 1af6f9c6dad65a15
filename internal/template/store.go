// Package template manages named, reusable search criteria.
package template

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kensaku-io/kensaku/internal/models"
)

// ErrNotFound is returned when no template exists under the requested name.
var ErrNotFound = errors.New("template not found")

// ErrConflict is returned by Create when the name is already taken and
// overwrite was not requested.
var ErrConflict = errors.New("template already exists")

// Persistence stores templates across restarts. The store works without one;
// templates are then process-lifetime only.
type Persistence interface {
	SaveTemplate(tpl *models.SearchTemplate) error
	DeleteTemplate(name string) error
	LoadTemplates() ([]*models.SearchTemplate, error)
}

// Store is a mutex-serialized template registry. Reads return copies so
// callers can never mutate stored criteria.
type Store struct {
	mu        sync.Mutex
	templates map[string]*models.SearchTemplate
	persist   Persistence
	logger    *zap.Logger
	now       func() time.Time
}

// NewStore creates a store, loading persisted templates when persist is
// non-nil. A load failure is logged and leaves the store empty rather than
// failing startup.
func NewStore(persist Persistence, logger *zap.Logger) *Store {
	s := &Store{
		templates: make(map[string]*models.SearchTemplate),
		persist:   persist,
		logger:    logger,
		now:       time.Now,
	}
	if persist != nil {
		tpls, err := persist.LoadTemplates()
		if err != nil {
			logger.Warn("Failed to load saved templates", zap.Error(err))
		} else {
			for _, tpl := range tpls {
				s.templates[tpl.Name] = tpl
			}
		}
	}
	return s
}

// Create registers a template. An existing name is an ErrConflict unless
// overwrite is set, in which case the template is replaced and its creation
// time reset.
func (s *Store) Create(name, description string, criteria models.SearchCriteria, overwrite bool) (*models.SearchTemplate, error) {
	if name == "" {
		return nil, fmt.Errorf("template name must not be empty")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[name]; exists && !overwrite {
		return nil, ErrConflict
	}
	tpl := &models.SearchTemplate{
		Name:        name,
		Description: description,
		Criteria:    *criteria.Clone(),
		CreatedAt:   s.now(),
	}
	s.templates[name] = tpl
	if err := s.save(tpl); err != nil {
		return nil, err
	}
	return copyTemplate(tpl), nil
}

// Get returns the named template and records the use.
func (s *Store) Get(name string) (*models.SearchTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[name]
	if !ok {
		return nil, ErrNotFound
	}
	tpl.LastUsedAt = s.now()
	if err := s.save(tpl); err != nil {
		return nil, err
	}
	return copyTemplate(tpl), nil
}

// Update replaces the criteria and description of an existing template.
func (s *Store) Update(name, description string, criteria models.SearchCriteria) (*models.SearchTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tpl, ok := s.templates[name]
	if !ok {
		return nil, ErrNotFound
	}
	tpl.Description = description
	tpl.Criteria = *criteria.Clone()
	if err := s.save(tpl); err != nil {
		return nil, err
	}
	return copyTemplate(tpl), nil
}

// Delete removes the named template.
func (s *Store) Delete(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.templates[name]; !ok {
		return ErrNotFound
	}
	delete(s.templates, name)
	if s.persist != nil {
		if err := s.persist.DeleteTemplate(name); err != nil {
			return fmt.Errorf("failed to delete template: %w", err)
		}
	}
	return nil
}

// List returns all templates sorted by name.
func (s *Store) List() []*models.SearchTemplate {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*models.SearchTemplate, 0, len(s.templates))
	for _, tpl := range s.templates {
		out = append(out, copyTemplate(tpl))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) save(tpl *models.SearchTemplate) error {
	if s.persist == nil {
		return nil
	}
	if err := s.persist.SaveTemplate(tpl); err != nil {
		return fmt.Errorf("failed to save template: %w", err)
	}
	return nil
}

func copyTemplate(tpl *models.SearchTemplate) *models.SearchTemplate {
	cp := *tpl
	cp.Criteria = *tpl.Criteria.Clone()
	return &cp
}
