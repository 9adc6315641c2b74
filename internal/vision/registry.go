package vision

import (
	"fmt"

	apperrors "go-vision-lens/internal/errors"
	"go-vision-lens/pkg/models"
)

// Registry maps user-facing model keys to vision model identifiers
type Registry struct {
	models     []models.ModelInfo
	byKey      map[string]models.ModelInfo
	defaultKey string
}

// NewRegistry builds a registry. defaultKey must name one of the entries.
func NewRegistry(entries []models.ModelInfo, defaultKey string) (*Registry, error) {
	if len(entries) == 0 {
		return nil, fmt.Errorf("model registry needs at least one entry")
	}
	r := &Registry{
		models:     make([]models.ModelInfo, len(entries)),
		byKey:      make(map[string]models.ModelInfo, len(entries)),
		defaultKey: defaultKey,
	}
	copy(r.models, entries)
	for _, m := range entries {
		if _, dup := r.byKey[m.Key]; dup {
			return nil, fmt.Errorf("duplicate model key %q", m.Key)
		}
		r.byKey[m.Key] = m
	}
	if _, ok := r.byKey[defaultKey]; !ok {
		return nil, fmt.Errorf("default model %q is not registered", defaultKey)
	}
	return r, nil
}

// Models returns the entries in registration order
func (r *Registry) Models() []models.ModelInfo {
	out := make([]models.ModelInfo, len(r.models))
	copy(out, r.models)
	return out
}

// DefaultKey returns the key selected for new sessions
func (r *Registry) DefaultKey() string {
	return r.defaultKey
}

// Has reports whether key is registered
func (r *Registry) Has(key string) bool {
	_, ok := r.byKey[key]
	return ok
}

// Resolve returns the entry for key; an empty key resolves to the default
func (r *Registry) Resolve(key string) (models.ModelInfo, error) {
	if key == "" {
		key = r.defaultKey
	}
	m, ok := r.byKey[key]
	if !ok {
		return models.ModelInfo{}, apperrors.NewValidationError(fmt.Sprintf("Unknown model %q", key), nil)
	}
	return m, nil
}
