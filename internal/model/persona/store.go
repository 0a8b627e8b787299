package persona

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a persona id is not in the registry.
var ErrNotFound = errors.New("persona not found")

// Catalog exposes persona lookup for services and HTTP handlers.
type Catalog interface {
	List() []Variant
	FindByID(id string) (Variant, bool)
}

// Registry is the read-only persona catalog.
type Registry struct {
	items []Variant
	index map[string]int
}

// NewRegistry validates items and returns a Registry. Every variant must carry
// an English prompt because English is the fallback for all other languages.
func NewRegistry(items []Variant) (*Registry, error) {
	r := &Registry{
		items: append([]Variant(nil), items...),
		index: make(map[string]int, len(items)),
	}
	for i, item := range r.items {
		if item.ID == "" {
			return nil, fmt.Errorf("persona at position %d has no id", i)
		}
		if _, dup := r.index[item.ID]; dup {
			return nil, fmt.Errorf("duplicate persona id %q", item.ID)
		}
		if r.items[i].Prompts[English] == "" {
			return nil, fmt.Errorf("persona %q has no %s prompt", item.ID, English)
		}
		r.index[item.ID] = i
	}
	return r, nil
}

// MustNewRegistry is NewRegistry for static catalogs; a defect panics.
func MustNewRegistry(items []Variant) *Registry {
	r, err := NewRegistry(items)
	if err != nil {
		panic(err)
	}
	return r
}

// List returns the personas in catalog order.
func (r *Registry) List() []Variant {
	return append([]Variant(nil), r.items...)
}

// FindByID looks up a persona by identifier.
func (r *Registry) FindByID(id string) (Variant, bool) {
	i, ok := r.index[id]
	if !ok {
		return Variant{}, false
	}
	return r.items[i], true
}

// Lookup is FindByID with an error for callers at a trust boundary.
func (r *Registry) Lookup(id string) (Variant, error) {
	v, ok := r.FindByID(id)
	if !ok {
		return Variant{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return v, nil
}

// ResolvePrompt returns the persona's instruction in lang, falling back to
// English. An unknown id is a programming error and panics.
func (r *Registry) ResolvePrompt(id string, lang Language, name string) string {
	v, ok := r.FindByID(id)
	if !ok {
		panic(fmt.Sprintf("persona: ResolvePrompt called with unknown id %q", id))
	}
	return v.Prompt(lang, name)
}

// DefaultProfile synthesises the profile of a persona that was never customised.
// The color is derived from the persona's position in the catalog.
func (r *Registry) DefaultProfile(id string) (Profile, bool) {
	i, ok := r.index[id]
	if !ok {
		return Profile{}, false
	}
	return Profile{
		CustomName: r.items[i].Name,
		Gender:     DefaultGender,
		Color:      Palette[i%len(Palette)],
	}, true
}
