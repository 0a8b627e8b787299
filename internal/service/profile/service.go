// Package profile stores persona customisations and the onboarding flags of a
// single device partition.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/storage"
)

var (
	ErrNameRequired   = errors.New("custom name is required")
	ErrGenderRequired = errors.New("gender is required")
	ErrInvalidColor   = errors.New("color is not in the palette")
)

const flagTrue = "true"

// Service reads and writes through to the device partition.
type Service struct {
	store    storage.Store
	registry *persona.Registry
}

// NewService returns a profile Service over store.
func NewService(store storage.Store, registry *persona.Registry) *Service {
	return &Service{store: store, registry: registry}
}

// Profile returns the stored customisation of personaID. Fields never written
// are filled from the persona's default; the default itself is not persisted.
func (s *Service) Profile(ctx context.Context, personaID string) (persona.Profile, error) {
	def, ok := s.registry.DefaultProfile(personaID)
	if !ok {
		return persona.Profile{}, fmt.Errorf("%w: %s", persona.ErrNotFound, personaID)
	}

	p := def
	for field, dst := range map[string]*string{
		storage.FieldName:   &p.CustomName,
		storage.FieldGender: &p.Gender,
		storage.FieldColor:  &p.Color,
	} {
		value, ok, err := s.store.Get(ctx, storage.PersonaKey(personaID, field))
		if err != nil {
			return persona.Profile{}, fmt.Errorf("failed to read persona %s %s: %w", personaID, field, err)
		}
		if ok && value != "" {
			*dst = value
		}
	}
	return p, nil
}

// Entries validates p and returns the storage entries that persist it, so
// callers can write it together with other keys in one batch.
func (s *Service) Entries(personaID string, p persona.Profile) (map[string]string, error) {
	if _, ok := s.registry.FindByID(personaID); !ok {
		return nil, fmt.Errorf("%w: %s", persona.ErrNotFound, personaID)
	}
	if strings.TrimSpace(p.CustomName) == "" {
		return nil, ErrNameRequired
	}
	if strings.TrimSpace(p.Gender) == "" {
		return nil, ErrGenderRequired
	}
	if !persona.InPalette(p.Color) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidColor, p.Color)
	}
	return map[string]string{
		storage.PersonaKey(personaID, storage.FieldName):   strings.TrimSpace(p.CustomName),
		storage.PersonaKey(personaID, storage.FieldGender): strings.TrimSpace(p.Gender),
		storage.PersonaKey(personaID, storage.FieldColor):  p.Color,
	}, nil
}

// SetProfile validates and persists p.
func (s *Service) SetProfile(ctx context.Context, personaID string, p persona.Profile) error {
	entries, err := s.Entries(personaID, p)
	if err != nil {
		return err
	}
	if err := s.store.SetMany(ctx, entries); err != nil {
		return fmt.Errorf("failed to save persona %s profile: %w", personaID, err)
	}
	return nil
}

// Language returns the stored conversation language, English when unset.
func (s *Service) Language(ctx context.Context) (persona.Language, error) {
	raw, ok, err := s.store.Get(ctx, storage.KeyLanguage)
	if err != nil {
		return persona.English, fmt.Errorf("failed to read language: %w", err)
	}
	if !ok {
		return persona.English, nil
	}
	lang, ok := persona.ParseLanguage(raw)
	if !ok {
		return persona.English, nil
	}
	return lang, nil
}

// SetLanguage persists the conversation language.
func (s *Service) SetLanguage(ctx context.Context, lang persona.Language) error {
	if err := s.store.Set(ctx, storage.KeyLanguage, string(lang)); err != nil {
		return fmt.Errorf("failed to save language: %w", err)
	}
	return nil
}

// SetupComplete reports whether onboarding finished on this device.
func (s *Service) SetupComplete(ctx context.Context) (bool, error) {
	return s.flag(ctx, storage.KeySetupComplete)
}

// ClearSetupComplete forgets the finished onboarding so persona setup runs again.
func (s *Service) ClearSetupComplete(ctx context.Context) error {
	if err := s.store.Delete(ctx, storage.KeySetupComplete); err != nil {
		return fmt.Errorf("failed to clear setup flag: %w", err)
	}
	return nil
}

// Verified reports whether the legal age gate was passed.
func (s *Service) Verified(ctx context.Context) (bool, error) {
	return s.flag(ctx, storage.KeyVerified)
}

// MarkVerified records a passed age gate.
func (s *Service) MarkVerified(ctx context.Context) error {
	if err := s.store.Set(ctx, storage.KeyVerified, flagTrue); err != nil {
		return fmt.Errorf("failed to save verification: %w", err)
	}
	return nil
}

// ActivePersona returns the remembered persona id, if any.
func (s *Service) ActivePersona(ctx context.Context) (string, bool, error) {
	id, ok, err := s.store.Get(ctx, storage.KeyCurrentPersona)
	if err != nil {
		return "", false, fmt.Errorf("failed to read active persona: %w", err)
	}
	if !ok || id == "" {
		return "", false, nil
	}
	if _, known := s.registry.FindByID(id); !known {
		return "", false, nil
	}
	return id, true, nil
}

// SetActivePersona remembers personaID as the persona to reopen on restart.
func (s *Service) SetActivePersona(ctx context.Context, personaID string) error {
	if err := s.store.Set(ctx, storage.KeyCurrentPersona, personaID); err != nil {
		return fmt.Errorf("failed to save active persona: %w", err)
	}
	return nil
}

// CompleteSetup persists p, the setup-complete flag and the active persona in
// one atomic write.
func (s *Service) CompleteSetup(ctx context.Context, personaID string, p persona.Profile) error {
	entries, err := s.Entries(personaID, p)
	if err != nil {
		return err
	}
	entries[storage.KeySetupComplete] = flagTrue
	entries[storage.KeyCurrentPersona] = personaID

	if err := s.store.SetMany(ctx, entries); err != nil {
		return fmt.Errorf("failed to complete setup: %w", err)
	}
	return nil
}

// Reset removes every onboarding, profile and conversation key of the partition.
func (s *Service) Reset(ctx context.Context) error {
	if err := s.store.DeletePrefix(ctx, storage.PartitionPrefix); err != nil {
		return fmt.Errorf("failed to reset device data: %w", err)
	}
	return nil
}

func (s *Service) flag(ctx context.Context, key string) (bool, error) {
	v, ok, err := s.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return ok && v == flagTrue, nil
}
