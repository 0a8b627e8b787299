package profile_test

import (
	"context"
	"errors"
	"testing"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/profile"
	"github.com/adultally/ally/backend/internal/storage"
	"github.com/adultally/ally/backend/internal/storage/storagetest"
)

func newService(store storage.Store) *profile.Service {
	return profile.NewService(store, persona.MustNewRegistry(persona.Seed()))
}

func TestProfileDefaultIsNotPersisted(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewFaulty()
	svc := newService(store)

	got, err := svc.Profile(ctx, "confidant")
	if err != nil {
		t.Fatalf("Profile err: %v", err)
	}
	want := persona.Profile{CustomName: "Confidant", Gender: persona.DefaultGender, Color: persona.Palette[1]}
	if got != want {
		t.Fatalf("unexpected default: got %+v want %+v", got, want)
	}
	if store.Writes() != 0 {
		t.Fatalf("reading a default must not write, got %d writes", store.Writes())
	}
}

func TestSetProfileRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newService(storage.NewMemoryStore())

	want := persona.Profile{CustomName: "Sarah", Gender: "Female", Color: persona.Palette[4]}
	if err := svc.SetProfile(ctx, "romantic", want); err != nil {
		t.Fatalf("SetProfile err: %v", err)
	}

	got, err := svc.Profile(ctx, "romantic")
	if err != nil {
		t.Fatalf("Profile err: %v", err)
	}
	if got != want {
		t.Fatalf("got %+v want %+v", got, want)
	}

	// Reading other personas still yields their defaults and leaves the stored one intact.
	if _, err := svc.Profile(ctx, "coach"); err != nil {
		t.Fatalf("Profile err: %v", err)
	}
	got, _ = svc.Profile(ctx, "romantic")
	if got != want {
		t.Fatalf("stored profile changed: %+v", got)
	}
}

func TestSetProfileValidation(t *testing.T) {
	ctx := context.Background()
	svc := newService(storage.NewMemoryStore())

	cases := []struct {
		name    string
		id      string
		profile persona.Profile
		want    error
	}{
		{"blank name", "coach", persona.Profile{CustomName: "  ", Gender: "Male", Color: persona.Palette[0]}, profile.ErrNameRequired},
		{"no gender", "coach", persona.Profile{CustomName: "Alex", Color: persona.Palette[0]}, profile.ErrGenderRequired},
		{"bad color", "coach", persona.Profile{CustomName: "Alex", Gender: "Male", Color: "#000000"}, profile.ErrInvalidColor},
		{"unknown persona", "pirate", persona.Profile{CustomName: "Alex", Gender: "Male", Color: persona.Palette[0]}, persona.ErrNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if err := svc.SetProfile(ctx, tc.id, tc.profile); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestLanguageDefaultsToEnglish(t *testing.T) {
	ctx := context.Background()
	svc := newService(storage.NewMemoryStore())

	lang, err := svc.Language(ctx)
	if err != nil || lang != persona.English {
		t.Fatalf("expected en, got %q (%v)", lang, err)
	}
	if err := svc.SetLanguage(ctx, persona.Kannada); err != nil {
		t.Fatalf("SetLanguage err: %v", err)
	}
	if lang, _ := svc.Language(ctx); lang != persona.Kannada {
		t.Fatalf("expected kn, got %q", lang)
	}
}

func TestCompleteSetupAndReset(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(store)

	p := persona.Profile{CustomName: "Alex", Gender: "Male", Color: persona.Palette[0]}
	if err := svc.CompleteSetup(ctx, "coach", p); err != nil {
		t.Fatalf("CompleteSetup err: %v", err)
	}
	if done, _ := svc.SetupComplete(ctx); !done {
		t.Fatal("expected setup complete")
	}
	if id, ok, _ := svc.ActivePersona(ctx); !ok || id != "coach" {
		t.Fatalf("expected active persona coach, got %q", id)
	}

	if err := store.Set(ctx, storage.ChatKey("coach"), "[]"); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if err := svc.Reset(ctx); err != nil {
		t.Fatalf("Reset err: %v", err)
	}
	if done, _ := svc.SetupComplete(ctx); done {
		t.Fatal("expected setup flag cleared")
	}
	if _, ok, _ := store.Get(ctx, storage.ChatKey("coach")); ok {
		t.Fatal("expected conversation cleared by reset")
	}
}

func TestCompleteSetupWriteFailure(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewFaulty()
	svc := newService(store)
	store.FailWrites(true)

	p := persona.Profile{CustomName: "Alex", Gender: "Male", Color: persona.Palette[0]}
	if err := svc.CompleteSetup(ctx, "coach", p); !errors.Is(err, storagetest.ErrInjected) {
		t.Fatalf("expected injected error, got %v", err)
	}
	store.FailWrites(false)
	if done, _ := svc.SetupComplete(ctx); done {
		t.Fatal("failed write must not mark setup complete")
	}
}

func TestActivePersonaIgnoresUnknownIDs(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	svc := newService(store)

	if err := store.Set(ctx, storage.KeyCurrentPersona, "pirate"); err != nil {
		t.Fatalf("Set err: %v", err)
	}
	if _, ok, err := svc.ActivePersona(ctx); ok || err != nil {
		t.Fatalf("expected no active persona, got ok=%v err=%v", ok, err)
	}
}
