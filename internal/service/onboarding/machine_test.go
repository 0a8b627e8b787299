package onboarding

import (
	"context"
	"errors"
	"testing"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/profile"
	"github.com/adultally/ally/backend/internal/storage"
	"github.com/adultally/ally/backend/internal/storage/storagetest"
)

type fakeActivator struct {
	activated []string
	resets    int
	wipes     int
}

func (f *fakeActivator) Activate(_ context.Context, id string) error {
	f.activated = append(f.activated, id)
	return nil
}

func (f *fakeActivator) ResetView() { f.resets++ }

func (f *fakeActivator) Reset() { f.wipes++ }

func newMachine(t *testing.T, store storage.Store) (*Machine, *profile.Service, *fakeActivator) {
	t.Helper()
	registry := persona.MustNewRegistry(persona.Seed())
	profiles := profile.NewService(store, registry)
	act := &fakeActivator{}
	return NewMachine(registry, profiles, act, nil), profiles, act
}

func startAt(t *testing.T, m *Machine, want State) {
	t.Helper()
	ctx := context.Background()
	if _, err := m.Start(ctx); err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if want == StateAgeGate {
		return
	}
	if _, err := m.SubmitAge(ctx, AgeForm{Country: "US", Age: "30", Consent: true}); err != nil {
		t.Fatalf("SubmitAge err: %v", err)
	}
	if want == StateLanguageSelect {
		return
	}
	if _, err := m.SelectLanguage(ctx, "en"); err != nil {
		t.Fatalf("SelectLanguage err: %v", err)
	}
	if want == StatePersonaSetup {
		return
	}
	if _, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "coach", CustomName: "Max", Gender: "Male"}); err != nil {
		t.Fatalf("CompletePersona err: %v", err)
	}
}

func TestRequiredAge(t *testing.T) {
	cases := map[string]int{"AE": 21, "ae": 21, "US": 18, "IN": 18, "": 18}
	for country, want := range cases {
		if got := RequiredAge(country); got != want {
			t.Fatalf("RequiredAge(%q) = %d, want %d", country, got, want)
		}
	}
}

func TestAgeGate(t *testing.T) {
	tests := []struct {
		name  string
		form  AgeForm
		pass  bool
		field string
	}{
		{name: "AE at 21", form: AgeForm{Country: "AE", Age: "21", Consent: true}, pass: true},
		{name: "AE at 20", form: AgeForm{Country: "AE", Age: "20", Consent: true}, field: "age"},
		{name: "US at 18", form: AgeForm{Country: "US", Age: "18", Consent: true}, pass: true},
		{name: "US at 17", form: AgeForm{Country: "US", Age: "17", Consent: true}, field: "age"},
		{name: "no consent", form: AgeForm{Country: "US", Age: "40"}, field: "consent"},
		{name: "no country", form: AgeForm{Age: "40", Consent: true}, field: "country"},
		{name: "not a number", form: AgeForm{Country: "US", Age: "eighteen", Consent: true}, field: "age"},
		{name: "negative", form: AgeForm{Country: "US", Age: "-1", Consent: true}, field: "age"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ctx := context.Background()
			m, profiles, _ := newMachine(t, storage.NewMemoryStore())
			startAt(t, m, StateAgeGate)

			snap, err := m.SubmitAge(ctx, tc.form)
			verified, _ := profiles.Verified(ctx)
			if tc.pass {
				if err != nil {
					t.Fatalf("SubmitAge err: %v", err)
				}
				if snap.State != StateLanguageSelect || !verified {
					t.Fatalf("expected advance with verified flag, got %s verified=%v", snap.State, verified)
				}
				return
			}

			var verr *ValidationError
			if !errors.As(err, &verr) || verr.Field != tc.field {
				t.Fatalf("expected validation error on %s, got %v", tc.field, err)
			}
			if snap.State != StateAgeGate || verified {
				t.Fatalf("refusal must not advance, got %s verified=%v", snap.State, verified)
			}
			if snap.Country != tc.form.Country || snap.Age != tc.form.Age || snap.Consent != tc.form.Consent {
				t.Fatalf("refused inputs must be kept for display, got %+v", snap)
			}
		})
	}
}

func TestRepeatAgeSubmissionIsNoop(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewFaulty()
	m, _, _ := newMachine(t, store)
	startAt(t, m, StateLanguageSelect)
	writes := store.Writes()

	snap, err := m.SubmitAge(ctx, AgeForm{Country: "AE", Age: "50", Consent: true})
	if err != nil {
		t.Fatalf("repeat SubmitAge err: %v", err)
	}
	if snap.State != StateLanguageSelect || snap.Country != "US" {
		t.Fatalf("repeat submission changed state: %+v", snap)
	}
	if store.Writes() != writes {
		t.Fatalf("repeat submission wrote to storage")
	}
}

func TestFailedWriteDoesNotAdvance(t *testing.T) {
	ctx := context.Background()
	store := storagetest.NewFaulty()
	m, _, _ := newMachine(t, store)
	startAt(t, m, StateAgeGate)

	store.FailWrites(true)
	snap, err := m.SubmitAge(ctx, AgeForm{Country: "US", Age: "30", Consent: true})
	if !errors.Is(err, storagetest.ErrInjected) {
		t.Fatalf("expected storage error, got %v", err)
	}
	if snap.State != StateAgeGate {
		t.Fatalf("expected to stay at age gate, got %s", snap.State)
	}

	store.FailWrites(false)
	if _, err := m.SubmitAge(ctx, AgeForm{Country: "US", Age: "30", Consent: true}); err != nil {
		t.Fatalf("SubmitAge err: %v", err)
	}
	if _, err := m.SelectLanguage(ctx, "kn"); err != nil {
		t.Fatalf("SelectLanguage err: %v", err)
	}

	store.FailWrites(true)
	snap, err = m.CompletePersona(ctx, PersonaForm{PersonaID: "coach", CustomName: "Max", Gender: "Male"})
	if err == nil || snap.State != StatePersonaSetup {
		t.Fatalf("expected failed setup to stay in persona setup, got %s (%v)", snap.State, err)
	}
}

func TestSelectLanguage(t *testing.T) {
	ctx := context.Background()

	m, _, _ := newMachine(t, storage.NewMemoryStore())
	startAt(t, m, StateLanguageSelect)
	if _, err := m.SelectLanguage(ctx, "fr"); err == nil {
		t.Fatal("expected unsupported language to be refused")
	}
	snap, err := m.SelectLanguage(ctx, "")
	if err != nil {
		t.Fatalf("SelectLanguage err: %v", err)
	}
	if snap.Language != persona.English || snap.State != StatePersonaSetup {
		t.Fatalf("expected English default, got %+v", snap)
	}

	m, profiles, _ := newMachine(t, storage.NewMemoryStore())
	m.SetLanguageHint(persona.Kannada)
	startAt(t, m, StateLanguageSelect)
	if _, err := m.SelectLanguage(ctx, ""); err != nil {
		t.Fatalf("SelectLanguage err: %v", err)
	}
	if lang, _ := profiles.Language(ctx); lang != persona.Kannada {
		t.Fatalf("expected identity hint to be stored, got %s", lang)
	}
}

func TestCompletePersonaActivatesSession(t *testing.T) {
	ctx := context.Background()
	m, profiles, act := newMachine(t, storage.NewMemoryStore())
	startAt(t, m, StatePersonaSetup)

	if _, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "coach", Gender: "Male"}); err == nil {
		t.Fatal("expected missing name to be refused")
	}
	if _, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "coach", CustomName: "Max", Gender: "Male", Color: "#000000"}); err == nil {
		t.Fatal("expected off-palette color to be refused")
	}
	if _, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "pirate", CustomName: "Max", Gender: "Male"}); err == nil {
		t.Fatal("expected unknown persona to be refused")
	}

	snap, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "confidant", CustomName: "Riya", Gender: "Female"})
	if err != nil {
		t.Fatalf("CompletePersona err: %v", err)
	}
	if snap.State != StateReady || snap.SelectedPersona != "confidant" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if len(act.activated) != 1 || act.activated[0] != "confidant" {
		t.Fatalf("expected confidant activation, got %v", act.activated)
	}

	p, _ := profiles.Profile(ctx, "confidant")
	if p.CustomName != "Riya" || p.Color != persona.Palette[1] {
		t.Fatalf("unexpected stored profile %+v", p)
	}
	if done, _ := profiles.SetupComplete(ctx); !done {
		t.Fatal("expected setup-complete flag")
	}
}

func TestStartResumesFinishedSetup(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	first, _, _ := newMachine(t, store)
	startAt(t, first, StateReady)

	m, _, act := newMachine(t, store)
	snap, err := m.Start(ctx)
	if err != nil {
		t.Fatalf("Start err: %v", err)
	}
	if snap.State != StateReady || snap.SelectedPersona != "coach" {
		t.Fatalf("expected resume into coach, got %+v", snap)
	}
	if len(act.activated) != 1 || act.activated[0] != "coach" {
		t.Fatalf("expected coach activation, got %v", act.activated)
	}
}

func TestChoosePersonaReentersSetup(t *testing.T) {
	ctx := context.Background()
	m, profiles, act := newMachine(t, storage.NewMemoryStore())
	startAt(t, m, StateReady)

	snap, err := m.ChoosePersona(ctx)
	if err != nil || snap.State != StatePersonaSetup {
		t.Fatalf("expected persona setup, got %s (%v)", snap.State, err)
	}
	if done, _ := profiles.SetupComplete(ctx); done {
		t.Fatal("setup-complete flag must be cleared")
	}
	if act.resets != 1 {
		t.Fatalf("expected view reset, got %d", act.resets)
	}
}

func TestResetClearsPartition(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m, profiles, act := newMachine(t, store)
	startAt(t, m, StateReady)

	snap, err := m.Reset(ctx)
	if err != nil || snap.State != StateAgeGate {
		t.Fatalf("expected age gate, got %s (%v)", snap.State, err)
	}
	if snap.Country != "" || snap.Language != "" || snap.SelectedPersona != "" {
		t.Fatalf("inputs survived reset: %+v", snap)
	}
	if act.wipes != 1 {
		t.Fatalf("expected session reset, got %d", act.wipes)
	}
	if verified, _ := profiles.Verified(ctx); verified {
		t.Fatal("verified flag survived reset")
	}
	if _, ok, _ := store.Get(ctx, storage.PersonaKey("coach", storage.FieldName)); ok {
		t.Fatal("profile survived reset")
	}

	snap, err = m.SubmitAge(ctx, AgeForm{Country: "US", Age: "30", Consent: true})
	if err != nil || snap.State != StateLanguageSelect {
		t.Fatalf("expected age gate to accept after reset, got %s (%v)", snap.State, err)
	}
}

func TestOperationsOutOfOrderAreRejected(t *testing.T) {
	ctx := context.Background()
	m, _, _ := newMachine(t, storage.NewMemoryStore())

	if _, err := m.SelectLanguage(ctx, "en"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	startAt(t, m, StateAgeGate)
	if _, err := m.CompletePersona(ctx, PersonaForm{PersonaID: "coach", CustomName: "x", Gender: "y"}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
	if _, err := m.ChoosePersona(ctx); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected invalid transition, got %v", err)
	}
}

func TestTransitionTable(t *testing.T) {
	if !CanTransition(StateInit, StateReady) || CanTransition(StateAgeGate, StateReady) {
		t.Fatal("unexpected transition table")
	}
}
