// Package onboarding drives a user from the legal age gate through language
// and persona setup to the chat surface.
package onboarding

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/profile"
)

// State is a step of the onboarding flow.
type State string

const (
	StateInit           State = "init"
	StateAgeGate        State = "age_gate"
	StateLanguageSelect State = "language_select"
	StatePersonaSetup   State = "persona_setup"
	StateReady          State = "ready"
)

// ErrInvalidTransition is returned when an operation is not allowed in the
// current state.
var ErrInvalidTransition = errors.New("invalid onboarding transition")

// Reset is allowed from every state and is not listed here.
var transitions = map[State][]State{
	StateInit:           {StateAgeGate, StateReady},
	StateAgeGate:        {StateLanguageSelect},
	StateLanguageSelect: {StatePersonaSetup},
	StatePersonaSetup:   {StateReady},
	StateReady:          {StatePersonaSetup},
}

// CanTransition reports whether the flow may move from one state to another.
func CanTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidationError names the input that failed a gate and why.
type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Reason)
}

// RequiredAge is the legal minimum age in country.
func RequiredAge(country string) int {
	if strings.EqualFold(strings.TrimSpace(country), "AE") {
		return 21
	}
	return 18
}

// AgeForm is the age gate input.
type AgeForm struct {
	Country string `json:"country"`
	Age     string `json:"age"`
	Consent bool   `json:"consent"`
}

// PersonaForm is the persona setup input. An empty Color picks the persona's
// palette default.
type PersonaForm struct {
	PersonaID  string `json:"personaId"`
	CustomName string `json:"customName"`
	Gender     string `json:"gender"`
	Color      string `json:"color"`
}

// Activator is the part of the session controller onboarding drives.
type Activator interface {
	Activate(ctx context.Context, personaID string) error
	ResetView()
	Reset()
}

// Snapshot is the externally visible onboarding state.
type Snapshot struct {
	State           State            `json:"state"`
	Country         string           `json:"country,omitempty"`
	Age             string           `json:"age,omitempty"`
	Consent         bool             `json:"consent"`
	Language        persona.Language `json:"language,omitempty"`
	SelectedPersona string           `json:"selectedPersona,omitempty"`
}

// Machine is the onboarding flow of one user. Durable writes happen before
// every transition; a failed write leaves the state where it was.
type Machine struct {
	registry *persona.Registry
	profiles *profile.Service
	session  Activator
	logger   *zap.Logger

	mu       sync.Mutex
	state    State
	age      AgeForm
	language persona.Language
	selected string
	hint     persona.Language
}

// NewMachine returns a machine in StateInit.
func NewMachine(registry *persona.Registry, profiles *profile.Service, session Activator, logger *zap.Logger) *Machine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Machine{
		registry: registry,
		profiles: profiles,
		session:  session,
		logger:   logger,
		state:    StateInit,
	}
}

// SetLanguageHint records the identity provider's preferred language, used
// when the user does not pick one.
func (m *Machine) SetLanguageHint(lang persona.Language) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hint = lang
}

// Snapshot returns the current state and collected inputs.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// Start leaves StateInit. A user who finished setup goes straight to the chat
// surface with the remembered persona; everybody else meets the age gate.
// Start in any other state is a no-op.
func (m *Machine) Start(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state != StateInit {
		m.mu.Unlock()
		return m.Snapshot(), nil
	}

	complete, err := m.profiles.SetupComplete(ctx)
	if err != nil {
		m.mu.Unlock()
		return Snapshot{}, err
	}
	if !complete {
		m.moveLocked(StateAgeGate)
		m.mu.Unlock()
		return m.Snapshot(), nil
	}

	if lang, err := m.profiles.Language(ctx); err == nil {
		m.language = lang
	}
	id, ok, err := m.profiles.ActivePersona(ctx)
	if err != nil {
		m.logger.Warn("failed to read remembered persona", zap.Error(err))
	}
	m.selected = id
	m.moveLocked(StateReady)
	m.mu.Unlock()

	if ok {
		if err := m.session.Activate(ctx, id); err != nil {
			m.logger.Warn("failed to reopen remembered persona", zap.String("persona", id), zap.Error(err))
		}
	}
	return m.Snapshot(), nil
}

// SubmitAge checks the legal gate. A refusal returns a *ValidationError,
// keeps the submitted inputs for display and writes nothing. Resubmitting a
// valid form after passing is a no-op.
func (m *Machine) SubmitAge(ctx context.Context, form AgeForm) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAgeGate && m.state != StateLanguageSelect {
		return m.snapshotLocked(), m.invalidLocked("submit age")
	}

	form.Country = strings.ToUpper(strings.TrimSpace(form.Country))
	form.Age = strings.TrimSpace(form.Age)
	if err := checkAge(form); err != nil {
		if m.state == StateAgeGate {
			m.age = form
		}
		return m.snapshotLocked(), err
	}
	if m.state == StateLanguageSelect {
		return m.snapshotLocked(), nil
	}

	if err := m.profiles.MarkVerified(ctx); err != nil {
		return m.snapshotLocked(), err
	}
	m.age = form
	m.moveLocked(StateLanguageSelect)
	return m.snapshotLocked(), nil
}

func checkAge(form AgeForm) error {
	if form.Country == "" {
		return &ValidationError{Field: "country", Reason: "is required"}
	}
	age, err := strconv.Atoi(form.Age)
	if err != nil || age < 0 {
		return &ValidationError{Field: "age", Reason: "must be a non-negative whole number"}
	}
	if !form.Consent {
		return &ValidationError{Field: "consent", Reason: "must be given"}
	}
	if required := RequiredAge(form.Country); age < required {
		return &ValidationError{Field: "age", Reason: fmt.Sprintf("must be at least %d in %s", required, form.Country)}
	}
	return nil
}

// SelectLanguage stores the conversation language. An empty code picks the
// identity hint, or English without one.
func (m *Machine) SelectLanguage(ctx context.Context, code string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateLanguageSelect {
		return m.snapshotLocked(), m.invalidLocked("select language")
	}

	lang := persona.English
	if strings.TrimSpace(code) == "" {
		if m.hint != "" {
			lang = m.hint
		}
	} else {
		parsed, ok := persona.ParseLanguage(code)
		if !ok {
			return m.snapshotLocked(), &ValidationError{Field: "language", Reason: fmt.Sprintf("%q is not supported", code)}
		}
		lang = parsed
	}

	if err := m.profiles.SetLanguage(ctx, lang); err != nil {
		return m.snapshotLocked(), err
	}
	m.language = lang
	m.moveLocked(StatePersonaSetup)
	return m.snapshotLocked(), nil
}

// CompletePersona customises the chosen persona, finishes setup and opens the
// chat with it.
func (m *Machine) CompletePersona(ctx context.Context, form PersonaForm) (Snapshot, error) {
	m.mu.Lock()

	if m.state != StatePersonaSetup {
		defer m.mu.Unlock()
		return m.snapshotLocked(), m.invalidLocked("complete persona")
	}

	p, err := m.checkPersona(form)
	if err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}
	if err := m.profiles.CompleteSetup(ctx, form.PersonaID, p); err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}
	m.selected = form.PersonaID
	m.moveLocked(StateReady)
	m.mu.Unlock()

	if err := m.session.Activate(ctx, form.PersonaID); err != nil {
		m.logger.Warn("failed to open persona after setup", zap.String("persona", form.PersonaID), zap.Error(err))
	}
	return m.Snapshot(), nil
}

func (m *Machine) checkPersona(form PersonaForm) (persona.Profile, error) {
	if strings.TrimSpace(form.PersonaID) == "" {
		return persona.Profile{}, &ValidationError{Field: "personaId", Reason: "is required"}
	}
	def, ok := m.registry.DefaultProfile(form.PersonaID)
	if !ok {
		return persona.Profile{}, &ValidationError{Field: "personaId", Reason: fmt.Sprintf("%q is not a known persona", form.PersonaID)}
	}
	if strings.TrimSpace(form.CustomName) == "" {
		return persona.Profile{}, &ValidationError{Field: "customName", Reason: "is required"}
	}
	if strings.TrimSpace(form.Gender) == "" {
		return persona.Profile{}, &ValidationError{Field: "gender", Reason: "is required"}
	}
	color := form.Color
	if color == "" {
		color = def.Color
	}
	if !persona.InPalette(color) {
		return persona.Profile{}, &ValidationError{Field: "color", Reason: fmt.Sprintf("%q is not in the palette", color)}
	}
	return persona.Profile{CustomName: form.CustomName, Gender: form.Gender, Color: color}, nil
}

// ChoosePersona returns from the chat surface to persona setup.
func (m *Machine) ChoosePersona(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	if m.state != StateReady {
		defer m.mu.Unlock()
		return m.snapshotLocked(), m.invalidLocked("choose persona")
	}
	if err := m.profiles.ClearSetupComplete(ctx); err != nil {
		defer m.mu.Unlock()
		return m.snapshotLocked(), err
	}
	m.moveLocked(StatePersonaSetup)
	m.mu.Unlock()

	m.session.ResetView()
	return m.Snapshot(), nil
}

// Reset wipes the user's partition and starts over: the machine passes
// through StateInit and, with setup no longer complete, lands on the age gate.
func (m *Machine) Reset(ctx context.Context) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Detach any send in flight first so its reply cannot refill the wiped partition.
	m.session.Reset()
	if err := m.profiles.Reset(ctx); err != nil {
		return m.snapshotLocked(), err
	}
	m.logger.Debug("onboarding transition",
		zap.String("from", string(m.state)),
		zap.String("to", string(StateInit)))
	m.state = StateInit
	m.age = AgeForm{}
	m.language = ""
	m.selected = ""
	m.moveLocked(StateAgeGate)
	return m.snapshotLocked(), nil
}

func (m *Machine) moveLocked(next State) {
	if !CanTransition(m.state, next) {
		m.logger.Error("illegal onboarding transition",
			zap.String("from", string(m.state)),
			zap.String("to", string(next)))
	}
	m.logger.Debug("onboarding transition",
		zap.String("from", string(m.state)),
		zap.String("to", string(next)))
	m.state = next
}

func (m *Machine) invalidLocked(op string) error {
	return fmt.Errorf("%w: cannot %s in state %s", ErrInvalidTransition, op, m.state)
}

func (m *Machine) snapshotLocked() Snapshot {
	return Snapshot{
		State:           m.state,
		Country:         m.age.Country,
		Age:             m.age.Age,
		Consent:         m.age.Consent,
		Language:        m.language,
		SelectedPersona: m.selected,
	}
}
