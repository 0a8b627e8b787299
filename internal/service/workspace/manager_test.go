package workspace

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	"github.com/adultally/ally/backend/internal/service/onboarding"
	"github.com/adultally/ally/backend/internal/service/session"
	"github.com/adultally/ally/backend/internal/storage"
)

func newManager(store storage.Store) *Manager {
	completer := ai.CompleterFunc(func(context.Context, ai.Request) (string, error) { return "hey", nil })
	return NewManager(store, persona.MustNewRegistry(persona.Seed()), completer, session.Config{DeliveryDelay: time.Millisecond}, nil)
}

func finishOnboarding(t *testing.T, ws *Workspace) {
	t.Helper()
	ctx := context.Background()
	_, err := ws.Onboarding.SubmitAge(ctx, onboarding.AgeForm{Country: "IN", Age: "25", Consent: true})
	require.NoError(t, err)
	_, err = ws.Onboarding.SelectLanguage(ctx, "hi")
	require.NoError(t, err)
	_, err = ws.Onboarding.CompletePersona(ctx, onboarding.PersonaForm{PersonaID: "financial", CustomName: "Kabir", Gender: "Male"})
	require.NoError(t, err)
}

func TestGetReturnsSameWorkspace(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemoryStore())
	defer m.Close()

	a, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	b, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	require.Same(t, a, b)
	require.Equal(t, onboarding.StateAgeGate, a.Onboarding.Snapshot().State)

	_, err = m.Get(ctx, "")
	require.ErrorIs(t, err, ErrUserRequired)
}

func TestUsersArePartitioned(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	m := newManager(store)
	defer m.Close()

	alice, err := m.Get(ctx, "alice")
	require.NoError(t, err)
	finishOnboarding(t, alice)
	require.NoError(t, alice.Session.SendMessage(ctx, "save money?"))

	bob, err := m.Get(ctx, "bob")
	require.NoError(t, err)
	require.Equal(t, onboarding.StateAgeGate, bob.Onboarding.Snapshot().State)
	bobLog, err := bob.Conversations.Load(ctx, "financial")
	require.NoError(t, err)
	require.Empty(t, bobLog)

	_, ok, err := store.Get(ctx, PartitionPrefix("alice")+storage.ChatKey("financial"))
	require.NoError(t, err)
	require.True(t, ok)
}

func TestRestartResumesChat(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()

	first := newManager(store)
	ws, err := first.Get(ctx, "u1")
	require.NoError(t, err)
	finishOnboarding(t, ws)
	require.NoError(t, ws.Session.SendMessage(ctx, "hello"))
	first.Close()

	second := newManager(store)
	defer second.Close()
	ws, err = second.Get(ctx, "u1")
	require.NoError(t, err)

	require.Equal(t, onboarding.StateReady, ws.Onboarding.Snapshot().State)
	snap := ws.Session.Snapshot()
	require.Equal(t, "financial", snap.ActivePersona)
	require.Len(t, snap.Messages, 2)
	require.True(t, snap.Messages[0].Delivered)
}

func TestPersonasSummary(t *testing.T) {
	ctx := context.Background()
	m := newManager(storage.NewMemoryStore())
	defer m.Close()

	ws, err := m.Get(ctx, "u1")
	require.NoError(t, err)
	finishOnboarding(t, ws)
	require.NoError(t, ws.Session.SendMessage(ctx, "hi"))

	list, err := ws.Personas(ctx)
	require.NoError(t, err)
	require.Len(t, list, 5)
	for _, p := range list {
		if p.ID == "financial" {
			require.True(t, p.Active)
			require.Equal(t, 2, p.MessageCount)
			require.Equal(t, "Kabir", p.Profile.CustomName)
			continue
		}
		require.False(t, p.Active)
		require.Zero(t, p.MessageCount)
		require.Equal(t, persona.DefaultGender, p.Profile.Gender)
	}
}
