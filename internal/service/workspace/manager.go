// Package workspace assembles the per-user services over a shared store.
package workspace

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	chatservice "github.com/adultally/ally/backend/internal/service/chat"
	"github.com/adultally/ally/backend/internal/service/onboarding"
	"github.com/adultally/ally/backend/internal/service/profile"
	"github.com/adultally/ally/backend/internal/service/session"
	"github.com/adultally/ally/backend/internal/storage"
)

// ErrUserRequired is returned when no user id is supplied.
var ErrUserRequired = errors.New("user id is required")

// Workspace is everything one user's device needs.
type Workspace struct {
	UserID        string
	Profiles      *profile.Service
	Conversations *chatservice.Service
	Session       *session.Controller
	Onboarding    *onboarding.Machine

	registry *persona.Registry
}

// PersonaSummary is one sidebar entry.
type PersonaSummary struct {
	persona.Variant
	Profile      persona.Profile `json:"profile"`
	MessageCount int             `json:"messageCount"`
	Active       bool            `json:"active"`
}

// Personas lists every persona with its effective profile and log size.
func (w *Workspace) Personas(ctx context.Context) ([]PersonaSummary, error) {
	active := w.Session.Snapshot().ActivePersona
	variants := w.registry.List()
	out := make([]PersonaSummary, 0, len(variants))
	for _, v := range variants {
		p, err := w.Profiles.Profile(ctx, v.ID)
		if err != nil {
			return nil, err
		}
		// An unreadable log counts as empty here, as it does in the chat view.
		messages, _ := w.Conversations.Load(ctx, v.ID)
		out = append(out, PersonaSummary{
			Variant:      v,
			Profile:      p,
			MessageCount: len(messages),
			Active:       v.ID == active,
		})
	}
	return out, nil
}

// Manager creates workspaces on first use and keeps them for the process
// lifetime.
type Manager struct {
	store     storage.Store
	registry  *persona.Registry
	completer ai.Completer
	cfg       session.Config
	logger    *zap.Logger

	mu         sync.Mutex
	workspaces map[string]*Workspace
}

// NewManager returns a Manager that partitions store by user.
func NewManager(store storage.Store, registry *persona.Registry, completer ai.Completer, cfg session.Config, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		store:      store,
		registry:   registry,
		completer:  completer,
		cfg:        cfg,
		logger:     logger,
		workspaces: make(map[string]*Workspace),
	}
}

// PartitionPrefix is the key prefix of userID's partition in the shared store.
func PartitionPrefix(userID string) string {
	return "user:" + userID + ":"
}

// Get returns the workspace of userID, creating and starting it on first use.
func (m *Manager) Get(ctx context.Context, userID string) (*Workspace, error) {
	if userID == "" {
		return nil, ErrUserRequired
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if ws, ok := m.workspaces[userID]; ok {
		return ws, nil
	}

	logger := m.logger.With(zap.String("user", userID))
	partition := storage.Namespace(m.store, PartitionPrefix(userID))
	profiles := profile.NewService(partition, m.registry)
	conversations := chatservice.NewService(partition)
	ctrl := session.NewController(m.registry, profiles, conversations, m.completer, m.cfg, logger)
	machine := onboarding.NewMachine(m.registry, profiles, ctrl, logger)

	if _, err := machine.Start(ctx); err != nil {
		return nil, err
	}

	ws := &Workspace{
		UserID:        userID,
		Profiles:      profiles,
		Conversations: conversations,
		Session:       ctrl,
		Onboarding:    machine,
		registry:      m.registry,
	}
	m.workspaces[userID] = ws
	logger.Info("workspace opened", zap.String("state", string(machine.Snapshot().State)))
	return ws, nil
}

// Close waits for pending delivery marks of every workspace.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ws := range m.workspaces {
		ws.Session.WaitDeliveries()
	}
}
