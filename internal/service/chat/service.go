package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/adultally/ally/backend/internal/model/chat"
	"github.com/adultally/ally/backend/internal/storage"
)

var (
	ErrPersonaRequired = errors.New("persona id is required")
	ErrEmptyContent    = errors.New("message content is empty")

	// ErrCorruptLog and ErrUnreadableLog are warnings: Load still returns a
	// usable (empty) log alongside them.
	ErrCorruptLog    = errors.New("conversation log is corrupt")
	ErrUnreadableLog = errors.New("conversation log is unreadable")
)

// Service is the per-persona conversation store of one device partition.
type Service struct {
	mu    sync.Mutex
	store storage.Store
}

// NewService returns a conversation Service backed by store.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

// Load returns the ordered log of personaID. A missing log is empty. A corrupt
// or unreadable log is also returned as empty, together with a warning error
// matching ErrCorruptLog or ErrUnreadableLog.
func (s *Service) Load(ctx context.Context, personaID string) ([]chat.Message, error) {
	if personaID == "" {
		return []chat.Message{}, ErrPersonaRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx, personaID)
}

// Append adds message to the end of the log of personaID.
func (s *Service) Append(ctx context.Context, personaID string, message chat.Message) error {
	if err := validate(personaID, message); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// A corrupt log is replaced by one holding just the new message.
	messages, err := s.load(ctx, personaID)
	if errors.Is(err, ErrUnreadableLog) {
		return err
	}
	return s.save(ctx, personaID, append(messages, message))
}

// ReplaceAll overwrites the log of personaID.
func (s *Service) ReplaceAll(ctx context.Context, personaID string, messages []chat.Message) error {
	for _, m := range messages {
		if err := validate(personaID, m); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, personaID, messages)
}

// Clear empties the log of personaID and persists the empty log.
func (s *Service) Clear(ctx context.Context, personaID string) error {
	return s.ReplaceAll(ctx, personaID, nil)
}

// MarkDelivered flips the delivery flag of a user message in place. It reports
// whether a message was changed; a message that no longer exists is ignored.
func (s *Service) MarkDelivered(ctx context.Context, personaID, messageID string) (bool, error) {
	if personaID == "" {
		return false, ErrPersonaRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	messages, warn := s.load(ctx, personaID)
	if warn != nil {
		return false, nil
	}
	for i := range messages {
		if messages[i].ID != messageID {
			continue
		}
		if messages[i].Role != chat.RoleUser || messages[i].Delivered {
			return false, nil
		}
		messages[i].Delivered = true
		if err := s.save(ctx, personaID, messages); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

func (s *Service) load(ctx context.Context, personaID string) ([]chat.Message, error) {
	raw, ok, err := s.store.Get(ctx, storage.ChatKey(personaID))
	if err != nil {
		return []chat.Message{}, fmt.Errorf("%w: persona %s: %v", ErrUnreadableLog, personaID, err)
	}
	if !ok || strings.TrimSpace(raw) == "" {
		return []chat.Message{}, nil
	}

	var messages []chat.Message
	if err := json.Unmarshal([]byte(raw), &messages); err != nil {
		return []chat.Message{}, fmt.Errorf("%w: persona %s: %v", ErrCorruptLog, personaID, err)
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	return messages, nil
}

func (s *Service) save(ctx context.Context, personaID string, messages []chat.Message) error {
	if messages == nil {
		messages = []chat.Message{}
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return fmt.Errorf("failed to encode conversation %s: %w", personaID, err)
	}
	if err := s.store.Set(ctx, storage.ChatKey(personaID), string(data)); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", personaID, err)
	}
	return nil
}

func validate(personaID string, message chat.Message) error {
	if personaID == "" {
		return ErrPersonaRequired
	}
	if strings.TrimSpace(message.Content) == "" {
		return ErrEmptyContent
	}
	return nil
}
