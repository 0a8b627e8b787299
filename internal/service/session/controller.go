// Package session implements the chat session controller: persona switching,
// the message-send protocol and the transient view state of one device.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/chat"
	"github.com/adultally/ally/backend/internal/model/persona"
	"github.com/adultally/ally/backend/internal/service/ai"
	chatservice "github.com/adultally/ally/backend/internal/service/chat"
	"github.com/adultally/ally/backend/internal/service/profile"
)

var (
	ErrSendInFlight     = errors.New("a message is already being sent")
	ErrClearInFlight    = errors.New("cannot clear a conversation while a message to it is in flight")
	ErrNoActivePersona  = errors.New("no active persona")
	ErrCompletionFailed = errors.New("completion failed")
	ErrSendDiscarded    = errors.New("send discarded by reset")
)

const (
	DefaultDeliveryDelay     = time.Second
	DefaultCompletionTimeout = 60 * time.Second

	subscriberBuffer = 16
)

// Config tunes the send protocol.
type Config struct {
	// DeliveryDelay is how long after a send the user message is marked delivered.
	DeliveryDelay time.Duration
	// CompletionTimeout bounds the completion call.
	CompletionTimeout time.Duration
	// Clock overrides time.Now in tests.
	Clock func() time.Time
}

func (c Config) withDefaults() Config {
	if c.DeliveryDelay <= 0 {
		c.DeliveryDelay = DefaultDeliveryDelay
	}
	if c.CompletionTimeout <= 0 {
		c.CompletionTimeout = DefaultCompletionTimeout
	}
	if c.Clock == nil {
		c.Clock = time.Now
	}
	return c
}

// Controller owns the session state of one device partition. All methods are
// safe for concurrent use; at most one send is in flight at any time.
type Controller struct {
	registry      *persona.Registry
	profiles      *profile.Service
	conversations *chatservice.Service
	completer     ai.Completer
	cfg           Config
	logger        *zap.Logger

	mu       sync.Mutex
	state    chat.Session
	inflight string // persona targeted by the send in flight
	// generation changes on Reset; a send started under an older
	// generation must not write anything back.
	generation uint64
	subs     map[int]chan chat.Session
	nextSub  int

	deliveries sync.WaitGroup
}

// NewController wires a controller. It starts with no active persona.
func NewController(registry *persona.Registry, profiles *profile.Service, conversations *chatservice.Service, completer ai.Completer, cfg Config, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		registry:      registry,
		profiles:      profiles,
		conversations: conversations,
		completer:     completer,
		cfg:           cfg.withDefaults(),
		logger:        logger,
		state:         chat.Session{Phase: chat.PhaseIdle, Status: chat.StatusReady, Messages: []chat.Message{}},
		subs:          make(map[int]chan chat.Session),
	}
}

// Snapshot returns a copy of the current session state.
func (c *Controller) Snapshot() chat.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Activate makes personaID the active view and loads its conversation. A send
// in flight for another persona keeps running against that persona's log.
func (c *Controller) Activate(ctx context.Context, personaID string) error {
	if _, err := c.registry.Lookup(personaID); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	messages, warn := c.conversations.Load(ctx, personaID)
	c.state.ActivePersona = personaID
	c.state.Messages = messages
	c.state.IsTyping = c.inflight == personaID
	c.state.Status = chat.StatusReady
	if c.state.IsTyping {
		c.state.Status = chat.StatusThinking
	}
	c.state.LastError = ""
	c.state.Warning = ""
	if warn != nil {
		c.logger.Warn("conversation log recovered as empty", zap.String("persona", personaID), zap.Error(warn))
		c.state.Warning = warn.Error()
	}

	if err := c.profiles.SetActivePersona(ctx, personaID); err != nil {
		c.logger.Warn("failed to remember active persona", zap.String("persona", personaID), zap.Error(err))
	}

	c.publishLocked()
	return nil
}

// SendMessage runs the send protocol for text against the active persona.
// Blank text or a missing active persona is a no-op. While another send is in
// flight it returns ErrSendInFlight without touching any log. A completion
// failure is recorded in the log and the state, and reported as an error
// wrapping ErrCompletionFailed.
func (c *Controller) SendMessage(ctx context.Context, text string) error {
	// The send outlives its caller: only the completion timeout may end it.
	ctx = context.WithoutCancel(ctx)

	c.mu.Lock()
	personaID := c.state.ActivePersona
	if strings.TrimSpace(text) == "" || personaID == "" {
		c.mu.Unlock()
		return nil
	}
	if c.inflight != "" {
		c.mu.Unlock()
		return ErrSendInFlight
	}

	history := chat.Turns(c.state.Messages)
	userMsg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleUser,
		Content:   text,
		Timestamp: c.stampLocked(lastTimestamp(c.state.Messages)),
	}
	if err := c.conversations.Append(ctx, personaID, userMsg); err != nil {
		c.mu.Unlock()
		return fmt.Errorf("failed to store message: %w", err)
	}
	c.state.Messages = append(c.state.Messages, userMsg)
	c.inflight = personaID
	c.state.IsSending = true
	c.state.Status = chat.StatusSending
	c.setPhaseLocked(chat.PhaseSending)
	c.publishLocked()

	c.scheduleDelivery(personaID, userMsg.ID)

	gen := c.generation
	req := c.buildRequestLocked(ctx, personaID, text, history)

	c.state.IsTyping = true
	c.state.Status = chat.StatusThinking
	c.setPhaseLocked(chat.PhaseAwaitingCompletion)
	c.publishLocked()
	c.mu.Unlock()

	reply, err := c.complete(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.generation {
		c.logger.Info("dropping result of send started before reset", zap.String("persona", personaID), zap.Error(err))
		return ErrSendDiscarded
	}
	c.inflight = ""

	if err == nil {
		err = c.finishLocked(ctx, personaID, reply)
		if err == nil {
			return nil
		}
	}
	c.failLocked(ctx, personaID, err)
	return fmt.Errorf("%w: %w", ErrCompletionFailed, err)
}

// Clear empties the log of personaID, or of the active persona when
// personaID is empty. It is refused while a send to that persona is in flight.
func (c *Controller) Clear(ctx context.Context, personaID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if personaID == "" {
		personaID = c.state.ActivePersona
	}
	if personaID == "" {
		return ErrNoActivePersona
	}
	if _, err := c.registry.Lookup(personaID); err != nil {
		return err
	}
	if c.inflight == personaID {
		return ErrClearInFlight
	}

	if err := c.conversations.Clear(ctx, personaID); err != nil {
		return err
	}
	if personaID == c.state.ActivePersona {
		c.state.Messages = []chat.Message{}
		c.state.LastError = ""
		c.state.Warning = ""
		c.state.Status = chat.StatusReady
		c.publishLocked()
	}
	return nil
}

// DismissError clears the sticky error indicator.
func (c *Controller) DismissError() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.LastError = ""
	if c.state.Status == chat.StatusError {
		c.state.Status = chat.StatusReady
	}
	c.publishLocked()
}

// ResetView drops the active persona and every transient flag. A send in
// flight is not aborted; its result only reaches the store.
func (c *Controller) ResetView() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.ActivePersona = ""
	c.state.Messages = []chat.Message{}
	c.state.IsTyping = false
	c.state.LastError = ""
	c.state.Warning = ""
	c.state.Status = chat.StatusReady
	c.publishLocked()
}

// Reset drops the view like ResetView and detaches the send in flight, if
// any: its result is discarded instead of being written back. Call it before
// wiping the partition so nothing lands in the wiped store.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.generation++
	if c.inflight != "" {
		c.inflight = ""
		c.state.IsSending = false
		c.setPhaseLocked(chat.PhaseIdle)
	}
	c.state.ActivePersona = ""
	c.state.Messages = []chat.Message{}
	c.state.IsTyping = false
	c.state.LastError = ""
	c.state.Warning = ""
	c.state.Status = chat.StatusReady
	c.publishLocked()
}

// Subscribe returns a channel receiving a snapshot after every state change.
// Slow subscribers lose intermediate snapshots, never the latest one.
func (c *Controller) Subscribe() (<-chan chat.Session, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan chat.Session, subscriberBuffer)
	c.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
			close(ch)
		})
	}
}

// WaitDeliveries blocks until every scheduled delivery mark has run.
func (c *Controller) WaitDeliveries() {
	c.deliveries.Wait()
}

func (c *Controller) complete(ctx context.Context, req ai.Request) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.cfg.CompletionTimeout)
	defer cancel()

	reply, err := c.completer.Complete(callCtx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("completion timed out after %s: %w", c.cfg.CompletionTimeout, err)
		}
		return "", err
	}
	if strings.TrimSpace(reply) == "" {
		return "", ai.ErrMalformedResponse
	}
	return reply, nil
}

// buildRequestLocked resolves the persona's effective name, gender, language
// and instruction. Storage read failures fall back to defaults.
func (c *Controller) buildRequestLocked(ctx context.Context, personaID, text string, history []chat.Turn) ai.Request {
	prof, err := c.profiles.Profile(ctx, personaID)
	if err != nil {
		c.logger.Warn("using default persona profile", zap.String("persona", personaID), zap.Error(err))
		prof, _ = c.registry.DefaultProfile(personaID)
	}
	lang, err := c.profiles.Language(ctx)
	if err != nil {
		c.logger.Warn("using default language", zap.Error(err))
	}

	return ai.Request{
		PersonaID: personaID,
		System:    c.registry.ResolvePrompt(personaID, lang, prof.CustomName),
		Name:      prof.CustomName,
		Gender:    prof.Gender,
		Language:  lang,
		Message:   text,
		History:   history,
	}
}

func (c *Controller) finishLocked(ctx context.Context, personaID, reply string) error {
	active := c.state.ActivePersona == personaID
	msg := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleAssistant,
		Content:   reply,
		Timestamp: c.stampLocked(c.lastTimestampLocked(ctx, personaID)),
	}
	if err := c.conversations.Append(ctx, personaID, msg); err != nil {
		return fmt.Errorf("failed to store reply: %w", err)
	}

	if active {
		c.state.Messages = append(c.state.Messages, msg)
		c.state.IsTyping = false
		c.state.LastError = ""
		c.state.Status = chat.StatusReady
	}
	c.state.IsSending = false
	c.setPhaseLocked(chat.PhaseIdle)
	c.publishLocked()
	return nil
}

func (c *Controller) failLocked(ctx context.Context, personaID string, cause error) {
	active := c.state.ActivePersona == personaID
	summary := cause.Error()
	c.logger.Warn("send failed", zap.String("persona", personaID), zap.Error(cause))

	notice := chat.Message{
		ID:        uuid.NewString(),
		Role:      chat.RoleSystem,
		Content:   "⚠️ " + summary,
		Timestamp: c.stampLocked(c.lastTimestampLocked(ctx, personaID)),
	}
	if err := c.conversations.Append(ctx, personaID, notice); err != nil {
		c.logger.Warn("failed to store error notice", zap.String("persona", personaID), zap.Error(err))
	}

	if active {
		c.state.Messages = append(c.state.Messages, notice)
		c.state.IsTyping = false
		c.state.LastError = summary
		c.state.Status = chat.StatusError
	}
	c.setPhaseLocked(chat.PhaseError)
	c.publishLocked()

	c.state.IsSending = false
	c.setPhaseLocked(chat.PhaseIdle)
	c.publishLocked()
}

func (c *Controller) scheduleDelivery(personaID, messageID string) {
	c.deliveries.Add(1)
	time.AfterFunc(c.cfg.DeliveryDelay, func() {
		defer c.deliveries.Done()
		c.markDelivered(personaID, messageID)
	})
}

func (c *Controller) markDelivered(personaID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed, err := c.conversations.MarkDelivered(context.Background(), personaID, messageID)
	if err != nil {
		c.logger.Warn("failed to persist delivery mark", zap.String("persona", personaID), zap.Error(err))
	}

	if c.state.ActivePersona == personaID {
		for i := range c.state.Messages {
			if c.state.Messages[i].ID == messageID && !c.state.Messages[i].Delivered {
				c.state.Messages[i].Delivered = true
				changed = true
			}
		}
	}
	if changed {
		c.publishLocked()
	}
}

// stampLocked returns the current time, moved past last when the clock has
// not advanced, so timestamps within a log strictly increase.
func (c *Controller) stampLocked(last time.Time) time.Time {
	now := c.cfg.Clock().UTC()
	if !now.After(last) {
		now = last.Add(time.Millisecond)
	}
	return now
}

func (c *Controller) lastTimestampLocked(ctx context.Context, personaID string) time.Time {
	if c.state.ActivePersona == personaID {
		return lastTimestamp(c.state.Messages)
	}
	messages, _ := c.conversations.Load(ctx, personaID)
	return lastTimestamp(messages)
}

func lastTimestamp(messages []chat.Message) time.Time {
	if len(messages) == 0 {
		return time.Time{}
	}
	return messages[len(messages)-1].Timestamp
}

func (c *Controller) snapshotLocked() chat.Session {
	snap := c.state
	snap.Messages = append([]chat.Message(nil), c.state.Messages...)
	if snap.Messages == nil {
		snap.Messages = []chat.Message{}
	}
	return snap
}

func (c *Controller) publishLocked() {
	if len(c.subs) == 0 {
		return
	}
	snap := c.snapshotLocked()
	for _, ch := range c.subs {
		select {
		case ch <- snap:
		default:
			// Drop the oldest pending snapshot to make room for the newest.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
