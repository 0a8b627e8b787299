package session

import (
	"go.uber.org/zap"

	"github.com/adultally/ally/backend/internal/model/chat"
)

// phaseTransitions lists the legal moves of the send protocol.
var phaseTransitions = map[chat.Phase][]chat.Phase{
	chat.PhaseIdle:               {chat.PhaseSending},
	chat.PhaseSending:            {chat.PhaseAwaitingCompletion, chat.PhaseError},
	chat.PhaseAwaitingCompletion: {chat.PhaseIdle, chat.PhaseError},
	chat.PhaseError:              {chat.PhaseIdle},
}

func canTransition(from, to chat.Phase) bool {
	for _, next := range phaseTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// setPhaseLocked moves the protocol to next. An illegal move is logged and
// applied anyway so the controller never wedges.
func (c *Controller) setPhaseLocked(next chat.Phase) {
	if !canTransition(c.state.Phase, next) {
		c.logger.Error("illegal session phase transition",
			zap.String("from", string(c.state.Phase)),
			zap.String("to", string(next)))
	}
	c.state.Phase = next
}
