package ai

import (
	"context"
	"errors"
	"fmt"

	"github.com/adultally/ally/backend/internal/model/chat"
	"github.com/adultally/ally/backend/internal/model/persona"
)

// ErrMalformedResponse is returned when a backend answers without usable text.
var ErrMalformedResponse = errors.New("malformed completion response")

// Request carries everything a backend needs to produce one persona reply.
type Request struct {
	PersonaID string           `json:"personaType"`
	System    string           `json:"system"`
	Name      string           `json:"customName"`
	Gender    string           `json:"gender"`
	Language  persona.Language `json:"language"`
	Message   string           `json:"message"`
	History   []chat.Turn      `json:"history"`
}

// Completer produces the assistant reply for a request.
type Completer interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, req Request) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// StatusError is a completion failure carrying an HTTP-style status code.
type StatusError struct {
	Code int
	Err  error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API Error %d", e.Code)
}

func (e *StatusError) Unwrap() error { return e.Err }
