package ai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/adultally/ally/backend/internal/model/chat"
	"github.com/adultally/ally/backend/internal/model/persona"
)

func sampleRequest() Request {
	return Request{
		PersonaID: "coach",
		System:    "You are a supportive fitness and wellness coach named Alex.",
		Name:      "Alex",
		Gender:    "Male",
		Language:  persona.Hindi,
		Message:   "hello",
		History: []chat.Turn{
			{Role: chat.RoleUser, Content: "earlier"},
			{Role: chat.RoleAssistant, Content: "reply"},
			{Role: chat.RoleSystem, Content: "⚠️ API Error 500"},
		},
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	got := BuildSystemPrompt(sampleRequest())

	for _, want := range []string{"fitness and wellness coach named Alex", "Your gender is Male", "Language: Hindi", "max 200 words"} {
		if !strings.Contains(got, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, got)
		}
	}
}

func TestBuildHistoryMessagesKeepsEveryDialogueTurn(t *testing.T) {
	turns := make([]chat.Turn, 0, 30)
	for i := 0; i < 15; i++ {
		turns = append(turns, chat.Turn{Role: chat.RoleUser, Content: "u"}, chat.Turn{Role: chat.RoleAssistant, Content: "a"})
	}
	turns = append(turns, chat.Turn{Role: chat.RoleSystem, Content: "notice"})

	history := buildHistoryMessages(turns)
	if len(history) != 30 {
		t.Fatalf("expected 30 history messages without truncation, got %d", len(history))
	}
	if history[0].Role != schema.User || history[1].Role != schema.Assistant {
		t.Fatalf("unexpected roles: %s %s", history[0].Role, history[1].Role)
	}
}

func TestRemoteClientSuccess(t *testing.T) {
	var received Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("decode err: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"response":"Let's get moving!"}`))
	}))
	defer srv.Close()

	client := NewRemoteClient(srv.URL, time.Second)
	got, err := client.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got != "Let's get moving!" {
		t.Fatalf("unexpected reply %q", got)
	}
	if received.Language != persona.Hindi || received.Name != "Alex" || len(received.History) != 3 {
		t.Fatalf("unexpected request on the wire: %+v", received)
	}
}

func TestRemoteClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"Chat failed"}`, http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL, time.Second).Complete(context.Background(), sampleRequest())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusInternalServerError {
		t.Fatalf("expected status error 500, got %v", err)
	}
	if err.Error() != "API Error 500" {
		t.Fatalf("unexpected message %q", err.Error())
	}
}

func TestRemoteClientMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"unexpected":true}`))
	}))
	defer srv.Close()

	_, err := NewRemoteClient(srv.URL, time.Second).Complete(context.Background(), sampleRequest())
	if !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response error, got %v", err)
	}
}

type fakeChatModel struct {
	lastInput []*schema.Message
	reply     string
	err       error
}

func (f *fakeChatModel) Generate(_ context.Context, input []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	f.lastInput = input
	if f.err != nil {
		return nil, f.err
	}
	return schema.AssistantMessage(f.reply, nil), nil
}

func (f *fakeChatModel) Stream(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg, err := f.Generate(ctx, input, opts...)
	if err != nil {
		return nil, err
	}
	return schema.StreamReaderFromArray([]*schema.Message{msg}), nil
}

func (f *fakeChatModel) BindTools(_ []*schema.ToolInfo) error { return nil }

func TestServiceCompleteRunsChain(t *testing.T) {
	fake := &fakeChatModel{reply: "नमस्ते"}
	svc, err := NewService(context.Background(), fake, nil)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}

	got, err := svc.Complete(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("Complete err: %v", err)
	}
	if got != "नमस्ते" {
		t.Fatalf("unexpected reply %q", got)
	}

	// system + 2 dialogue turns + query
	if len(fake.lastInput) != 4 {
		t.Fatalf("expected 4 chat messages, got %d", len(fake.lastInput))
	}
	if fake.lastInput[0].Role != schema.System || !strings.Contains(fake.lastInput[0].Content, "Language: Hindi") {
		t.Fatalf("unexpected system message: %+v", fake.lastInput[0])
	}
	if last := fake.lastInput[3]; last.Role != schema.User || last.Content != "hello" {
		t.Fatalf("unexpected query message: %+v", last)
	}
}

func TestServiceCompleteEmptyReply(t *testing.T) {
	svc, err := NewService(context.Background(), &fakeChatModel{}, nil)
	if err != nil {
		t.Fatalf("NewService err: %v", err)
	}
	if _, err := svc.Complete(context.Background(), sampleRequest()); !errors.Is(err, ErrMalformedResponse) {
		t.Fatalf("expected malformed response, got %v", err)
	}
}

func TestGeminiContentsMapRoles(t *testing.T) {
	contents := geminiContents(sampleRequest())
	if len(contents) != 3 {
		t.Fatalf("expected 3 contents, got %d", len(contents))
	}
	if contents[1].Role != "model" || contents[2].Role != "user" {
		t.Fatalf("unexpected roles: %s %s", contents[1].Role, contents[2].Role)
	}
}
