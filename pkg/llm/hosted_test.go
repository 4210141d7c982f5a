package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type capturedRequest struct {
	System   string `json:"system"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
}

func TestHostedCallSendsOnlyUserAndAssistantInline(t *testing.T) {
	var captured capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		if err := json.Unmarshal(payload, &captured); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"ok"}]}`))
	}))
	defer srv.Close()

	adapter := NewHosted(srv.URL, WithAPIKey("test-key"))
	_, err := adapter.Call(context.Background(), CallRequest{
		System: "You are Verdant.",
		Messages: []Message{
			{Role: RoleUser, Content: "plant a pink flower"},
			{Role: RoleAssistant, Content: "On it!"},
			{Role: RoleSystem, Content: "[tool plant] planted 1 Pink Bloom"},
			{Role: RoleInteraction, Content: "The player tapped a flower."},
		},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}

	if captured.System != "You are Verdant." {
		t.Errorf("system prompt = %q", captured.System)
	}
	if len(captured.Messages) != 4 {
		t.Fatalf("messages = %d", len(captured.Messages))
	}
	for i, msg := range captured.Messages {
		if msg.Role != "user" && msg.Role != "assistant" {
			t.Errorf("messages[%d].role = %q, only user/assistant may go inline", i, msg.Role)
		}
	}
	if captured.Messages[2].Role != "user" || captured.Messages[2].Content != "[tool plant] planted 1 Pink Bloom" {
		t.Errorf("tool note = %+v, want user role with content preserved", captured.Messages[2])
	}
	if captured.Messages[3].Role != "user" {
		t.Errorf("interaction role = %q", captured.Messages[3].Role)
	}
}
