package telegram

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClientWithBaseURL("test-token", server.URL, 5*time.Second)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}
	return client, server
}

func TestGetUpdates(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/bottest-token/getUpdates") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		if got := r.PostFormValue("offset"); got != "10" {
			t.Errorf("Expected offset 10, got %s", got)
		}
		if got := r.PostFormValue("timeout"); got != "5" {
			t.Errorf("Expected timeout 5, got %s", got)
		}

		_, _ = w.Write([]byte(`{
			"ok": true,
			"result": [
				{"update_id": 11, "message": {"message_id": 1, "chat": {"id": 99}, "text": "/start", "from": {"id": 99, "username": "alice"}}},
				{"update_id": 12, "message": {"message_id": 2, "chat": {"id": 99}, "text": "1"}}
			]
		}`))
	})

	updates, err := client.GetUpdates(context.Background(), 10, 5*time.Second)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("Expected 2 updates, got %d", len(updates))
	}
	if updates[0].UpdateID != 11 {
		t.Errorf("Expected update_id 11, got %d", updates[0].UpdateID)
	}
	if updates[0].Message == nil || updates[0].Message.Text != "/start" {
		t.Error("Expected first message text /start")
	}
	if updates[0].Message.From == nil || updates[0].Message.From.Username != "alice" {
		t.Error("Expected sender username alice")
	}
	if updates[1].Message.Chat.ID != 99 {
		t.Errorf("Expected chat id 99, got %d", updates[1].Message.Chat.ID)
	}
}

func TestSendMessage(t *testing.T) {
	var gotChatID, gotText string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
			t.Errorf("Unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatalf("Failed to parse form: %v", err)
		}
		gotChatID = r.PostFormValue("chat_id")
		gotText = r.PostFormValue("text")
		_, _ = w.Write([]byte(`{"ok": true, "result": {"message_id": 5}}`))
	})

	if err := client.SendMessage(context.Background(), 123, "hello"); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if gotChatID != "123" {
		t.Errorf("Expected chat_id 123, got %s", gotChatID)
	}
	if gotText != "hello" {
		t.Errorf("Expected text hello, got %s", gotText)
	}
}

func TestMakeRequest_APIError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok": false, "description": "Unauthorized"}`))
	})

	err := client.SendMessage(context.Background(), 1, "x")
	if err == nil {
		t.Fatal("Expected error for ok=false response")
	}
	if !strings.Contains(err.Error(), "Unauthorized") {
		t.Errorf("Expected API description in error, got %v", err)
	}
}

func TestNewClient_EmptyToken(t *testing.T) {
	if _, err := NewClient("", time.Second); err == nil {
		t.Fatal("Expected error for empty token")
	}
}
