package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{
		BaseURL:        srv.URL,
		Token:          "test-token",
		RequestTimeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestConversations(t *testing.T) {
	var gotAuth, gotPath, gotQuery string
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		_ = json.NewEncoder(w).Encode([]Conversation{
			{PeerID: "p1", LastMessagePreview: "hi", UnreadCount: 2},
		})
	}))

	convs, err := client.Conversations(context.Background(), true)
	if err != nil {
		t.Fatalf("Conversations: %v", err)
	}

	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotPath != "/operator/conversations" {
		t.Errorf("path = %q", gotPath)
	}
	if gotQuery != "unread_only=1" {
		t.Errorf("query = %q", gotQuery)
	}
	if len(convs) != 1 || convs[0].PeerID != "p1" || convs[0].UnreadCount != 2 {
		t.Errorf("unexpected conversations: %+v", convs)
	}
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Text != "hello" {
			t.Errorf("text = %q", body.Text)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"message_id": "m-42"})
	}))

	id, err := client.SendMessage(context.Background(), "p2", "hello")
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if id != "m-42" {
		t.Errorf("id = %q, want m-42", id)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unauthorized",
			status: http.StatusUnauthorized,
			check: func(t *testing.T, err error) {
				if !IsAuth(err) {
					t.Errorf("expected AuthError, got %v", err)
				}
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			check: func(t *testing.T, err error) {
				if !IsAuth(err) {
					t.Errorf("expected AuthError, got %v", err)
				}
			},
		},
		{
			name:   "server error with detail",
			status: http.StatusInternalServerError,
			body:   `{"error":"boom"}`,
			check: func(t *testing.T, err error) {
				var serverErr *ServerError
				if !errors.As(err, &serverErr) {
					t.Fatalf("expected ServerError, got %v", err)
				}
				if serverErr.Status != http.StatusInternalServerError || serverErr.Detail != "boom" {
					t.Errorf("unexpected ServerError: %+v", serverErr)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				if tt.body != "" {
					_, _ = w.Write([]byte(tt.body))
				}
			}))

			_, err := client.Messages(context.Background(), "p1")
			if err == nil {
				t.Fatal("expected error")
			}
			tt.check(t, err)
		})
	}
}

func TestNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, Token: "t"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Conversations(context.Background(), false)
	var netErr *NetworkError
	if !errors.As(err, &netErr) {
		t.Fatalf("expected NetworkError, got %v", err)
	}
}

func TestWaitForMessages(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/operator/messages/wait" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("timeout") != "30" {
			t.Errorf("timeout = %q", r.URL.Query().Get("timeout"))
		}
		_ = json.NewEncoder(w).Encode(WaitResult{NewMessage: true, PeerID: "p9"})
	}))

	res, err := client.WaitForMessages(context.Background(), 30*time.Second)
	if err != nil {
		t.Fatalf("WaitForMessages: %v", err)
	}
	if !res.NewMessage || res.PeerID != "p9" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestUnreadCount(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("resource"); got != "requests" {
			t.Errorf("resource = %q", got)
		}
		_ = json.NewEncoder(w).Encode(map[string]int{"count": 7})
	}))

	n, err := client.UnreadCount(context.Background(), ResourceRequests)
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 7 {
		t.Errorf("count = %d, want 7", n)
	}
}

func TestCredentialFromTokenFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("  file-token\n"), 0o600); err != nil {
		t.Fatalf("write token: %v", err)
	}

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte("[]"))
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(ClientConfig{BaseURL: srv.URL, TokenFile: path})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	if _, err := client.Conversations(context.Background(), false); err != nil {
		t.Fatalf("Conversations: %v", err)
	}
	if gotAuth != "Bearer file-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
}

func TestMissingCredentialIsAuthError(t *testing.T) {
	client, err := NewClient(ClientConfig{BaseURL: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	_, err = client.Conversations(context.Background(), false)
	if !IsAuth(err) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestConversationLabel(t *testing.T) {
	if got := (Conversation{PeerID: "481", DisplayName: "Ada"}).Label(); got != "Ada" {
		t.Errorf("Label() = %q", got)
	}
	if got := (Conversation{PeerID: "481"}).Label(); got != "Customer 481" {
		t.Errorf("Label() = %q", got)
	}
}
