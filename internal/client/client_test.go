package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"tether/internal/types"
)

func TestGetThreadDecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/v1/threads/th_1" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(types.ThreadSnapshot{
			ID:    "th_1",
			Title: "demo",
			Turns: []types.Turn{{ID: "t1", Status: "completed"}},
		})
	}))
	defer server.Close()

	c, err := New(server.URL)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	snapshot, err := c.GetThread(context.Background(), "th_1")
	if err != nil {
		t.Fatalf("GetThread: %v", err)
	}
	if snapshot.Title != "demo" || len(snapshot.Turns) != 1 {
		t.Fatalf("unexpected snapshot: %+v", snapshot)
	}
}

func TestListThreads(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		_ = json.NewEncoder(w).Encode(ThreadsResponse{Threads: []types.ThreadSummary{
			{ID: "th_1"},
			{ID: "th_2"},
		}})
	}))
	defer server.Close()

	c, _ := New(server.URL)
	threads, err := c.ListThreads(context.Background())
	if err != nil {
		t.Fatalf("ListThreads: %v", err)
	}
	if len(threads) != 2 || threads[0].ID != "th_1" {
		t.Fatalf("unexpected threads: %+v", threads)
	}
}

func TestSendMessageCarriesActionID(t *testing.T) {
	var got SendMessageRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/threads/th_1/messages" {
			t.Fatalf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("unexpected content type: %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(SendAck{Accepted: true, TraceID: "tr_9"})
	}))
	defer server.Close()

	c, _ := New(server.URL)
	ack, err := c.SendMessage(context.Background(), "th_1", SendMessageRequest{
		Text:           "hello",
		ClientActionID: "action-1",
	})
	if err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if !ack.Accepted || ack.TraceID != "tr_9" {
		t.Fatalf("unexpected ack: %+v", ack)
	}
	if got.ClientActionID != "action-1" {
		t.Fatalf("action id = %q, want action-1", got.ClientActionID)
	}
}

func TestInterruptPostsToTurn(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/th_1/interrupt" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req InterruptRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.TurnID != "t7" {
			t.Fatalf("turn id = %q, want t7", req.TurnID)
		}
		_ = json.NewEncoder(w).Encode(InterruptAck{Pending: true})
	}))
	defer server.Close()

	c, _ := New(server.URL)
	ack, err := c.Interrupt(context.Background(), "th_1", InterruptRequest{TurnID: "t7", ClientActionID: "tok"})
	if err != nil {
		t.Fatalf("Interrupt: %v", err)
	}
	if !ack.Pending {
		t.Fatalf("unexpected ack: %+v", ack)
	}
}

func TestGetConfigEscapesCwd(t *testing.T) {
	cwd := "/tmp/dir with spaces&odd=chars"
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/config" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("cwd"); got != cwd {
			t.Fatalf("cwd = %q, want %q", got, cwd)
		}
		_ = json.NewEncoder(w).Encode(ClientConfig{SteerEnabled: true})
	}))
	defer server.Close()

	c, _ := New(server.URL)
	cfg, err := c.GetConfig(context.Background(), cwd)
	if err != nil {
		t.Fatalf("GetConfig: %v", err)
	}
	if !cfg.SteerEnabled {
		t.Fatal("config not decoded")
	}
}

func TestAPIErrorDecoding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		_, _ = w.Write([]byte(`{"error":"no active turn to interrupt"}`))
	}))
	defer server.Close()

	c, _ := New(server.URL)
	_, err := c.Interrupt(context.Background(), "th_1", InterruptRequest{})
	if err == nil {
		t.Fatal("expected an error")
	}
	apiErr := AsAPIError(err)
	if apiErr == nil {
		t.Fatalf("not an APIError: %v", err)
	}
	if apiErr.StatusCode != http.StatusConflict || apiErr.Message != "no active turn to interrupt" {
		t.Fatalf("unexpected APIError: %+v", apiErr)
	}
}

func TestAPIErrorWithoutBodyFallsBackToStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, _ := New(server.URL)
	_, err := c.GetThread(context.Background(), "th_1")
	apiErr := AsAPIError(err)
	if apiErr == nil || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestUploadAttachment(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/th_1/attachments" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		var req UploadAttachmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Filename != "shot.png" || string(req.Data) != "bytes" {
			t.Fatalf("unexpected upload: %+v", req)
		}
		_ = json.NewEncoder(w).Encode(types.PreparedRef{ID: "att_1", Filename: req.Filename})
	}))
	defer server.Close()

	c, _ := New(server.URL)
	ref, err := c.UploadAttachment(context.Background(), "th_1", types.Attachment{
		Filename: "shot.png",
		MimeType: "image/png",
		Data:     []byte("bytes"),
	})
	if err != nil {
		t.Fatalf("UploadAttachment: %v", err)
	}
	if ref.ID != "att_1" {
		t.Fatalf("unexpected ref: %+v", ref)
	}
}

func TestArchiveThreadTolerates204(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/threads/th_1/archive" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c, _ := New(server.URL)
	if err := c.ArchiveThread(context.Background(), "th_1"); err != nil {
		t.Fatalf("ArchiveThread: %v", err)
	}
}

func TestNewRejectsEmptyBaseURL(t *testing.T) {
	if _, err := New("   "); err == nil {
		t.Fatal("expected an error for an empty base url")
	}
}
