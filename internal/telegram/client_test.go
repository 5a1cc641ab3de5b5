package telegram

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(ClientOpts{
		Token:          "test-token",
		BaseURL:        srv.URL,
		PollTimeoutSec: 1,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client, srv
}

func TestNewClient_RequiresToken(t *testing.T) {
	if _, err := NewClient(ClientOpts{}); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestGetUpdates(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/getUpdates" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("offset"); got != "42" {
			t.Errorf("offset = %s, want 42", got)
		}
		io.WriteString(w, `{"ok":true,"result":[
			{"update_id":42,"message":{"message_id":1,"chat":{"id":7},"text":"ping"}},
			{"update_id":43,"message":{"message_id":2,"chat":{"id":7},"text":"hello"}}
		]}`)
	}))

	updates, err := client.GetUpdates(context.Background(), 42)
	if err != nil {
		t.Fatalf("get updates: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("got %d updates, want 2", len(updates))
	}
	if updates[0].UpdateID != 42 || updates[0].Message.Text != "ping" {
		t.Errorf("unexpected first update: %+v", updates[0])
	}
	if updates[1].Message.Chat.ID != 7 {
		t.Errorf("chat id = %d, want 7", updates[1].Message.Chat.ID)
	}
}

func TestGetUpdates_MalformedBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":true,"result":`)
	}))

	_, err := client.GetUpdates(context.Background(), 1)
	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("got %v, want DecodeError", err)
	}
}

func TestGetUpdates_APIError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"ok":false,"description":"Unauthorized","result":null}`)
	}))

	_, err := client.GetUpdates(context.Background(), 1)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got %v, want TransportError", err)
	}
}

func TestGetUpdates_HTTPError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		io.WriteString(w, "<html>502 Bad Gateway</html>")
	}))

	_, err := client.GetUpdates(context.Background(), 1)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got %v, want TransportError for HTTP failure", err)
	}
	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		t.Fatalf("got DecodeError %v for a non-2xx response", err)
	}
}

func TestGetUpdates_ServerUnreachable(t *testing.T) {
	client, srv := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	_, err := client.GetUpdates(context.Background(), 1)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got %v, want TransportError", err)
	}
}

func TestGetFileAndDownload(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/bottest-token/getFile":
			if got := r.URL.Query().Get("file_id"); got != "abc" {
				t.Errorf("file_id = %s, want abc", got)
			}
			io.WriteString(w, `{"ok":true,"result":{"file_id":"abc","file_path":"documents/file_0.torrent"}}`)
		case "/file/bottest-token/documents/file_0.torrent":
			w.Write([]byte("torrent-bytes"))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))

	file, err := client.GetFile(context.Background(), "abc")
	if err != nil {
		t.Fatalf("get file: %v", err)
	}
	if file.FilePath != "documents/file_0.torrent" {
		t.Fatalf("file path = %s", file.FilePath)
	}

	data, err := client.DownloadFile(context.Background(), file.FilePath)
	if err != nil {
		t.Fatalf("download file: %v", err)
	}
	if string(data) != "torrent-bytes" {
		t.Errorf("downloaded %q", data)
	}
}

func TestSendMessage(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendMessage" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("content type = %s", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))

	err := client.SendMessage(context.Background(), SendMessage{ChatID: 7, Text: "pong", ReplyToMessageID: 3})
	if err != nil {
		t.Fatalf("send message: %v", err)
	}
	if body["chat_id"] != float64(7) || body["text"] != "pong" {
		t.Errorf("unexpected body: %v", body)
	}
	if body["reply_to_message_id"] != float64(3) {
		t.Errorf("reply_to_message_id = %v", body["reply_to_message_id"])
	}
}

func TestSendMessage_OmitsZeroReplyTo(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&body)
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))

	if err := client.SendMessage(context.Background(), SendMessage{ChatID: 7, Text: "hi"}); err != nil {
		t.Fatalf("send message: %v", err)
	}
	if _, ok := body["reply_to_message_id"]; ok {
		t.Error("reply_to_message_id should be omitted when zero")
	}
}

func TestSendVideo(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("video-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/bottest-token/sendVideo" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if got := r.FormValue("chat_id"); got != "9" {
			t.Errorf("chat_id = %s", got)
		}
		f, header, err := r.FormFile("video")
		if err != nil {
			t.Fatalf("video part: %v", err)
		}
		defer f.Close()
		if header.Filename != "clip.mp4" {
			t.Errorf("filename = %s", header.Filename)
		}
		data, _ := io.ReadAll(f)
		if string(data) != "video-bytes" {
			t.Errorf("video content = %q", data)
		}
		io.WriteString(w, `{"ok":true,"result":{}}`)
	}))

	if err := client.SendVideo(context.Background(), 9, path, 5); err != nil {
		t.Fatalf("send video: %v", err)
	}
}

func TestSendVideo_HTTPError(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip.mp4")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "too large", http.StatusRequestEntityTooLarge)
	}))

	err := client.SendVideo(context.Background(), 9, path, 0)
	var transportErr *TransportError
	if !errors.As(err, &transportErr) {
		t.Fatalf("got %v, want TransportError", err)
	}
}
