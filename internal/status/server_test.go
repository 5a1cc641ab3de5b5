package status

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hexflood/switchboard/internal/journal"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeOffset struct{ offset int64 }

func (f *fakeOffset) Offset() int64 { return f.offset }

type fakeStats struct {
	stats []journal.HandlerStats
	err   error
}

func (f *fakeStats) Stats(since time.Time) ([]journal.HandlerStats, error) {
	return f.stats, f.err
}

func TestStart_Validation(t *testing.T) {
	err := Start(context.Background(), StartOpts{Stats: &fakeStats{}})
	if err == nil || !strings.Contains(err.Error(), "offset source is required") {
		t.Errorf("missing offset: err = %v", err)
	}
	err = Start(context.Background(), StartOpts{Offset: &fakeOffset{}})
	if err == nil || !strings.Contains(err.Error(), "stats source is required") {
		t.Errorf("missing stats: err = %v", err)
	}
}

func TestHealthz(t *testing.T) {
	router := newRouter(&fakeOffset{}, &fakeStats{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if w.Body.String() != "ok" {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestStatus(t *testing.T) {
	router := newRouter(
		&fakeOffset{offset: 987},
		&fakeStats{stats: []journal.HandlerStats{{Handler: "Torrent", Handled: 4, Failed: 1}}},
	)
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var body struct {
		Offset   int64                  `json:"offset"`
		Handlers []journal.HandlerStats `json:"handlers"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if body.Offset != 987 {
		t.Errorf("offset = %d, want 987", body.Offset)
	}
	if len(body.Handlers) != 1 || body.Handlers[0].Handler != "Torrent" || body.Handlers[0].Failed != 1 {
		t.Errorf("handlers = %+v", body.Handlers)
	}
}

func TestStatus_StatsError(t *testing.T) {
	router := newRouter(&fakeOffset{}, &fakeStats{err: errors.New("db locked")})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "db locked") {
		t.Errorf("body = %q", w.Body.String())
	}
}

func TestStart_ShutsDownOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Start(ctx, StartOpts{Offset: &fakeOffset{}, Stats: &fakeStats{}, Port: 18099})
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("start returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down after cancel")
	}
}
