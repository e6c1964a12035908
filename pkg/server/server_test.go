package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/api"
	"github.com/atomicdeploy/form-receipts/pkg/store"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"github.com/gorilla/websocket"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("sub-%d", n)
	}
}

func newTestServer(t *testing.T, st store.Store) *Server {
	t.Helper()
	srv, err := NewServer(context.Background(), st, Options{AllowedOrigin: "http://localhost:3000"})
	if err != nil {
		t.Fatalf("Failed to create server: %v", err)
	}
	t.Cleanup(func() { srv.Close() })
	return srv
}

func do(srv *Server, method, path, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) api.Envelope {
	t.Helper()
	var env api.Envelope
	if err := json.NewDecoder(w.Body).Decode(&env); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	return env
}

const validJSON = `{"name":"Ahmed Ben Ali","email":"ahmed@example.com","phone":"0555 12 34 56"}`

func TestServerRoutes(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore(store.WithIDs(sequentialIDs())))

	t.Run("GET /", func(t *testing.T) {
		w := do(srv, "GET", "/", "", "")
		if w.Code != http.StatusOK {
			t.Errorf("Expected status 200, got %d", w.Code)
		}
		if ct := w.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
			t.Errorf("Expected Content-Type text/html; charset=utf-8, got %s", ct)
		}
	})

	t.Run("POST /api/form/submit JSON", func(t *testing.T) {
		w := do(srv, "POST", "/api/form/submit", "application/json", validJSON)
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		env := decodeEnvelope(t, w)
		if !env.Success || env.Message != api.MsgCreated {
			t.Errorf("Unexpected envelope %+v", env)
		}
		var sub submission.Submission
		if err := json.Unmarshal(env.Data, &sub); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
		if sub.ID != "sub-1" || sub.Name != "Ahmed Ben Ali" || sub.CreatedAt.IsZero() {
			t.Errorf("Unexpected submission %+v", sub)
		}
	})

	t.Run("POST /api/form/submit form encoded", func(t *testing.T) {
		form := url.Values{
			"name":  {"محمد بن علي"},
			"email": {"Mohamed@Example.com"},
			"phone": {"+213 555 00 00 00"},
		}
		w := do(srv, "POST", "/api/form/submit", "application/x-www-form-urlencoded", form.Encode())
		if w.Code != http.StatusCreated {
			t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
		}
		var sub submission.Submission
		json.Unmarshal(decodeEnvelope(t, w).Data, &sub)
		if sub.Email != "mohamed@example.com" {
			t.Errorf("Expected normalized email, got %q", sub.Email)
		}
	})

	t.Run("POST /api/form/submit invalid", func(t *testing.T) {
		w := do(srv, "POST", "/api/form/submit", "application/json", `{"name":"","email":"nope","phone":"12"}`)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Expected status 400, got %d", w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Success || env.Message != api.MsgInvalidInput {
			t.Errorf("Unexpected envelope %+v", env)
		}
		if len(env.Errors) != 3 {
			t.Errorf("Expected one message per invalid field, got %v", env.Errors)
		}
	})

	t.Run("POST /api/form/submit malformed", func(t *testing.T) {
		w := do(srv, "POST", "/api/form/submit", "application/json", `{"name":`)
		if w.Code != http.StatusBadRequest {
			t.Errorf("Expected status 400, got %d", w.Code)
		}
	})

	t.Run("GET /api/form/submissions", func(t *testing.T) {
		w := do(srv, "GET", "/api/form/submissions", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		env := decodeEnvelope(t, w)
		if env.Count == nil || *env.Count != 2 {
			t.Errorf("Expected count=2, got %v", env.Count)
		}
		var subs []submission.Submission
		if err := json.Unmarshal(env.Data, &subs); err != nil {
			t.Fatalf("Failed to decode data: %v", err)
		}
		if len(subs) != 2 || subs[0].ID != "sub-2" {
			t.Errorf("Expected newest first, got %+v", subs)
		}
	})

	t.Run("GET /api/form/download/{id}", func(t *testing.T) {
		w := do(srv, "GET", "/api/form/download/sub-1", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d", w.Code)
		}
		var sub submission.Submission
		json.Unmarshal(decodeEnvelope(t, w).Data, &sub)
		if sub.ID != "sub-1" {
			t.Errorf("Expected sub-1, got %+v", sub)
		}
	})

	t.Run("GET /api/form/download/{id} missing", func(t *testing.T) {
		w := do(srv, "GET", "/api/form/download/nope", "", "")
		if w.Code != http.StatusNotFound {
			t.Fatalf("Expected status 404, got %d", w.Code)
		}
		if env := decodeEnvelope(t, w); env.Success || env.Message != api.MsgNotFound {
			t.Errorf("Unexpected envelope %+v", env)
		}
	})

	t.Run("GET /api/form/receipt/{id}", func(t *testing.T) {
		w := do(srv, "GET", "/api/form/receipt/sub-2", "", "")
		if w.Code != http.StatusOK {
			t.Fatalf("Expected status 200, got %d: %s", w.Code, w.Body.String())
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/pdf" {
			t.Errorf("Expected application/pdf, got %s", ct)
		}
		if cd := w.Header().Get("Content-Disposition"); cd != `attachment; filename="form-submission-sub-2.pdf"` {
			t.Errorf("Unexpected Content-Disposition %q", cd)
		}
		if !bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")) {
			t.Error("Expected a PDF body")
		}
	})

	t.Run("GET /api/form/receipt/{id} missing", func(t *testing.T) {
		w := do(srv, "GET", "/api/form/receipt/nope", "", "")
		if w.Code != http.StatusNotFound {
			t.Errorf("Expected status 404, got %d", w.Code)
		}
	})

	t.Run("OPTIONS preflight", func(t *testing.T) {
		w := do(srv, "OPTIONS", "/api/form/submit", "", "")
		if w.Code != http.StatusNoContent {
			t.Errorf("Expected status 204, got %d", w.Code)
		}
		if origin := w.Header().Get("Access-Control-Allow-Origin"); origin != "http://localhost:3000" {
			t.Errorf("Unexpected Allow-Origin %q", origin)
		}
		if methods := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "POST") {
			t.Errorf("Expected POST in Allow-Methods, got %q", methods)
		}
	})

	t.Run("OPTIONS preflight on every API route", func(t *testing.T) {
		for _, path := range []string{"/api/form/submissions", "/api/form/download/x", "/api/form/receipt/x"} {
			w := do(srv, "OPTIONS", path, "", "")
			if w.Code != http.StatusNoContent {
				t.Errorf("%s: expected status 204, got %d", path, w.Code)
			}
			if methods := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(methods, "GET") {
				t.Errorf("%s: expected GET in Allow-Methods, got %q", path, methods)
			}
		}
	})
}

// brokenStore fails every call, or panics when panics is set.
type brokenStore struct {
	panics bool
}

var errBroken = errors.New("connection refused")

func (b brokenStore) fail() error {
	if b.panics {
		panic("store exploded")
	}
	return errBroken
}

func (b brokenStore) Create(ctx context.Context, in submission.Input) (submission.Submission, error) {
	return submission.Submission{}, b.fail()
}

func (b brokenStore) List(ctx context.Context) ([]submission.Submission, error) {
	return nil, b.fail()
}

func (b brokenStore) Get(ctx context.Context, id string) (submission.Submission, error) {
	return submission.Submission{}, b.fail()
}

func (b brokenStore) Close() error { return nil }

func TestServerStoreErrors(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	srv.store = brokenStore{}

	tests := []struct {
		method, path, body string
		wantStatus         int
		wantMessage        string
	}{
		{"POST", "/api/form/submit", validJSON, http.StatusInternalServerError, api.MsgDatabase},
		{"GET", "/api/form/submissions", "", http.StatusInternalServerError, api.MsgListFailed},
		{"GET", "/api/form/download/x", "", http.StatusInternalServerError, api.MsgDownloadFailed},
		{"GET", "/api/form/receipt/x", "", http.StatusInternalServerError, api.MsgDownloadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := do(srv, tt.method, tt.path, "application/json", tt.body)
			if w.Code != tt.wantStatus {
				t.Errorf("Expected status %d, got %d", tt.wantStatus, w.Code)
			}
			env := decodeEnvelope(t, w)
			if env.Success || env.Message != tt.wantMessage || env.Error != errBroken.Error() {
				t.Errorf("Unexpected envelope %+v", env)
			}
		})
	}
}

func TestServerRecoversFromPanic(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	srv.store = brokenStore{panics: true}

	w := do(srv, "GET", "/api/form/submissions", "", "")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected status 500, got %d", w.Code)
	}
	env := decodeEnvelope(t, w)
	if env.Success || env.Message != api.MsgInternal || env.Error != "store exploded" {
		t.Errorf("Unexpected envelope %+v", env)
	}
}

func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	testServer := httptest.NewServer(srv.router)
	t.Cleanup(testServer.Close)

	wsURL := "ws" + testServer.URL[4:] + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect WebSocket: %v", err)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readChangeSet(t *testing.T, ws *websocket.Conn) ChangeSet {
	t.Helper()
	var msg ChangeSet
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	if err := ws.ReadJSON(&msg); err != nil {
		t.Fatalf("Failed to read message: %v", err)
	}
	return msg
}

func TestWebSocketCreated(t *testing.T) {
	st := store.NewMemoryStore(store.WithIDs(sequentialIDs()))
	if _, err := st.Create(context.Background(), submission.Input{
		Name: "Sara", Email: "sara@example.com", Phone: "0666 11 22 33",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	srv := newTestServer(t, st)
	ws := dialWS(t, srv)

	initial := readChangeSet(t, ws)
	if initial.Type != MessageInitial || initial.TotalCount != 1 || len(initial.Added) != 1 {
		t.Fatalf("Unexpected initial message %+v", initial)
	}

	w := do(srv, "POST", "/api/form/submit", "application/json", validJSON)
	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d", w.Code)
	}

	created := readChangeSet(t, ws)
	if created.Type != MessageCreated || created.TotalCount != 2 {
		t.Errorf("Unexpected created message %+v", created)
	}
	if len(created.Added) != 1 || created.Added[0].ID != "sub-2" {
		t.Errorf("Expected only sub-2 added, got %+v", created.Added)
	}
}

func TestWebSocketFileUpdates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "submissions.json")
	fs, err := store.NewFileStore(path, store.WithIDs(sequentialIDs()))
	if err != nil {
		t.Fatalf("Failed to create file store: %v", err)
	}
	if _, err := fs.Create(context.Background(), submission.Input{
		Name: "Sara", Email: "sara@example.com", Phone: "0666 11 22 33",
	}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	srv := newTestServer(t, fs)
	if err := srv.StartWatching(50 * time.Millisecond); err != nil {
		t.Fatalf("Failed to start watching: %v", err)
	}
	ws := dialWS(t, srv)

	if initial := readChangeSet(t, ws); initial.Type != MessageInitial {
		t.Fatalf("Expected initial message, got %+v", initial)
	}

	// Give file watcher time to settle
	time.Sleep(200 * time.Millisecond)

	// another process appends a record
	subs, _ := fs.List(context.Background())
	external := submission.New("external-1", submission.Input{
		Name: "Omar", Email: "omar@example.com", Phone: "0777 00 11 22",
	}, time.Now().UTC())
	data, _ := json.MarshalIndent(append(subs, external), "", "  ")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("Failed to write store file: %v", err)
	}

	update := readChangeSet(t, ws)
	if update.Type != MessageUpdate {
		t.Errorf("Expected type=update, got %v", update.Type)
	}
	if len(update.Added) != 1 || update.Added[0].ID != "external-1" {
		t.Errorf("Expected external-1 added, got %+v", update.Added)
	}
	if update.TotalCount != 2 {
		t.Errorf("Expected total_count=2, got %d", update.TotalCount)
	}
}

func TestStartWatchingNeedsFileStore(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())
	if err := srv.StartWatching(0); err == nil {
		t.Error("Expected error when watching a memory store")
	}
}

func TestComputeChanges(t *testing.T) {
	srv := &Server{lastIDs: map[string]bool{}}
	a := submission.Submission{ID: "a"}
	b := submission.Submission{ID: "b"}
	c := submission.Submission{ID: "c"}

	changes := srv.computeChanges(MessageUpdate, []submission.Submission{b, a})
	if len(changes.Added) != 2 || changes.TotalCount != 2 {
		t.Errorf("Expected 2 added, got %+v", changes)
	}

	changes = srv.computeChanges(MessageUpdate, []submission.Submission{c, b, a})
	if len(changes.Added) != 1 || changes.Added[0].ID != "c" {
		t.Errorf("Expected c added, got %+v", changes.Added)
	}

	changes = srv.computeChanges(MessageUpdate, []submission.Submission{c, a})
	if len(changes.Added) != 0 || len(changes.Deleted) != 1 || changes.Deleted[0] != "b" {
		t.Errorf("Expected b deleted, got %+v", changes)
	}
}

func TestCheckOrigin(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	tests := []struct {
		origin string
		host   string
		want   bool
	}{
		{"", "example.com", true},
		{"http://localhost:3000", "example.com", true},
		{"http://forms.example.com", "forms.example.com", true},
		{"http://evil.example.net", "forms.example.com", false},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/ws", nil)
		req.Host = tt.host
		if tt.origin != "" {
			req.Header.Set("Origin", tt.origin)
		}
		if got := srv.checkOrigin(req); got != tt.want {
			t.Errorf("checkOrigin(%q, host %q) = %v, want %v", tt.origin, tt.host, got, tt.want)
		}
	}
}

func TestStartShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, store.NewMemoryStore())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Start(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Start returned %v after cancel", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
