// Package server exposes the submission store over HTTP: the form page, the
// REST API, PDF receipts and a websocket feed of new submissions.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/atomicdeploy/form-receipts/pkg/api"
	"github.com/atomicdeploy/form-receipts/pkg/receipt"
	"github.com/atomicdeploy/form-receipts/pkg/store"
	"github.com/atomicdeploy/form-receipts/pkg/submission"
	"github.com/atomicdeploy/form-receipts/pkg/watcher"
	"github.com/atomicdeploy/form-receipts/web"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
)

// Options configure a Server.
type Options struct {
	// AllowedOrigin is sent as Access-Control-Allow-Origin. Empty means "*".
	AllowedOrigin string
	// Receipts renders PDF receipts. Nil uses the default generator.
	Receipts *receipt.Generator
	// Verbose logs every request.
	Verbose bool
}

// Server represents the HTTP/WebSocket server
type Server struct {
	router        *mux.Router
	store         store.Store
	receipts      *receipt.Generator
	allowedOrigin string
	verbose       bool
	watcher       *watcher.FileWatcher
	wsClients     map[*websocket.Conn]*wsClient
	wsClientsMu   sync.RWMutex
	upgrader      websocket.Upgrader
	lastIDs       map[string]bool
	lastIDsMu     sync.Mutex
}

// wsClient serializes writes to one connection.
type wsClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsClient) send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return c.conn.WriteJSON(v)
}

// ChangeSet is a websocket message.
type ChangeSet struct {
	Type       string                  `json:"type"`
	Timestamp  string                  `json:"timestamp"`
	Added      []submission.Submission `json:"added,omitempty"`
	Deleted    []string                `json:"deleted,omitempty"`
	TotalCount int                     `json:"total_count"`
}

// Websocket message types
const (
	MessageInitial = "initial"
	MessageCreated = "created"
	MessageUpdate  = "update"
)

// NewServer creates a new server instance on top of st.
func NewServer(ctx context.Context, st store.Store, opts Options) (*Server, error) {
	if opts.Receipts == nil {
		opts.Receipts = receipt.NewGenerator(receipt.Options{})
	}
	if opts.AllowedOrigin == "" {
		opts.AllowedOrigin = "*"
	}

	s := &Server{
		router:        mux.NewRouter(),
		store:         st,
		receipts:      opts.Receipts,
		allowedOrigin: opts.AllowedOrigin,
		verbose:       opts.Verbose,
		wsClients:     make(map[*websocket.Conn]*wsClient),
		lastIDs:       make(map[string]bool),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	// seed the snapshot so the first broadcast only carries new submissions
	subs, err := st.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load submissions: %w", err)
	}
	for _, sub := range subs {
		s.lastIDs[sub.ID] = true
	}

	s.setupRoutes()
	return s, nil
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures the HTTP routes
func (s *Server) setupRoutes() {
	s.router.Use(s.recoverMiddleware)
	if s.verbose {
		s.router.Use(s.logMiddleware)
	}

	s.router.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)

	// the prefix route carries no methods, so CORS methods come from the subrouter
	apiRouter := s.router.PathPrefix("/api/form").Subrouter()
	apiRouter.Use(mux.CORSMethodMiddleware(apiRouter))
	apiRouter.Use(s.corsMiddleware)
	apiRouter.HandleFunc("/submit", s.handleSubmit).Methods(http.MethodPost, http.MethodOptions)
	apiRouter.HandleFunc("/submissions", s.handleList).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/download/{id}", s.handleDownload).Methods(http.MethodGet, http.MethodOptions)
	apiRouter.HandleFunc("/receipt/{id}", s.handleReceipt).Methods(http.MethodGet, http.MethodOptions)

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	// Allow empty origin (direct connections, testing)
	if origin == "" || s.allowedOrigin == "*" || origin == s.allowedOrigin {
		return true
	}
	// the embedded page talks to the server it was served from
	if u, err := url.Parse(origin); err == nil && u.Host == r.Host {
		return true
	}
	log.Printf("⚠️  Rejected WebSocket connection from origin: %s", origin)
	return false
}

// handleIndex serves the form page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(web.IndexHTML)
}

// decodeInput reads a submission from a JSON or form encoded body.
func decodeInput(r *http.Request) (submission.Input, error) {
	var in submission.Input
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			return in, fmt.Errorf("invalid JSON body: %w", err)
		}
		return in, nil
	}

	if err := r.ParseForm(); err != nil {
		return in, fmt.Errorf("invalid form body: %w", err)
	}
	in.Name = r.PostForm.Get("name")
	in.Email = r.PostForm.Get("email")
	in.Phone = r.PostForm.Get("phone")
	in.Message = r.PostForm.Get("message")
	return in, nil
}

// handleSubmit validates and stores a new submission
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	in, err := decodeInput(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, api.Envelope{
			Message: api.MsgInvalidInput,
			Errors:  []string{err.Error()},
		})
		return
	}

	sub, err := s.store.Create(r.Context(), in)
	var verr *submission.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, api.Envelope{
			Message: api.MsgInvalidInput,
			Errors:  verr.Messages,
		})
		return
	case err != nil:
		log.Printf("❌ Failed to save submission: %v", err)
		writeJSON(w, http.StatusInternalServerError, api.Envelope{
			Message: api.MsgDatabase,
			Error:   err.Error(),
		})
		return
	}

	log.Printf("📝 New submission %s", sub.ID)
	writeData(w, http.StatusCreated, api.MsgCreated, sub, nil)

	go s.broadcastChanges(MessageCreated)
}

// handleList returns all submissions, newest first
func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	subs, err := s.store.List(r.Context())
	if err != nil {
		log.Printf("❌ Failed to list submissions: %v", err)
		writeJSON(w, http.StatusInternalServerError, api.Envelope{
			Message: api.MsgListFailed,
			Error:   err.Error(),
		})
		return
	}

	count := len(subs)
	writeData(w, http.StatusOK, "", subs, &count)
}

// lookup loads the submission named in the route or writes the error
// response. ok is false when a response was written.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (submission.Submission, bool) {
	id := mux.Vars(r)["id"]

	sub, err := s.store.Get(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, api.Envelope{Message: api.MsgNotFound})
		return sub, false
	}
	if err != nil {
		log.Printf("❌ Failed to load submission %s: %v", id, err)
		writeJSON(w, http.StatusInternalServerError, api.Envelope{
			Message: api.MsgDownloadFailed,
			Error:   err.Error(),
		})
		return sub, false
	}
	return sub, true
}

// handleDownload returns one submission as JSON
func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.lookup(w, r)
	if !ok {
		return
	}
	writeData(w, http.StatusOK, "", sub, nil)
}

// handleReceipt returns the PDF receipt of one submission
func (s *Server) handleReceipt(w http.ResponseWriter, r *http.Request) {
	sub, ok := s.lookup(w, r)
	if !ok {
		return
	}

	data, err := s.receipts.Render(sub)
	if err != nil {
		log.Printf("❌ Failed to render receipt for %s: %v", sub.ID, err)
		writeJSON(w, http.StatusInternalServerError, api.Envelope{
			Message: api.MsgDownloadFailed,
			Error:   err.Error(),
		})
		return
	}

	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", receipt.Filename(sub.ID)))
	w.Header().Set("Content-Length", fmt.Sprint(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade to WebSocket: %v", err)
		return
	}
	client := &wsClient{conn: conn}

	s.wsClientsMu.Lock()
	s.wsClients[conn] = client
	total := len(s.wsClients)
	s.wsClientsMu.Unlock()

	log.Printf("🔌 New WebSocket connection (total: %d)", total)

	// Send initial data
	s.sendInitial(r.Context(), client)

	// Handle disconnection
	go func() {
		defer func() {
			s.wsClientsMu.Lock()
			delete(s.wsClients, conn)
			remaining := len(s.wsClients)
			s.wsClientsMu.Unlock()
			conn.Close()
			log.Printf("🔌 WebSocket disconnected (remaining: %d)", remaining)
		}()

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}()
}

// sendInitial sends every stored submission to a new client
func (s *Server) sendInitial(ctx context.Context, client *wsClient) {
	subs, err := s.store.List(ctx)
	if err != nil {
		log.Printf("Failed to list submissions: %v", err)
		return
	}

	message := ChangeSet{
		Type:       MessageInitial,
		Timestamp:  time.Now().Format(time.RFC3339),
		Added:      subs,
		TotalCount: len(subs),
	}
	if err := client.send(message); err != nil {
		log.Printf("Failed to send to WebSocket: %v", err)
	}
}

// broadcastChanges sends what changed in the store since the last
// broadcast to all connected clients.
func (s *Server) broadcastChanges(kind string) {
	// listing under the lock keeps snapshots in order
	s.lastIDsMu.Lock()
	subs, err := s.store.List(context.Background())
	if err != nil {
		s.lastIDsMu.Unlock()
		log.Printf("Failed to list submissions: %v", err)
		return
	}
	changes := s.computeChanges(kind, subs)
	s.lastIDsMu.Unlock()

	if len(changes.Added) == 0 && len(changes.Deleted) == 0 {
		return
	}

	s.wsClientsMu.RLock()
	clients := make([]*wsClient, 0, len(s.wsClients))
	for _, c := range s.wsClients {
		clients = append(clients, c)
	}
	s.wsClientsMu.RUnlock()

	if len(clients) == 0 {
		return
	}
	log.Printf("📡 Broadcasting %s to %d clients", kind, len(clients))

	for _, c := range clients {
		go func(c *wsClient) {
			if err := c.send(changes); err != nil {
				log.Printf("Failed to send to WebSocket: %v", err)
			}
		}(c)
	}
}

// computeChanges diffs subs against the last snapshot and replaces it.
// The caller holds lastIDsMu.
func (s *Server) computeChanges(kind string, subs []submission.Submission) ChangeSet {
	changes := ChangeSet{
		Type:       kind,
		Timestamp:  time.Now().Format(time.RFC3339),
		TotalCount: len(subs),
	}

	current := make(map[string]bool, len(subs))
	for _, sub := range subs {
		current[sub.ID] = true
		if !s.lastIDs[sub.ID] {
			changes.Added = append(changes.Added, sub)
		}
	}
	for id := range s.lastIDs {
		if !current[id] {
			changes.Deleted = append(changes.Deleted, id)
		}
	}
	sort.Strings(changes.Deleted)

	s.lastIDs = current
	return changes
}

// StartWatching reloads a file backed store whenever another process
// changes the file, and tells websocket clients about it.
func (s *Server) StartWatching(debounceDuration time.Duration) error {
	fs, ok := s.store.(*store.FileStore)
	if !ok {
		return errors.New("live reload needs the file store")
	}

	fw, err := watcher.NewFileWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	if err := fw.Watch(fs.Path(), func(path string) {
		changed, err := fs.Reload()
		if err != nil {
			log.Printf("⚠️  Failed to reload %s: %v", filepath.Base(path), err)
			return
		}
		if !changed {
			return
		}
		log.Printf("🔄 File changed: %s", filepath.Base(path))
		s.broadcastChanges(MessageUpdate)
	}, debounceDuration); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch file: %w", err)
	}

	s.watcher = fw
	fw.Start()
	log.Printf("👀 Watching store file: %s", filepath.Base(fs.Path()))

	return nil
}

// Start serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("🚀 Starting server on %s", addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	log.Printf("🛑 Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s.closeClients()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

func (s *Server) closeClients() {
	s.wsClientsMu.Lock()
	defer s.wsClientsMu.Unlock()
	for conn, c := range s.wsClients {
		c.mu.Lock()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		c.mu.Unlock()
		conn.Close()
	}
}

// Close cleans up server resources
func (s *Server) Close() error {
	if s.watcher != nil {
		return s.watcher.Close()
	}
	return nil
}
