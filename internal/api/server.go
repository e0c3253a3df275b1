// Package api serves the public events API and the admin sync endpoints.
//
// Public routes:
//
//	GET  /health
//	GET  /api/events           ?months=N&category=C&upcoming=N
//	GET  /api/events/{id}
//	GET  /api/events.ics
//
// Admin routes, behind bearer auth under /api/admin:
//
//	POST  /sync          preview sheet conflicts
//	PUT   /sync          apply resolutions
//	GET   /events        all events, including unpublished
//	PATCH /events/{id}   edit title, description, category or public
//	GET   /ws            dashboard websocket (when enabled)
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/lotusstage/stagesync/internal/schema"
	"github.com/lotusstage/stagesync/internal/security"
	"github.com/lotusstage/stagesync/internal/sheetsync"
)

// AdminPrefix is the path prefix of every admin route.
const AdminPrefix = "/api/admin"

// EventStore is the store surface the API needs.
type EventStore interface {
	sheetsync.EventStore
	GetEvent(ctx context.Context, id string) (*schema.Event, error)
}

// Syncer runs the sheet sync passes.
type Syncer interface {
	Preview(ctx context.Context) (*sheetsync.PreviewResult, error)
	Apply(ctx context.Context, resolutions []sheetsync.Resolution) sheetsync.ApplyResult
}

// EventNotifier is told about admin edits to stored events.
type EventNotifier interface {
	EventUpdated(eventID, action string, public bool)
}

// Options configures a Server.
type Options struct {
	Store  EventStore
	Syncer Syncer
	Auth   security.BearerAuth

	// Dashboard, if set, is mounted at /api/admin/ws.
	Dashboard http.Handler
	// Events, if set, receives admin event edits.
	Events EventNotifier

	// Location is the schedule's timezone, used by the ICS feed.
	Location     *time.Location
	CalendarName string

	Logger *zap.Logger
	// Now overrides the clock for tests.
	Now func() time.Time
}

// Server is the HTTP front end.
type Server struct {
	store    EventStore
	syncer   Syncer
	events   EventNotifier
	loc      *time.Location
	calName  string
	log      *zap.Logger
	now      func() time.Time
	handler  http.Handler
	httpSrv  *http.Server
	shutdown time.Duration
}

// New builds a server and its routes.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	name := opts.CalendarName
	if name == "" {
		name = "Events"
	}

	s := &Server{
		store:    opts.Store,
		syncer:   opts.Syncer,
		events:   opts.Events,
		loc:      loc,
		calName:  name,
		log:      logger,
		now:      now,
		shutdown: 5 * time.Second,
	}

	admin := http.NewServeMux()
	admin.HandleFunc("POST /sync", s.handleSyncPreview)
	admin.HandleFunc("PUT /sync", s.handleSyncApply)
	admin.HandleFunc("GET /events", s.handleAdminEvents)
	admin.HandleFunc("PATCH /events/{id}", s.handlePatchEvent)
	if opts.Dashboard != nil {
		admin.Handle("GET /ws", opts.Dashboard)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/events/{id}", s.handleEvent)
	mux.HandleFunc("GET /api/events.ics", s.handleICS)
	mux.Handle(AdminPrefix+"/", http.StripPrefix(AdminPrefix, opts.Auth.Middleware(admin)))

	s.handler = requestID(s.logRequests(recoverPanics(mux)))
	s.httpSrv = &http.Server{Handler: s.handler, ReadHeaderTimeout: 5 * time.Second}
	return s
}

// Handler returns the root handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully. It returns nil after a clean shutdown.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	if addr == "" {
		return errors.New("listen address required")
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled, then waits up to the shutdown
// timeout for in-flight requests.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.log.Info("http server listening", zap.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.httpSrv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	timeout, cancel := context.WithTimeout(context.Background(), s.shutdown)
	defer cancel()
	err := s.httpSrv.Shutdown(timeout)
	<-errCh
	if err != nil {
		return fmt.Errorf("http shutdown incomplete: %w", err)
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
