package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"symptomlog/internal/cache"
	"symptomlog/internal/core"
	applog "symptomlog/internal/log"
	"symptomlog/internal/middleware/ratelimit"
	"symptomlog/internal/middleware/security"
	"symptomlog/internal/middleware/trace"
	"symptomlog/internal/services"
)

// CategoryService is the catalog surface the handlers need.
type CategoryService interface {
	List(ctx context.Context, includeArchived bool) ([]core.Category, error)
	Get(ctx context.Context, id string) (*core.Category, error)
	Add(ctx context.Context, name string) (*core.Category, error)
	Update(ctx context.Context, id string, patch core.CategoryPatch) (bool, error)
	RestoreDefaults(ctx context.Context) ([]core.Category, error)
}

// EntryService is the day-record surface the handlers need.
type EntryService interface {
	Get(ctx context.Context, isoDate string) (*core.Entry, error)
	Upsert(ctx context.Context, isoDate string, scores core.Scores) (*core.Entry, error)
	Delete(ctx context.Context, isoDate string) error
	RangeQuery(ctx context.Context, from, to string) ([]core.Entry, error)
}

// SnapshotService exports and imports the whole store.
type SnapshotService interface {
	ExportAll(ctx context.Context) (*services.Snapshot, error)
	ImportAll(ctx context.Context, data []byte, policy services.MergePolicy) (services.ImportResult, error)
}

// Pinger reports whether the database answers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps wires the server to its collaborators.
type Deps struct {
	Categories CategoryService
	Entries    EntryService
	Snapshots  SnapshotService
	DB         Pinger
	Logger     *applog.Logger

	// MovingAverageWindow is used when a series request has no window.
	MovingAverageWindow int
	// TrustedProxies are extra CIDRs whose X-Forwarded-For is believed.
	TrustedProxies []string
	// Today defaults to time.Now.
	Today func() time.Time
}

type Server struct {
	http.Server

	categories CategoryService
	entries    EntryService
	snapshots  SnapshotService
	db         Pinger
	logger     *applog.Logger
	maWindow   int
	today      func() time.Time

	catalog *cache.LRUCache[[]core.Category]
	caches  *cache.Manager

	limiter      *ratelimit.Limiter
	tracer       *trace.Middleware
	shutdownOnce sync.Once
}

const (
	catalogTTL         = time.Minute
	cacheCleanupPeriod = 10 * time.Minute
	catalogKeyActive   = "active"
	catalogKeyArchived = "all"
)

// NewServer configures routes and middleware, returning a ready-to-run http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)

	today := deps.Today
	if today == nil {
		today = localToday
	}

	s := &Server{
		categories: deps.Categories,
		entries:    deps.Entries,
		snapshots:  deps.Snapshots,
		db:         deps.DB,
		logger:     logger,
		maWindow:   deps.MovingAverageWindow,
		today:      today,
		catalog:    cache.NewLRUCache[[]core.Category](2, catalogTTL),
		caches:     cache.NewManager(logger),
		limiter:    ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}
	s.caches.Register(s.catalog)
	s.caches.StartCleanup(cacheCleanupPeriod)

	clientIP := security.NewClientIP()
	for _, cidr := range deps.TrustedProxies {
		if err := clientIP.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring trusted proxy", applog.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, clientIP.Extract)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           s.routes(clientIP),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(clientIP *security.ClientIP) http.Handler {
	r := chi.NewRouter()

	r.Use(s.tracer.Middleware)
	r.Use(applog.Middleware(s.logger))
	r.Use(applog.RequestIDMiddleware(trace.RequestIDFromRequest))
	r.Use(chimw.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)

	r.Get("/healthz", handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(r chi.Router) {
		r.Use(s.limiter.Middleware(clientIP.Extract))

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleAddCategory)
			r.Post("/restore-defaults", s.handleRestoreDefaults)
			r.Patch("/{id}", s.handleUpdateCategory)
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/", s.handleListEntries)
			r.Get("/{date}", s.handleGetEntry)
			r.Put("/{date}", s.handlePutEntry)
			r.Delete("/{date}", s.handleDeleteEntry)
		})

		r.Get("/stats/series", s.handleSeries)
		r.Get("/stats/totals", s.handleTotals)

		r.Get("/export", s.handleExportJSON)
		r.Get("/export.csv", s.handleExportCSV)
		r.Post("/import", s.handleImport)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		RespondWithError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}

// Shutdown stops background routines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.caches.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
		s.logger.Info("HTTP server stopped", "requests_served", s.tracer.TotalRequests())
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.db.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness check failed", applog.FieldError, err)
			RespondWithError(w, r, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

// listCategories reads the catalog through the cache. Writes made through
// this server purge it; writes from other processes show up within
// catalogTTL. A read that overlaps a purge is served but not cached.
func (s *Server) listCategories(ctx context.Context, includeArchived bool) ([]core.Category, error) {
	key := catalogKeyActive
	if includeArchived {
		key = catalogKeyArchived
	}
	if cats, ok := s.catalog.Get(key); ok {
		return append([]core.Category(nil), cats...), nil
	}

	gen := s.catalog.Generation()
	cats, err := s.categories.List(ctx, includeArchived)
	if err != nil {
		return nil, err
	}
	s.catalog.SetIfGeneration(key, append([]core.Category(nil), cats...), gen)
	return cats, nil
}

func (s *Server) invalidateCatalog() {
	s.catalog.Purge()
}
