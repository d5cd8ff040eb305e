// Package http exposes the JSON API: bill uploads, session packs, the meal
// planner, recipes, the shopping list, and cookie-based auth.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"

	"hogar/internal/auth"
	"hogar/internal/cache"
	"hogar/internal/core"
	"hogar/internal/services"
	"hogar/internal/storage"
)

const sessionCookie = "hogar_session"

type Server struct {
	http.Server

	ingest  *services.IngestService
	packs   *services.PackService
	storage *storage.SQLiteRepository
	tokens  *auth.TokenService

	adminUsername string
	sessionTTL    time.Duration
	maxUploadSize int64

	validate    *validator.Validate
	rateLimiter *rateLimiter

	// View caches. Mutations invalidate the views they affect; staleness is
	// the only cost of a missed invalidation.
	packsCache    *cache.LRUCache[[]core.ServicePack]
	invoicesCache *cache.LRUCache[[]core.Invoice]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

type Options struct {
	Addr          string
	Ingest        *services.IngestService
	Packs         *services.PackService
	Storage       *storage.SQLiteRepository
	Tokens        *auth.TokenService
	AdminUsername string
	SessionTTL    time.Duration
	MaxUploadSize int64
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(opts Options) *Server {
	mux := http.NewServeMux()

	if opts.MaxUploadSize <= 0 {
		opts.MaxUploadSize = 20 << 20
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 7 * 24 * time.Hour
	}

	s := &Server{
		Server: http.Server{
			Addr:    opts.Addr,
			Handler: mux,
		},
		ingest:        opts.Ingest,
		packs:         opts.Packs,
		storage:       opts.Storage,
		tokens:        opts.Tokens,
		adminUsername: opts.AdminUsername,
		sessionTTL:    opts.SessionTTL,
		maxUploadSize: opts.MaxUploadSize,
		validate:      validator.New(),
		rateLimiter:   newRateLimiter(),
		packsCache:    newViewCache[[]core.ServicePack](),
		invoicesCache: newViewCache[[]core.Invoice](),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.packsCache)
	s.cacheManager.Register(s.invoicesCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	mux.HandleFunc("/auth/signup", s.withMiddleware(s.handleSignup))
	mux.HandleFunc("/auth/login", s.withMiddleware(s.handleLogin))
	mux.HandleFunc("/auth/logout", s.withMiddleware(s.handleLogout))

	mux.HandleFunc("/invoices/upload", s.withMiddleware(s.requireAuth(s.handleInvoiceUpload)))
	mux.HandleFunc("/invoices", s.withMiddleware(s.requireAuth(s.handleInvoiceList)))
	mux.HandleFunc("/invoices/export", s.withMiddleware(s.requireAuth(s.handleInvoiceExport)))
	mux.HandleFunc("/invoices/purge", s.withMiddleware(s.requireAdmin(s.handleInvoicePurge)))

	mux.HandleFunc("/packs", s.withMiddleware(s.requireAuth(s.handlePacks)))
	mux.HandleFunc("/packs/consume", s.withMiddleware(s.requireAuth(s.handlePackConsume)))
	mux.HandleFunc("/packs/renew", s.withMiddleware(s.requireAuth(s.handlePackRenew)))
	mux.HandleFunc("/packs/delete", s.withMiddleware(s.requireAuth(s.handlePackDelete)))

	mux.HandleFunc("/planner", s.withMiddleware(s.requireAuth(s.handlePlannerList)))
	mux.HandleFunc("/planner/assign", s.withMiddleware(s.requireAuth(s.handlePlannerAssign)))
	mux.HandleFunc("/planner/remove", s.withMiddleware(s.requireAuth(s.handlePlannerRemove)))
	mux.HandleFunc("/planner/clear-week", s.withMiddleware(s.requireAuth(s.handlePlannerClearWeek)))
	mux.HandleFunc("/planner/purge-past", s.withMiddleware(s.requireAdmin(s.handlePlannerPurgePast)))

	mux.HandleFunc("/recipes", s.withMiddleware(s.requireAuth(s.handleRecipes)))
	mux.HandleFunc("/recipes/delete", s.withMiddleware(s.requireAuth(s.handleRecipeDelete)))

	mux.HandleFunc("/shopping-list", s.withMiddleware(s.requireAuth(s.handleShoppingList)))
	mux.HandleFunc("/shopping-list/add", s.withMiddleware(s.requireAuth(s.handleShoppingAdd)))
	mux.HandleFunc("/shopping-list/toggle", s.withMiddleware(s.requireAuth(s.handleShoppingToggle)))
	mux.HandleFunc("/shopping-list/delete", s.withMiddleware(s.requireAuth(s.handleShoppingDelete)))
	mux.HandleFunc("/shopping-list/clear", s.withMiddleware(s.requireAuth(s.handleShoppingClear)))
	mux.HandleFunc("/shopping-list/import-week", s.withMiddleware(s.requireAuth(s.handleShoppingImportWeek)))

	return s
}

func newViewCache[T any]() *cache.LRUCache[T] {
	return cache.NewLRUCache[T](100, 5*time.Minute)
}

// Shutdown gracefully shuts down the server and its cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

const (
	packsView    = "packs"
	invoicesView = "invoices"
)

func (s *Server) invalidatePacks() {
	s.packsCache.DeletePrefix(packsView)
}

func (s *Server) invalidateInvoices() {
	s.invoicesCache.DeletePrefix(invoicesView)
}
