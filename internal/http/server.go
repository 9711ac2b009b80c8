package http

import (
	"context"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"vahan/internal/cache"
	"vahan/internal/core"
	"vahan/internal/middleware/ratelimit"
	"vahan/internal/middleware/security"
	"vahan/internal/middleware/trace"
	"vahan/internal/source"
	appweb "vahan/web"
)

// Server serves the dashboard pages, HTMX partials and the JSON API on
// top of the dataset read ports.
type Server struct {
	http.Server
	templates *template.Template

	dataset source.DatasetReader
	catalog source.CatalogReader
	trend   source.TrendReader
	growth  source.GrowthReader
	share   source.ShareReader

	detector *security.Detector
	limiter  *ratelimit.Limiter

	// Cached dashboard views, all purged together when the dataset
	// is replaced.
	overviewCache *cache.LRUCache[core.Overview]
	trendCache    *cache.LRUCache[[]core.PeriodTotal]
	growthCache   *cache.LRUCache[[]core.GrowthMetric]
	shareCache    *cache.LRUCache[[]core.ShareSlice]
	cacheManager  *cache.Manager

	shutdownOnce sync.Once
}

const viewCacheTTL = 5 * time.Minute

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server.
func NewServer(addr string, ds source.DatasetReader, cr source.CatalogReader, tr source.TrendReader, gr source.GrowthReader, sr source.ShareReader) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		dataset:  ds,
		catalog:  cr,
		trend:    tr,
		growth:   gr,
		share:    sr,
		detector: security.NewDetector(),
		limiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),

		overviewCache: cache.NewLRUCache[core.Overview](100, viewCacheTTL),
		trendCache:    cache.NewLRUCache[[]core.PeriodTotal](200, viewCacheTTL),
		growthCache:   cache.NewLRUCache[[]core.GrowthMetric](50, viewCacheTTL),
		shareCache:    cache.NewLRUCache[[]core.ShareSlice](200, viewCacheTTL),
		cacheManager:  cache.NewManager(),
	}

	s.cacheManager.Register(s.overviewCache)
	s.cacheManager.Register(s.trendCache)
	s.cacheManager.Register(s.growthCache)
	s.cacheManager.Register(s.shareCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	traceMW := trace.NewMiddleware(s.detector.ExtractClientIP)
	headersMW := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limitMW := s.limiter.Middleware(s.detector.ExtractClientIP, nil)

	page := func(h http.HandlerFunc) http.Handler {
		return headersMW.Middleware(traceMW.Middleware(s.guard(h)))
	}
	limited := func(h http.HandlerFunc) http.Handler {
		return headersMW.Middleware(traceMW.Middleware(limitMW(s.guard(h))))
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.Handle("/", page(s.handleIndex))
	mux.HandleFunc("/healthz", handleHealth)
	mux.HandleFunc("/readyz", handleReady)

	// HTMX partials
	mux.Handle("/ui/overview", limited(s.handleOverviewPartial))
	mux.Handle("/ui/growth", limited(s.handleGrowthPartial))
	mux.Handle("/ui/share", limited(s.handleSharePartial))
	mux.Handle("/ui/table", limited(s.handleTablePartial))

	// JSON API
	mux.Handle("/api/trend", limited(s.handleAPITrend))
	mux.Handle("/api/growth", limited(s.handleAPIGrowth))
	mux.Handle("/api/share", limited(s.handleAPIShare))
	mux.Handle("/api/catalog", limited(s.handleAPICatalog))

	return s
}

// guard rejects requests matching common probe patterns before they
// reach a handler.
func (s *Server) guard(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			slog.WarnContext(r.Context(), "Suspicious request rejected",
				"path", r.URL.Path,
				"client_ip", s.detector.ExtractClientIP(r))
			http.NotFound(w, r)
			return
		}
		next(w, r)
	})
}

// InvalidateViewCaches drops every cached view. Called when a dataset
// refresh notification arrives.
func (s *Server) InvalidateViewCaches() {
	s.cacheManager.PurgeAll()
	slog.Info("View caches invalidated")
}

// Shutdown gracefully shuts down the server and its background loops.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.cacheManager.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
