package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"retaildash/internal/cache"
	"retaildash/internal/log"
	"retaildash/internal/middleware/ratelimit"
	"retaildash/internal/middleware/security"
	"retaildash/internal/middleware/trace"
	"retaildash/internal/render"
	appweb "retaildash/web"
)

const (
	requestTimeout = 15 * time.Second
	staticMaxAge   = 3600
)

type Config struct {
	Addr string
	// Source is the dataset cache key the dashboard reads.
	Source          string
	EmptyMatchesAll bool
	ReloadPerMinute int
	// Gatherer backs /metrics; nil uses the default registry.
	Gatherer prometheus.Gatherer
}

type Server struct {
	http.Server
	datasets        *cache.DatasetCache
	source          string
	emptyMatchesAll bool
	renderer        render.Renderer
	templates       *template.Template
	hub             *Hub
	detector        *security.Detector
	reloadLimiter   *ratelimit.Limiter
	logger          *log.Logger
	started         time.Time

	stopHub      context.CancelFunc
	shutdownOnce sync.Once
}

// NewServer configures routes and templates and starts the websocket hub.
// Invalidating the dataset cache notifies connected websocket clients.
func NewServer(cfg Config, datasets *cache.DatasetCache, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		datasets:        datasets,
		source:          cfg.Source,
		emptyMatchesAll: cfg.EmptyMatchesAll,
		renderer:        render.NewPNGRenderer(),
		detector:        security.NewDetector(),
		reloadLimiter: ratelimit.NewLimiter(ratelimit.Config{
			Name:              "reload",
			RequestsPerMinute: cfg.ReloadPerMinute,
		}),
		logger:  logger,
		started: time.Now(),
	}

	t, err := template.New("").Funcs(template.FuncMap{"date": formatDate}).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Warn("Failed parsing templates", log.FieldError, err)
	}
	s.templates = t

	s.hub = NewHub(s.computeDashboard, logger)
	hubCtx, cancel := context.WithCancel(context.Background())
	s.stopHub = cancel
	go s.hub.Run(hubCtx)
	datasets.OnInvalidate(s.hub.NotifyReloaded)

	gatherer := cfg.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(logger, gatherer),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(logger *log.Logger, gatherer prometheus.Gatherer) http.Handler {
	r := mux.NewRouter()
	r.Use(
		log.Middleware(logger),
		trace.NewMiddleware(s.detector.ExtractClientIP).Middleware,
		s.detector.Middleware,
		security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware,
	)

	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/readyz", s.handleReady).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	r.HandleFunc("/ws", s.hub.ServeWS).Methods(http.MethodGet)
	r.HandleFunc("/charts/{name:[a-z-]+}.png", s.handleChart).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/options", s.handleOptions).Methods(http.MethodGet)
	api.HandleFunc("/dashboard", s.handleDashboard).Methods(http.MethodGet)
	api.HandleFunc("/preview", s.handlePreview).Methods(http.MethodGet)
	api.Handle("/reload", s.reloadLimiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusTooManyRequests, "reload rate limit exceeded").Write(w)
	})(http.HandlerFunc(s.handleReload))).Methods(http.MethodPost)

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		r.PathPrefix("/static/").Handler(security.StaticAssetMiddleware(staticMaxAge)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	return r
}

// Shutdown stops the websocket hub and the rate limiter, then the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.stopHub()
		s.reloadLimiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
