// Package httpapi exposes the envirotrack service over a local JSON API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"envirotrack/internal/core"
)

// Options configures the router.
type Options struct {
	Logger *zap.Logger
	// Gatherer backs GET /metrics. The route is omitted when nil.
	Gatherer prometheus.Gatherer
}

// NewRouter builds the gin engine serving svc.
func NewRouter(svc *core.Service, opts Options) *gin.Engine {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	h := &handler{svc: svc}

	r := gin.New()
	r.Use(RequestID(), AccessLog(log), Recovery(log))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	if opts.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}

	api := r.Group("/api/v1")
	api.GET("/schemas", h.schemas)
	api.GET("/fuels", h.fuels)
	api.GET("/ghg/combustion", h.combustion)

	ws := api.Group("/workspaces")
	ws.GET("", h.listWorkspaces)
	ws.POST("", h.createWorkspace)
	ws.POST("/import", h.importWorkspace)
	ws.GET("/:id", h.getWorkspace)
	ws.DELETE("/:id", h.deleteWorkspace)
	ws.PUT("/:id/profile", h.saveProfile)
	ws.POST("/:id/open", h.openWorkspace)
	ws.GET("/:id/backup", h.backup)

	cur := api.Group("/current")
	cur.GET("", h.current)
	cur.DELETE("", h.closeWorkspace)
	cur.GET("/dashboard", h.dashboard)
	cur.GET("/records/:collection", h.listRecords)
	cur.POST("/records/:collection", h.addRecord)
	cur.PATCH("/records/:collection/:rid", h.editRecord)
	cur.DELETE("/records/:collection/:rid", h.deleteRecord)
	cur.GET("/export/:collection", h.exportCSV)
	cur.POST("/archive", h.archiveBackup)
	cur.POST("/archive/:collection", h.archiveCSV)

	ex := api.Group("/exports")
	ex.GET("", h.listExports)
	ex.POST("/import", h.importArchived)

	return r
}

// Server wraps http.Server with context-driven graceful shutdown.
type Server struct {
	srv             *http.Server
	shutdownTimeout time.Duration
	log             *zap.Logger
}

// NewServer binds handler to addr.
func NewServer(addr string, handler http.Handler, shutdownTimeout time.Duration, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		},
		shutdownTimeout: shutdownTimeout,
		log:             log,
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", s.srv.Addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
