package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/crossarb/coordinator"
)

// Server exposes the in-memory profit history and metrics to the operator.
type Server struct {
	history    *coordinator.ProfitHistory
	logger     *zap.Logger
	httpServer *http.Server
}

// New builds the operator API. The metrics registry may be nil when
// Prometheus is disabled.
func New(addr string, history *coordinator.ProfitHistory, registry *prometheus.Registry, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	s := &Server{history: history, logger: logger}

	g := router.Group("/api")
	g.GET("/history", s.getHistory)
	g.GET("/status", s.getStatus)
	if registry != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))
	}

	s.httpServer = &http.Server{Addr: addr, Handler: router}
	return s
}

// Start serves the API in the background.
func (s *Server) Start() {
	s.logger.Info("Starting operator API", zap.String("addr", s.httpServer.Addr))
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("Operator API stopped", zap.Error(err))
		}
	}()
}

// Stop shuts the API down gracefully.
func (s *Server) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("Operator API shutdown failed", zap.Error(err))
	}
}

func (s *Server) getHistory(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"attempts":     s.history.Snapshot(),
		"total_profit": s.history.TotalProfit(),
	})
}

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"attempts":     s.history.Len(),
		"total_profit": s.history.TotalProfit(),
	})
}
