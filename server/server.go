package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"optionflow/config"
	"optionflow/logger"
	"optionflow/models"
)

// OptionsService is the view pipeline the HTTP layer fronts.
type OptionsService interface {
	SummaryStats(ctx context.Context) (*models.SummaryResponse, error)
	OptionsChain(ctx context.Context, symbol string) (*models.ChainResponse, error)
	OptionDetails(ctx context.Context, symbol, optionSymbol string) (*models.DetailsResponse, error)
	Expirations(ctx context.Context, symbol string) (*models.ExpirationsResponse, error)
	TopMovers(ctx context.Context) (*models.MoversResponse, error)
	LongDated(ctx context.Context) (*models.MoversResponse, error)
	LongDatedLarge(ctx context.Context) (*models.LargeTradesResponse, error)
	Screen(ctx context.Context, criteria models.ScreenCriteria) (*models.ScreenResponse, error)
}

// Server exposes the views over HTTP.
type Server struct {
	cfg       *config.Config
	universes *config.SymbolUniverses
	service   OptionsService
	engine    *gin.Engine
	http      *http.Server
	log       *logger.Entry
}

// New builds the HTTP server and its route table.
func New(cfg *config.Config, universes *config.SymbolUniverses, service OptionsService) *Server {
	if config.IsProductionLike(config.AppEnvironment()) {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:       cfg,
		universes: universes,
		service:   service,
		engine:    gin.New(),
		log:       logger.GetLogger().WithComponent("server"),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(s.requestLogger())

	corsCfg := cors.DefaultConfig()
	if cfg.Server.CORSOrigin == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = []string{cfg.Server.CORSOrigin}
	}
	corsCfg.AllowMethods = []string{http.MethodGet, http.MethodOptions}
	s.engine.Use(cors.New(corsCfg))

	s.routes()

	s.http = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	options := s.engine.Group("/api/options")
	{
		options.GET("/summary-stats", s.handleSummaryStats)
		options.GET("/chain/:symbol", s.handleChain)
		options.GET("/details/:symbol/:optionSymbol", s.handleDetails)
		options.GET("/expirations/:symbol", s.handleExpirations)
		options.GET("/top-movers", s.handleTopMovers)
		options.GET("/long-dated", s.handleLongDated)
	}

	screener := s.engine.Group("/api/screener")
	{
		screener.GET("/screen", s.handleScreen)
		screener.GET("/long-dated-large", s.handleLongDatedLarge)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.WithFields(logger.Fields{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
			"client":      c.ClientIP(),
		}).Debug("request")
	}
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.log.WithFields(logger.Fields{"addr": s.http.Addr}).Info("http server listening")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// Handler exposes the route table, for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}
