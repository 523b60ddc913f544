// Package httpapi is the control surface: strategy lifecycle, simulator
// configuration, positions, and health over HTTP.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/kuanchen/stratsim/engine"
	"github.com/kuanchen/stratsim/sim"
	"github.com/kuanchen/stratsim/strategies"
)

type Server struct {
	engine   *engine.Engine
	sim      *sim.Simulator
	log      zerolog.Logger
	shutdown func()

	router *gin.Engine
	srv    *http.Server
}

// NewServer wires the routes. shutdown is invoked by POST /shutdown and
// must be safe to call more than once.
func NewServer(addr string, eng *engine.Engine, simulator *sim.Simulator, shutdown func(), log zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(log))

	s := &Server{
		engine:   eng,
		sim:      simulator,
		log:      log,
		shutdown: shutdown,
		router:   router,
		srv:      &http.Server{Addr: addr, Handler: router},
	}

	router.POST("/strategies/load", s.handleLoad)
	router.POST("/strategies/unload/:id", s.handleUnload)
	router.GET("/strategies/status", s.handleStatus)
	router.GET("/strategies/available", s.handleAvailable)
	router.GET("/strategies/info/:name", s.handleInfo)
	router.GET("/health", s.handleHealth)
	router.POST("/config", s.handleConfig)
	router.GET("/positions", s.handlePositions)
	router.POST("/reset", s.handleReset)
	router.POST("/shutdown", s.handleShutdown)
	router.POST("/api/shutdown", s.handleShutdown)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return s
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.srv.Addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

type loadRequest struct {
	ID           string         `json:"id"`
	StrategyType string         `json:"strategy_type"`
	Strategy     string         `json:"strategy"` // legacy key, same meaning
	Params       map[string]any `json:"params"`
}

func (s *Server) handleLoad(c *gin.Context) {
	var req loadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	strategyType := req.StrategyType
	if strategyType == "" {
		strategyType = req.Strategy
	}
	if strategyType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "strategy_type is required"})
		return
	}

	loaded, err := s.engine.Load(strategyType, req.ID, req.Params)
	if err != nil {
		var unknown *strategies.UnknownStrategyError
		if errors.As(err, &unknown) {
			c.JSON(http.StatusBadRequest, gin.H{
				"success":              false,
				"error":                err.Error(),
				"available_strategies": unknown.Available,
			})
			return
		}
		status := http.StatusBadRequest
		if errors.Is(err, engine.ErrAlreadyLoaded) {
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"id":      loaded.ID,
		"type":    loaded.Type,
		"params":  loaded.Params,
	})
}

func (s *Server) handleUnload(c *gin.Context) {
	instanceID := c.Param("id")
	if err := s.engine.Unload(instanceID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"message": "strategy " + instanceID + " not found",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "strategy " + instanceID + " unloaded",
	})
}

func (s *Server) handleStatus(c *gin.Context) {
	bars, signals := s.engine.Counts()
	c.JSON(http.StatusOK, gin.H{
		"service":              "stratsim",
		"strategies":           s.engine.Status(),
		"sessions":             s.sim.Sessions(),
		"bars_processed":       bars,
		"signals_emitted":      signals,
		"fill_count":           s.sim.FillCount(),
		"available_strategies": s.engine.Registry().Names(),
	})
}

func (s *Server) handleAvailable(c *gin.Context) {
	list := s.engine.Registry().List()
	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"strategies": list,
		"count":      len(list),
	})
}

func (s *Server) handleInfo(c *gin.Context) {
	name := c.Param("name")
	info, err := s.engine.Registry().InfoFor(name)
	if err != nil {
		var unknown *strategies.UnknownStrategyError
		resp := gin.H{"success": false, "error": err.Error()}
		if errors.As(err, &unknown) {
			resp["available_strategies"] = unknown.Available
		}
		c.JSON(http.StatusNotFound, resp)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "info": info})
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":               "running",
		"strategies_loaded":    len(s.engine.Status()),
		"strategies_available": len(s.engine.Registry().Names()),
		"fills":                s.sim.FillCount(),
	})
}

func (s *Server) handleConfig(c *gin.Context) {
	var patch map[string]any
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
		return
	}
	cfg := s.sim.UpdateConfig(patch)
	c.JSON(http.StatusOK, gin.H{"success": true, "config": cfg})
}

func (s *Server) handlePositions(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"positions":  s.sim.Sessions(),
		"fill_count": s.sim.FillCount(),
	})
}

type resetRequest struct {
	StrategyID string `json:"strategy_id"`
}

func (s *Server) handleReset(c *gin.Context) {
	var req resetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": "invalid request body: " + err.Error()})
			return
		}
	}
	if req.StrategyID != "" {
		found := s.sim.Reset(req.StrategyID)
		c.JSON(http.StatusOK, gin.H{"success": true, "found": found, "message": "session reset"})
		return
	}
	cleared := s.sim.ResetAll()
	c.JSON(http.StatusOK, gin.H{"success": true, "cleared": cleared, "message": "simulator reset"})
}

func (s *Server) handleShutdown(c *gin.Context) {
	s.log.Info().Msg("shutdown requested via api")
	go s.shutdown()
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "shutting down"})
}

func requestLogger(log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Msg("http request")
	}
}
