package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"trade-agent/src/agent"
	"trade-agent/src/logger"
	"trade-agent/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// -----------------------------------------------------------------------------
// APIServer
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MAgentConfig
	Logger *logger.Logger
	Agent  *agent.Agent
	engine *gin.Engine

	// WebSocket clients
	clients    map[*Client]struct{}
	broadcast  chan *agent.MStatusSnapshot // Strongly typed and buffered queue
	register   chan *Client
	unregister chan *Client

	// Local cache of the last published snapshot
	latestState *agent.MStatusSnapshot
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MAgentConfig, ag *agent.Agent, logger *logger.Logger) *APIServer {
	// Set Gin mode
	if cfg.LogLevel != "DEBUG" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  logger,
		Agent:   ag,
		engine:  gin.Default(),
		clients: make(map[*Client]struct{}),
		// Buffered channel so a slow consumer cannot stall a tick
		broadcast:  make(chan *agent.MStatusSnapshot, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}

	// Add CORS Middleware
	s.engine.Use(func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if strings.HasPrefix(origin, "http://127.0.0.1:") {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		}
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Kill-Secret")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	// setup web routes
	s.setupRoutes()
	return s
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	// REST API endpoints
	api := s.engine.Group("/api", s.requireToken)
	api.GET("/status", s.getStatus)
	api.GET("/config", s.getConfig)
	api.GET("/metrics", s.getMetrics)
	api.GET("/logs", s.getLogs)
	api.POST("/config", s.postConfig)
	api.POST("/enable", s.postEnable)
	api.POST("/disable", s.postDisable)
	api.POST("/trigger", s.postTrigger)
	api.POST("/stress", s.postStress)

	// Kill switch uses its own secret, never the API token.
	s.engine.POST("/api/kill", s.postKill)

	// Unauthenticated surfaces
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(
		promhttp.HandlerFor(s.Agent.MetricsRegistry(), promhttp.HandlerOpts{})))

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Auth Middleware
// -----------------------------------------------------------------------------

// requireToken enforces the bearer API token when one is configured.
func (s *APIServer) requireToken(c *gin.Context) {
	if s.Config.APIToken == "" {
		c.Next()
		return
	}

	header := c.GetHeader("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if token == header || subtle.ConstantTimeCompare([]byte(token), []byte(s.Config.APIToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing api token"})
		return
	}
	c.Next()
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	go s.handleWebsockets()

	return s.engine.Run(addr)
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	// Clean shutdown
	close(s.broadcast)
	close(s.register)
	close(s.unregister)
	return nil
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	c.JSON(200, s.Agent.StatusSnapshot())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getConfig(c *gin.Context) {
	c.JSON(200, s.Agent.ConfigSnapshot())
}

// -----------------------------------------------------------------------------

func (s *APIServer) postConfig(c *gin.Context) {
	// Start from the live config so a partial body patches rather than zeroes.
	candidate := s.Agent.ConfigSnapshot()
	if err := c.ShouldBindJSON(candidate); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid config payload: %v", err)})
		return
	}

	if err := s.Agent.UpdateConfig(candidate); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, s.Agent.ConfigSnapshot())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getMetrics(c *gin.Context) {
	c.JSON(200, s.Agent.MetricsSnapshot())
}

// -----------------------------------------------------------------------------

func (s *APIServer) getLogs(c *gin.Context) {
	limit := 100
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = n
		}
	}
	c.JSON(200, gin.H{"logs": s.Agent.Logs(limit)})
}

// -----------------------------------------------------------------------------

func (s *APIServer) postEnable(c *gin.Context) {
	s.Agent.Enable()
	c.JSON(200, gin.H{"enabled": true})
}

func (s *APIServer) postDisable(c *gin.Context) {
	s.Agent.Disable()
	c.JSON(200, gin.H{"enabled": false})
}

// -----------------------------------------------------------------------------

func (s *APIServer) postTrigger(c *gin.Context) {
	s.Agent.TriggerTick(c.Request.Context())
	c.JSON(200, gin.H{"triggered": true})
}

// -----------------------------------------------------------------------------

func (s *APIServer) postStress(c *gin.Context) {
	c.JSON(200, s.Agent.TriggerStress())
}

// -----------------------------------------------------------------------------

func (s *APIServer) postKill(c *gin.Context) {
	secret := c.GetHeader("X-Kill-Secret")
	if s.Config.KillSecret == "" ||
		subtle.ConstantTimeCompare([]byte(secret), []byte(s.Config.KillSecret)) != 1 {
		c.JSON(http.StatusForbidden, gin.H{"error": "invalid kill secret"})
		return
	}

	s.Agent.Kill()
	c.JSON(200, gin.H{"kill_switch": true})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	connections := len(s.clients)
	s.stateMutex.RUnlock()

	c.JSON(200, gin.H{
		"status":      "ok",
		"connections": connections,
	})
}
