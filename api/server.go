package api

import (
	"log"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"protevent/config"
	"protevent/database"
	"protevent/events"
)

// Server is the thin HTTP transport over the event registry: it parses
// requests and renders JSON, all business logic lives in events and export.
type Server struct {
	config   config.Config
	registry *events.Registry
	db       database.Database
}

// NewServer creates the API server. db may be nil when history is disabled.
func NewServer(cfg config.Config, registry *events.Registry, db database.Database) *Server {
	return &Server{
		config:   cfg,
		registry: registry,
		db:       db,
	}
}

// Start runs the HTTP server, blocking.
func (s *Server) Start() {
	r := gin.Default()
	s.setupCORS(r)
	s.setupRoutes(r)
	addr := ":" + s.config.ServerPort
	log.Printf("Starting API server on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("API server failed: %v", err)
	}
}

func (s *Server) setupCORS(r *gin.Engine) {
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})
}

func (s *Server) setupRoutes(r *gin.Engine) {
	// Dashboard static files
	r.StaticFile("/", filepath.Join("dashboard", "index.html"))
	r.Static("/dashboard", "dashboard")

	// Event lifecycle
	r.POST("/start", s.handleStart)
	r.POST("/cancel", s.handleCancel)
	r.GET("/status", s.handleStatus)

	// Operational endpoints
	api := r.Group("/api")
	{
		api.GET("/exports", s.handleListExports)
		api.GET("/system_health", s.handleSystemHealth)
	}
}
