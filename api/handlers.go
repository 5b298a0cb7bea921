package api

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"protevent/events"
	"protevent/monitoring"
)

// startRequest is the body of POST /start. Minutes are pointers so omitted
// fields fall back to the configured defaults while zero stays meaningful
// (future_minutes = 0 exports immediately).
type startRequest struct {
	Identifier    string   `json:"identifier"`
	PastMinutes   *int     `json:"past_minutes"`
	FutureMinutes *int     `json:"future_minutes"`
	Cameras       []string `json:"cameras"`
}

type cancelRequest struct {
	Identifier string `json:"identifier" binding:"required"`
}

func (s *Server) handleStart(c *gin.Context) {
	var req startRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	past := s.config.DefaultPastMinutes
	if req.PastMinutes != nil {
		past = *req.PastMinutes
	}
	future := s.config.DefaultFutureMinutes
	if req.FutureMinutes != nil {
		future = *req.FutureMinutes
	}

	ev, created, err := s.registry.StartOrExtend(req.Identifier, past, future, req.Cameras)
	if err != nil {
		log.Printf("Error starting event: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	message := "Event " + ev.Identifier + " extended"
	if created {
		message = "New event " + ev.Identifier + " started"
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"events": gin.H{
			ev.Identifier: ev.View(s.registry.Now()),
		},
	})
}

func (s *Server) handleCancel(c *gin.Context) {
	var req cancelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing event identifier"})
		return
	}

	if !s.registry.Cancel(req.Identifier) {
		c.JSON(http.StatusNotFound, gin.H{"status": "not_found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cancelled"})
}

func (s *Server) handleStatus(c *gin.Context) {
	now := s.registry.Now()
	identifier := c.Query("identifier")

	if identifier != "" {
		ev, ok := s.registry.Get(identifier)
		if !ok {
			c.JSON(http.StatusOK, gin.H{
				"events": gin.H{identifier: gin.H{"status": "no_event"}},
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"events": gin.H{identifier: ev.View(now)},
		})
		return
	}

	views := make(map[string]events.StatusView)
	for id, ev := range s.registry.Snapshot() {
		views[id] = ev.View(now)
	}
	c.JSON(http.StatusOK, gin.H{"events": views})
}

func (s *Server) handleListExports(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "export history disabled"})
		return
	}

	if identifier := c.Query("identifier"); identifier != "" {
		records, err := s.db.GetExportsByIdentifier(identifier)
		if err != nil {
			log.Printf("Error listing exports for %s: %v", identifier, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"exports": records})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	records, err := s.db.ListExports(limit, offset)
	if err != nil {
		log.Printf("Error listing exports: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"exports": records})
}

func (s *Server) handleSystemHealth(c *gin.Context) {
	usage, err := monitoring.Snapshot(s.config.DownloadsPath)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"resources":     usage,
		"active_events": len(s.registry.Snapshot()),
	})
}
