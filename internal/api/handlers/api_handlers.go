package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/db/repository"
	"github.com/matheuscascao/attendance-registry/internal/enrollment"
	"github.com/matheuscascao/attendance-registry/internal/recognition"
	"github.com/matheuscascao/attendance-registry/internal/server/sse"
	"github.com/matheuscascao/attendance-registry/internal/utils"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// APIHandler handles API requests for the attendance system.
type APIHandler struct {
	cfg       *config.Config
	repo      repository.AttendanceRepository
	store     *enrollment.Store
	hub       *sse.Hub
	processor *recognition.Processor
}

// NewAPIHandler creates a new API handler.
func NewAPIHandler(cfg *config.Config, repo repository.AttendanceRepository, store *enrollment.Store, hub *sse.Hub, processor *recognition.Processor) *APIHandler {
	return &APIHandler{
		cfg:       cfg,
		repo:      repo,
		store:     store,
		hub:       hub,
		processor: processor,
	}
}

// RegisterRoutes registers all API routes.
func (h *APIHandler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.handleHealth)

	api := router.Group("/api")
	{
		api.GET("/attendance", h.handleGetAttendance)
		api.GET("/attendance/stats", h.handleGetStatistics)
		api.GET("/identities", h.handleGetIdentities)
		api.GET("/system/stats", h.handleGetSystemStats)
		api.GET("/events", h.handleEvents)
	}
}

func (h *APIHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// handleGetAttendance returns stored attendance records with pagination
// and an optional identity filter.
func (h *APIHandler) handleGetAttendance(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
	if err != nil || limit <= 0 || limit > 500 {
		limit = 50
	}
	offset, err := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if err != nil || offset < 0 {
		offset = 0
	}

	identity := c.Query("identity")

	var (
		records interface{}
		total   int64
	)
	if identity != "" {
		records, total, err = h.repo.GetRecordsByIdentity(identity, limit, offset)
	} else {
		records, total, err = h.repo.GetRecords(limit, offset)
	}
	if err != nil {
		log.WithError(err).Error("Failed to fetch attendance records")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to fetch attendance records"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"records": records,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (h *APIHandler) handleGetStatistics(c *gin.Context) {
	stats, err := h.repo.GetStatistics()
	if err != nil {
		log.WithError(err).Error("Failed to compute attendance statistics")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to compute statistics"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// handleGetIdentities lists the identity codes currently enrolled in
// the reference image directory.
func (h *APIHandler) handleGetIdentities(c *gin.Context) {
	codes, err := h.store.Codes()
	if err != nil {
		log.WithError(err).Error("Failed to list enrolled identities")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list identities"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"identities": codes,
		"count":      len(codes),
	})
}

func (h *APIHandler) handleGetSystemStats(c *gin.Context) {
	running := false
	cooldownSize := 0
	if h.processor != nil {
		running = h.processor.IsRunning()
		cooldownSize = h.processor.CooldownSize()
	}
	c.JSON(http.StatusOK, utils.CollectSystemStats(running, cooldownSize))
}

// handleEvents streams accepted attendance events to the client via SSE.
func (h *APIHandler) handleEvents(c *gin.Context) {
	client := make(sse.Client, 8)
	h.hub.Register(client)
	defer h.hub.Unregister(client)

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	c.Stream(func(w io.Writer) bool {
		select {
		case message, ok := <-client:
			if !ok {
				return false
			}
			c.SSEvent("attendance", string(message))
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
