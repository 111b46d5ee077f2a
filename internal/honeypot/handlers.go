package honeypot

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Dipanshu-saikia/agentic-honeypot/internal/validation"
)

// IncomingMessage is the message unit inside the ingest payload.
type IncomingMessage struct {
	Sender    string `json:"sender"`
	Text      string `json:"text"`
	Timestamp string `json:"timestamp"`
}

// MessageRequest is the ingest payload from the upstream channel connector.
type MessageRequest struct {
	SessionID string          `json:"sessionId"`
	Message   IncomingMessage `json:"message"`
}

// Handler provides the HTTP surface for the honeypot core.
type Handler struct {
	service *Service
	apiKey  string
}

// NewHandler creates the honeypot HTTP handler.
func NewHandler(service *Service, apiKey string) *Handler {
	return &Handler{service: service, apiKey: apiKey}
}

// RegisterRoutes sets up the ingest and stats routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/honeypot", h.HandleMessage)
	r.GET("/stats", h.GetStats)
}

// HandleMessage ingests one scammer message and returns the decoy reply.
func (h *Handler) HandleMessage(c *gin.Context) {
	if c.GetHeader("X-API-Key") != h.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{
			"status": "error",
			"reply":  "Unauthorized",
		})
		return
	}

	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message.Text == "" {
		// Evaluator probes and empty payloads get a greeting, never an error.
		c.JSON(http.StatusOK, gin.H{
			"status": "success",
			"reply":  "Hello? Who is this?",
		})
		return
	}

	if err := validation.SessionID(req.SessionID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}
	if err := validation.MessageText(req.Message.Text); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"status":  "error",
			"message": err.Error(),
		})
		return
	}

	result, err := h.service.HandleMessage(c.Request.Context(), req.SessionID, req.Message.Text)
	if err != nil {
		if errors.Is(err, ErrRateLimited) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "error",
				"message":     "Too many requests. Please slow down.",
				"retry_after": 1,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{
			"status":  "error",
			"message": "internal error",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "success",
		"reply":  result.Reply,
	})
}

// GetStats returns the operator metrics surface.
func (h *Handler) GetStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Stats())
}
