// Package validation provides input validation for the honeypot API.
package validation

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
)

// MaxRequestSize is the maximum request body size (64KB)
const MaxRequestSize = 64 << 10

// Message length bounds. Anything outside is rejected upstream of scoring.
const (
	MinMessageLength = 1
	MaxMessageLength = 1000
)

// MaxSessionIDLength bounds session identifiers.
const MaxSessionIDLength = 64

// sessionIDRegex restricts session identifiers to a safe charset.
var sessionIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// suspiciousFragments are injection probes we refuse to engage with.
var suspiciousFragments = []string{
	"<script",
	"javascript:",
	"drop table",
	"select *",
}

// RequestSizeMiddleware limits request body size
func RequestSizeMiddleware(maxSize int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxSize {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, gin.H{
				"status":  "error",
				"message": "request body too large",
			})
			return
		}
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxSize)
		c.Next()
	}
}

// SessionID validates a session identifier.
func SessionID(id string) error {
	if id == "" {
		return fmt.Errorf("sessionId is required")
	}
	if len(id) > MaxSessionIDLength {
		return fmt.Errorf("sessionId exceeds %d characters", MaxSessionIDLength)
	}
	if !sessionIDRegex.MatchString(id) {
		return fmt.Errorf("sessionId must be alphanumeric")
	}
	return nil
}

// MessageText validates inbound message text.
func MessageText(text string) error {
	if len(text) < MinMessageLength || len(text) > MaxMessageLength {
		return fmt.Errorf("message text must be between %d and %d characters",
			MinMessageLength, MaxMessageLength)
	}
	lower := strings.ToLower(text)
	for _, frag := range suspiciousFragments {
		if strings.Contains(lower, frag) {
			return fmt.Errorf("suspicious content detected")
		}
	}
	return nil
}

// SanitizeString trims whitespace, strips null bytes, and limits length.
func SanitizeString(s string, maxLen int) string {
	s = strings.TrimSpace(s)
	if len(s) > maxLen {
		s = s[:maxLen]
	}
	s = strings.ReplaceAll(s, "\x00", "")
	return s
}
