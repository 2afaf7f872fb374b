package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"sjsage522/consoledealworker/config"
	"sjsage522/consoledealworker/logger"

	"github.com/gin-gonic/gin"
)

func (s *Server) getStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.worker.State().Snapshot())
}

func (s *Server) start(c *gin.Context) {
	s.worker.Start()
	c.JSON(http.StatusOK, gin.H{"success": true, "status": s.worker.State().Snapshot().Status})
}

func (s *Server) stop(c *gin.Context) {
	s.worker.Stop()
	c.JSON(http.StatusOK, gin.H{"success": true, "status": s.worker.State().Snapshot().Status})
}

func (s *Server) run(c *gin.Context) {
	s.worker.Trigger()
	c.JSON(http.StatusAccepted, gin.H{"success": true})
}

func (s *Server) getSettings(c *gin.Context) {
	c.JSON(http.StatusOK, s.worker.Settings())
}

// updateSettings merges the posted fields into the current settings
func (s *Server) updateSettings(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	s.settingsMu.Lock()
	defer s.settingsMu.Unlock()

	settings := s.worker.Settings()
	if err := json.Unmarshal(body, &settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid settings: %v", err)})
		return
	}
	if err := validateSettings(settings); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if s.settingsFile != "" {
		if err := config.SaveSettings(s.settingsFile, settings); err != nil {
			logger.ForAPI().Error().Err(err).Msg("Failed to persist settings")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to persist settings"})
			return
		}
	}
	s.worker.UpdateSettings(settings)

	c.JSON(http.StatusOK, gin.H{"success": true, "settings": settings})
}

func validateSettings(s config.Settings) error {
	if s.CheckInterval < 1 {
		return fmt.Errorf("check_interval must be at least 1 minute")
	}
	if s.Distance < 0 {
		return fmt.Errorf("distance must not be negative")
	}
	for name, v := range s.Thresholds {
		if v < 0 {
			return fmt.Errorf("threshold for %q must not be negative", name)
		}
	}
	return nil
}

func (s *Server) getSeen(c *gin.Context) {
	seen := s.seen.Snapshot()
	c.JSON(http.StatusOK, gin.H{"count": len(seen), "listings": seen})
}

func (s *Server) resetSeen(c *gin.Context) {
	if err := s.seen.Reset(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
