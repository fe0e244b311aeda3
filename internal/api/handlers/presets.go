package handlers

import (
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"momentum-backtest/internal/api/models"
	"momentum-backtest/internal/config"
	"momentum-backtest/internal/strategy"

	"github.com/gin-gonic/gin"
)

// PresetHandler lists the strategy files of a directory
type PresetHandler struct {
	dir string
}

// NewPresetHandler creates a preset handler over dir (e.g. examples/strategies)
func NewPresetHandler(dir string) *PresetHandler {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	log.Printf("[PresetHandler] using preset directory %s", dir)
	return &PresetHandler{dir: dir}
}

// Dir returns the preset directory path
func (h *PresetHandler) Dir() string {
	return h.dir
}

// ListPresets handles GET /api/v1/presets
func (h *PresetHandler) ListPresets(c *gin.Context) {
	presets := []models.PresetInfo{}

	entries, err := os.ReadDir(h.dir)
	if err != nil {
		log.Printf("[PresetHandler] read %s: %v", h.dir, err)
		c.JSON(http.StatusOK, gin.H{"presets": presets})
		return
	}

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !(strings.HasSuffix(name, ".yaml") || strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(h.dir, name)
		s, err := config.LoadStrategyFile(path)
		if err != nil {
			log.Printf("[PresetHandler] skipping %s: %v", path, err)
			continue
		}
		signal := s.Signal
		if signal == "" {
			signal = s.Name
		}
		presets = append(presets, models.PresetInfo{
			ID:          strings.TrimSuffix(name, filepath.Ext(name)),
			Name:        s.Name,
			Signal:      strategy.Canonical(signal),
			File:        path,
			Instruments: s.Universe(),
		})
	}

	c.JSON(http.StatusOK, gin.H{"presets": presets})
}
