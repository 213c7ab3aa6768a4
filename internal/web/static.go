package web

import (
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

var errRouteNotFound = errors.New("route not found")

// handleNoRoute serves files from the static directory and falls back to
// index.html so client-side routes resolve. Unknown API paths get a JSON 404.
func (s *Server) handleNoRoute(c *gin.Context) {
	path := c.Request.URL.Path
	if s.cfg.StaticDir == "" || strings.HasPrefix(path, "/api/") || c.Request.Method != http.MethodGet {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{
			"success": false,
			"error":   apiError{Code: CodeNotFound, Message: errRouteNotFound.Error()},
		})
		return
	}

	// Clean against "/" first so ".." cannot escape the directory
	name := filepath.Join(s.cfg.StaticDir, filepath.FromSlash(filepath.Clean("/"+path)))
	if info, err := os.Stat(name); err == nil && !info.IsDir() {
		c.File(name)
		return
	}
	c.File(filepath.Join(s.cfg.StaticDir, "index.html"))
}
