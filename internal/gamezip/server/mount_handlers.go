package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"gamezipserver/internal/gamezip/security"
	pkgerrors "gamezipserver/pkg/errors"
	"gamezipserver/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type mountRequest struct {
	ZipPath string `json:"zipPath"`
}

// handleMount registers an archive under the given id. The source path must
// resolve inside the games directory; symlinks are followed before the check
// so a link pointing outside cannot smuggle a mount in.
func (s *Server) handleMount(c *gin.Context) {
	id := c.Param("id")
	if err := security.ValidateGameID(id); err != nil {
		abortPlain(c, err)
		return
	}

	// No body means fetch from object storage.
	var req mountRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				abortPlain(c, pkgerrors.Wrap(err, pkgerrors.PayloadTooLarge))
				return
			}
			abortPlain(c, pkgerrors.Wrap(err, pkgerrors.InvalidParams))
			return
		}
	}

	zipPath := req.ZipPath
	if zipPath == "" {
		if s.fetcher == nil {
			abortPlain(c, pkgerrors.BadRequest("zipPath is required"))
			return
		}
		fetched, err := s.fetcher.Fetch(c.Request.Context(), id)
		if err != nil {
			abortPlain(c, err)
			return
		}
		zipPath = fetched
	}

	resolved, err := s.resolveInsideGamesDir(zipPath)
	if err != nil {
		abortPlain(c, err)
		return
	}

	if err := s.manager.Mount(id, resolved); err != nil {
		abortPlain(c, err)
		return
	}

	logger.Info(c.Request.Context(), "archive mounted",
		zap.String("id", id),
		zap.String("zipPath", resolved),
	)
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id, "zipPath": resolved})
}

func (s *Server) handleUnmount(c *gin.Context) {
	id := c.Param("id")
	if err := security.ValidateGameID(id); err != nil {
		abortPlain(c, err)
		return
	}

	if !s.manager.Unmount(id) {
		c.JSON(http.StatusNotFound, gin.H{"success": false, "id": id})
		return
	}

	logger.Info(c.Request.Context(), "archive unmounted", zap.String("id", id))
	c.JSON(http.StatusOK, gin.H{"success": true, "id": id})
}

func (s *Server) handleMounts(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"mounts": s.manager.Mounts()})
}

// handleHealth reports liveness only; it touches no other component's state.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   s.cfg.ServiceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// resolveInsideGamesDir resolves path (following symlinks) and verifies it is
// inside the allow-listed games directory.
func (s *Server) resolveInsideGamesDir(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", pkgerrors.Wrap(err, pkgerrors.InvalidParams)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", pkgerrors.Wrapf(err, pkgerrors.ArchiveSourceMissing, "archive %s is not readable", path)
	}
	rel, err := filepath.Rel(s.gamesDir, resolved)
	if err != nil || rel == ".." || len(rel) >= 3 && rel[:3] == ".."+string(filepath.Separator) {
		return "", pkgerrors.Newf(pkgerrors.MountSourceOutsideRoot, "%s is outside the games directory", path)
	}
	return resolved, nil
}
