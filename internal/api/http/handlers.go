package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/commandx/backend/internal/infrastructure/logging"
	"github.com/commandx/backend/internal/router"
	"github.com/commandx/backend/internal/shared/types"
	"github.com/commandx/backend/internal/store"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handlers serves the command API over the router, backend-agnostic.
type Handlers struct {
	router *router.Router
	store  *store.Store
	log    *logging.Logger
}

// NewHandlers creates a handler set. store may be nil when snapshot
// persistence is disabled.
func NewHandlers(r *router.Router, s *store.Store, log *logging.Logger) *Handlers {
	return &Handlers{router: r, store: s, log: log}
}

// Health reports service liveness.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "commandx-backend",
	})
}

type execRequest struct {
	Command        string `json:"command" binding:"required"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// Exec runs a shell command on the target.
func (h *Handlers) Exec(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	var req execRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res := h.router.Exec(c.Request.Context(), id, req.Command,
		time.Duration(req.TimeoutSeconds)*time.Second)
	c.JSON(http.StatusOK, gin.H{
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
	})
}

// List returns a directory listing.
func (h *Handlers) List(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	path := c.DefaultQuery("path", "~")

	res := h.router.List(c.Request.Context(), id, path)
	c.JSON(http.StatusOK, gin.H{
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
	})
}

// ReadFile returns the contents of a text file.
func (h *Handlers) ReadFile(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	res := h.router.Read(c.Request.Context(), id, path)
	c.JSON(http.StatusOK, gin.H{
		"success": res.Success,
		"content": res.Content,
		"message": res.Message,
	})
}

type writeRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

// WriteFile stores content at a path.
func (h *Handlers) WriteFile(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	var req writeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opResult(c, h.router.Write(c.Request.Context(), id, req.Path, req.Content))
}

type pathRequest struct {
	Path string `json:"path" binding:"required"`
}

// CreateFile creates an empty file.
func (h *Handlers) CreateFile(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opResult(c, h.router.CreateFile(c.Request.Context(), id, req.Path))
}

// CreateDir creates a directory.
func (h *Handlers) CreateDir(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	var req pathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opResult(c, h.router.CreateDir(c.Request.Context(), id, req.Path))
}

type renameRequest struct {
	OldPath string `json:"old_path" binding:"required"`
	NewPath string `json:"new_path" binding:"required"`
}

// Rename moves a file or directory.
func (h *Handlers) Rename(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	opResult(c, h.router.Rename(c.Request.Context(), id, req.OldPath, req.NewPath))
}

// Delete removes a file or directory tree.
func (h *Handlers) Delete(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	path := c.Query("path")
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "path is required"})
		return
	}

	opResult(c, h.router.Delete(c.Request.Context(), id, path))
}

// Search finds files by name fragment.
func (h *Handlers) Search(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	pattern := c.Query("pattern")
	if pattern == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "pattern is required"})
		return
	}
	path := c.DefaultQuery("path", "~")
	maxResults, _ := strconv.Atoi(c.DefaultQuery("max_results", "100"))

	res := h.router.Search(c.Request.Context(), id, path, pattern, maxResults)
	c.JSON(http.StatusOK, gin.H{
		"success": res.Success,
		"files":   res.Files,
		"count":   res.Count,
		"message": res.Message,
	})
}

// Stats returns a human-readable usage report.
func (h *Handlers) Stats(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	res := h.router.Stats(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"exit_code": res.ExitCode,
		"stdout":    res.Stdout,
		"stderr":    res.Stderr,
	})
}

// DetailedStats returns numeric usage metrics and records a snapshot.
func (h *Handlers) DetailedStats(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	m := h.router.DetailedStats(c.Request.Context(), id)
	if h.store != nil {
		// Fire and forget; a storage failure never fails this request.
		go h.store.Record(id, m)
	}
	c.JSON(http.StatusOK, gin.H{
		"cpu_percent":     m.CPUPercent,
		"memory_percent":  m.MemoryPercent,
		"memory_used_mb":  m.MemoryUsedMB,
		"memory_total_mb": m.MemoryTotalMB,
		"disk_percent":    m.DiskPercent,
		"disk_used_gb":    m.DiskUsedGB,
		"disk_total_gb":   m.DiskTotalGB,
	})
}

// StatsHistory returns recent persisted snapshots, newest first.
func (h *Handlers) StatsHistory(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}
	if h.store == nil {
		c.JSON(http.StatusOK, gin.H{"snapshots": []store.Snapshot{}})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	snaps, err := h.store.Recent(id, limit)
	if err != nil {
		h.log.Error("snapshot query failed", zap.Int64("target_id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load snapshots"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snaps})
}

// TestConnection probes target reachability.
func (h *Handlers) TestConnection(c *gin.Context) {
	id, ok := targetID(c)
	if !ok {
		return
	}

	success, message := h.router.TestConnection(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{"success": success, "message": message})
}

func targetID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid target id"})
		return 0, false
	}
	return id, true
}

func opResult(c *gin.Context, res types.OpResult) {
	c.JSON(http.StatusOK, gin.H{"success": res.Success, "message": res.Message})
}
