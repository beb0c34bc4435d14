package handler

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/bahiamar/hoa-backend/internal/domain"
	"github.com/bahiamar/hoa-backend/internal/importer"
	"github.com/bahiamar/hoa-backend/internal/middleware"
	"github.com/bahiamar/hoa-backend/internal/port"
	"github.com/bahiamar/hoa-backend/internal/service"
	"github.com/bahiamar/hoa-backend/internal/store"
	"github.com/bahiamar/hoa-backend/internal/websocket"
)

// FileSourceFactory resolves the export file source for a client's import.
type FileSourceFactory func(ctx context.Context, clientID string) (port.FileSource, error)

// AdminHandler serves import, purge and audit endpoints. Imports and purges
// run as background jobs, one per client at a time; progress streams over the
// websocket hub.
type AdminHandler struct {
	store   store.Store
	jobs    *importer.Jobs
	imports *importer.Importer
	purger  *importer.Purger
	audit   *service.AuditService
	files   FileSourceFactory
	hub     *websocket.Hub
}

// NewAdminHandler creates a new AdminHandler
func NewAdminHandler(st store.Store, jobs *importer.Jobs, imports *importer.Importer, purger *importer.Purger, audit *service.AuditService, files FileSourceFactory, hub *websocket.Hub) *AdminHandler {
	return &AdminHandler{
		store:   st,
		jobs:    jobs,
		imports: imports,
		purger:  purger,
		audit:   audit,
		files:   files,
		hub:     hub,
	}
}

// StartImport launches a legacy data import at POST /clients/:clientId/admin/import.
func (h *AdminHandler) StartImport(c echo.Context) error {
	clientID := c.Param("clientId")
	p := middleware.GetPrincipal(c)
	files, err := h.files(c.Request().Context(), clientID)
	if err != nil {
		return Problem(c, err)
	}

	err = h.jobs.Start(clientID, "import", func(ctx context.Context) {
		run, err := h.imports.Run(ctx, clientID, p.UserID, files)
		if err != nil {
			log.Error().Err(err).Str("client_id", clientID).Msg("Import job failed")
			h.hub.Broadcast(clientID, websocket.ImportFailed(run))
			return
		}
		h.hub.Broadcast(clientID, websocket.ImportCompleted(run))
	})
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "started", "kind": "import"})
}

// PurgeRequest configures a purge walk. Without execute it is a dry run.
type PurgeRequest struct {
	Execute bool     `json:"execute"`
	Exclude []string `json:"exclude,omitempty"`
}

// StartPurge launches a client data purge at POST /clients/:clientId/admin/purge.
func (h *AdminHandler) StartPurge(c echo.Context) error {
	var req PurgeRequest
	if err := c.Bind(&req); err != nil {
		return NewValidationError(c, "Invalid request body", nil)
	}
	clientID := c.Param("clientId")
	p := middleware.GetPrincipal(c)
	opts := importer.PurgeOptions{
		Execute:   req.Execute,
		Exclude:   req.Exclude,
		StartedBy: p.UserID,
	}

	err := h.jobs.Start(clientID, "purge", func(ctx context.Context) {
		result, err := h.purger.Purge(ctx, clientID, opts)
		if err != nil {
			log.Error().Err(err).Str("client_id", clientID).Msg("Purge job failed")
			return
		}
		h.hub.Broadcast(clientID, websocket.PurgeCompleted(result))
	})
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusAccepted, map[string]any{"status": "started", "kind": "purge", "dryRun": !req.Execute})
}

// CancelJob cancels the client's running job at DELETE /clients/:clientId/admin/jobs.
func (h *AdminHandler) CancelJob(c echo.Context) error {
	clientID := c.Param("clientId")
	if !h.jobs.Cancel(clientID) {
		return NewNotFoundError(c, "No job is running for this client")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "cancelling"})
}

// JobStatusResponse reports the running flag and recent run metadata.
type JobStatusResponse struct {
	Running bool                `json:"running"`
	Runs    []*domain.ImportRun `json:"runs"`
}

// GetJobs returns job state at GET /clients/:clientId/admin/jobs.
func (h *AdminHandler) GetJobs(c echo.Context) error {
	clientID := c.Param("clientId")
	ctx := c.Request().Context()

	ids, err := h.store.ListDocs(ctx, store.ImportMetaCol(clientID))
	if err != nil {
		return Problem(c, err)
	}
	runs := make([]*domain.ImportRun, 0, len(ids))
	for _, id := range ids {
		doc, err := h.store.Get(ctx, store.ImportMetaPath(clientID, id))
		if err != nil {
			continue
		}
		var run domain.ImportRun
		if err := store.Decode(doc, &run); err != nil {
			continue
		}
		runs = append(runs, &run)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].StartedAt.After(runs[j].StartedAt) })
	if len(runs) > 20 {
		runs = runs[:20]
	}
	return c.JSON(http.StatusOK, JobStatusResponse{
		Running: h.jobs.Running(clientID),
		Runs:    runs,
	})
}

// ListAudit returns recent audit records at GET /clients/:clientId/admin/audit.
func (h *AdminHandler) ListAudit(c echo.Context) error {
	limit := 100
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return NewValidationError(c, "Invalid limit", []ValidationError{
				{Field: "limit", Message: "Must be a positive number"},
			})
		}
		limit = n
	}
	records, err := h.audit.List(c.Request().Context(), c.Param("clientId"), limit)
	if err != nil {
		return Problem(c, err)
	}
	return c.JSON(http.StatusOK, records)
}
