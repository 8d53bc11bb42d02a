package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/id"
	"crosslist/internal/reconcile"
)

// RunsHandler exposes reconciliation run control and inspection.
type RunsHandler struct {
	*BaseHandler
	source *reconcile.Service
	price  *reconcile.PriceService
	runs   *reconcile.RunRegistry
}

// NewRunsHandler creates the runs handler.
func NewRunsHandler(base *BaseHandler, source *reconcile.Service, price *reconcile.PriceService, runs *reconcile.RunRegistry) *RunsHandler {
	return &RunsHandler{
		BaseHandler: base,
		source:      source,
		price:       price,
		runs:        runs,
	}
}

// RegisterRoutes wires the run endpoints.
func (h *RunsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	runs := rg.Group("/runs")
	{
		runs.POST("/source-sync", h.StartSourceSync)
		runs.POST("/price-sync", h.StartPriceSync)
		runs.GET("", h.List)
		runs.GET("/:id", h.Get)
	}
}

type sourceSyncRequest struct {
	ProductIDs    []string `json:"productIds"`
	Limit         int      `json:"limit"`
	MaxAgeMinutes int      `json:"maxAgeMinutes"`
}

type priceSyncRequest struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`

	// SyncToMarketplace defaults to the service configuration when omitted.
	SyncToMarketplace *bool `json:"syncToMarketplace"`
}

type runStartedResponse struct {
	RunID string `json:"runId"`
}

// StartSourceSync kicks off a source sync run and returns its ID.
func (h *RunsHandler) StartSourceSync(c *gin.Context) {
	var req sourceSyncRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	opts := reconcile.SourceSyncOptions{
		Limit:  req.Limit,
		MaxAge: time.Duration(req.MaxAgeMinutes) * time.Minute,
	}
	for _, raw := range req.ProductIDs {
		pid, err := id.Parse(raw)
		if err != nil {
			h.Error(c, apperror.NewValidation("invalid product id").WithDetail("id", raw))
			return
		}
		opts.ProductIDs = append(opts.ProductIDs, pid)
	}

	runID := h.source.StartSourceSync(opts)
	h.Accepted(c, runStartedResponse{RunID: runID})
}

// StartPriceSync kicks off a price sync run and returns its ID.
func (h *RunsHandler) StartPriceSync(c *gin.Context) {
	var req priceSyncRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	runID := h.price.StartPriceSync(reconcile.PriceSyncOptions{
		Limit:             req.Limit,
		Force:             req.Force,
		SyncToMarketplace: req.SyncToMarketplace,
	})
	h.Accepted(c, runStartedResponse{RunID: runID})
}

// Get returns one run by ID.
func (h *RunsHandler) Get(c *gin.Context) {
	run, ok := h.runs.Get(c.Param("id"))
	if !ok {
		h.Error(c, apperror.NewNotFound("run", c.Param("id")))
		return
	}
	h.OK(c, run)
}

// List returns recent runs, newest first.
func (h *RunsHandler) List(c *gin.Context) {
	h.OK(c, h.runs.List())
}
