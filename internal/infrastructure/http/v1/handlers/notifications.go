package handlers

import (
	"github.com/gin-gonic/gin"

	"crosslist/internal/core/apperror"
	"crosslist/internal/core/id"
	"crosslist/internal/domain/notification"
	"crosslist/internal/domain/pricelog"
)

// NotificationsHandler exposes the notification feed and price-change log.
type NotificationsHandler struct {
	*BaseHandler
	notifications notification.Repository
	priceLog      pricelog.Repository
}

// NewNotificationsHandler creates the notifications handler.
func NewNotificationsHandler(base *BaseHandler, notifications notification.Repository, priceLog pricelog.Repository) *NotificationsHandler {
	return &NotificationsHandler{
		BaseHandler:   base,
		notifications: notifications,
		priceLog:      priceLog,
	}
}

// RegisterRoutes wires the read endpoints.
func (h *NotificationsHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.ListNotifications)
	rg.GET("/listings/:id/price-log", h.ListPriceLog)
}

// ListNotifications returns recent notifications.
func (h *NotificationsHandler) ListNotifications(c *gin.Context) {
	limit := h.ParseIntQuery(c, "limit", 50)
	items, err := h.notifications.ListRecent(c.Request.Context(), limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, items)
}

// ListPriceLog returns price-change history for a listing, newest first.
func (h *NotificationsHandler) ListPriceLog(c *gin.Context) {
	listingID, err := id.Parse(c.Param("id"))
	if err != nil {
		h.Error(c, apperror.NewValidation("invalid listing id").WithDetail("id", c.Param("id")))
		return
	}

	limit := h.ParseIntQuery(c, "limit", 50)
	items, err := h.priceLog.ListByListing(c.Request.Context(), listingID, limit)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, items)
}
