package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-task-scheduler-core/internal/models"
	"golang-task-scheduler-core/internal/repository"
)

type DeliveryHandler struct {
	journal repository.DeliveryJournalRepository
	logger  *logrus.Logger
}

// NewDeliveryHandler accepts a nil journal when Redis is not configured.
func NewDeliveryHandler(journal repository.DeliveryJournalRepository, logger *logrus.Logger) *DeliveryHandler {
	return &DeliveryHandler{
		journal: journal,
		logger:  logger,
	}
}

// RecentDeliveries handles GET /api/v1/deliveries?count=
func (h *DeliveryHandler) RecentDeliveries(c *gin.Context) {
	if h.journal == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Message: "delivery journal is disabled",
			Code:    http.StatusNotFound,
		})
		return
	}

	count, ok := queryInt(c, "count")
	if !ok {
		return
	}
	records, err := h.journal.Recent(c.Request.Context(), int64(count))
	if err != nil {
		h.logger.WithError(err).Error("Failed to read delivery journal")
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Message: "Failed to read delivery journal",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deliveries": records,
		"count":      len(records),
	})
}
