package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campusops/enrollment-api/internal/service"
	"github.com/campusops/enrollment-api/pkg/response"
)

// OfferingHandler exposes the capacity endpoints of course offerings.
type OfferingHandler struct {
	capacity *service.CapacityService
}

// NewOfferingHandler constructs OfferingHandler.
func NewOfferingHandler(capacity *service.CapacityService) *OfferingHandler {
	return &OfferingHandler{capacity: capacity}
}

// Occupancy godoc
// @Summary Get seat occupancy for an offering
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/occupancy [get]
func (h *OfferingHandler) Occupancy(c *gin.Context) {
	occupancy, err := h.capacity.Occupancy(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occupancy, nil)
}

// Reconcile godoc
// @Summary Rebuild the seat counter from confirmed enrollments
// @Tags Offerings
// @Produce json
// @Param id path string true "Offering ID"
// @Success 200 {object} response.Envelope
// @Router /offerings/{id}/reconcile [post]
func (h *OfferingHandler) Reconcile(c *gin.Context) {
	seats, err := h.capacity.Reconcile(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"occupied_seats": seats}, nil)
}
