package v1

import (
	"net/http"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/service"
	"github.com/gin-gonic/gin"
)

type SettingsHandler struct {
	service service.SettingsService
	log     *logger.Logger
}

func NewSettingsHandler(
	service service.SettingsService,
	log *logger.Logger,
) *SettingsHandler {
	return &SettingsHandler{
		service: service,
		log:     log,
	}
}

// GetSettings godoc
// @Summary Get freelancer settings
// @Description Get the invoice settings of the authenticated freelancer, creating the defaults on first access
// @Tags Settings
// @Produce json
// @Security BearerAuth
// @Success 200 {object} dto.SettingsResponse
// @Failure 401 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /settings [get]
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	resp, err := h.service.GetSettings(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// UpdateSettings godoc
// @Summary Update freelancer settings
// @Description Update the invoice prefix, base currency, default tax rate or due days
// @Tags Settings
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param settings body dto.UpdateSettingsRequest true "Settings"
// @Success 200 {object} dto.SettingsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /settings [put]
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	var req dto.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		h.log.Errorw("failed to update settings", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
