package cron

import (
	"net/http"
	"time"

	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/service"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/gin-gonic/gin"
)

// BillingHandler triggers recurring billing on demand
type BillingHandler struct {
	billingRunner service.BillingRunner
	logger        *logger.Logger
}

func NewBillingHandler(billingRunner service.BillingRunner, logger *logger.Logger) *BillingHandler {
	return &BillingHandler{
		billingRunner: billingRunner,
		logger:        logger,
	}
}

// BillServicesRequest optionally pins the date the run bills as of
type BillServicesRequest struct {
	AsOf *time.Time `json:"as_of,omitempty"`
}

// BillServices godoc
// @Summary Bill the services that are due
// @Description Invoices every due service of the authenticated freelancer and advances its billing cycle
// @Tags Cron
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body BillServicesRequest false "Run options"
// @Success 200 {object} dto.BillingRunResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 500 {object} ierr.ErrorResponse
// @Router /cron/services/bill [post]
func (h *BillingHandler) BillServices(c *gin.Context) {
	var req BillServicesRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
			return
		}
	}

	asOf := time.Now().UTC()
	if req.AsOf != nil {
		asOf = req.AsOf.UTC()
	}

	ctx := c.Request.Context()
	h.logger.Infow("billing run requested",
		"freelancer_id", types.GetFreelancerID(ctx),
		"as_of", asOf,
	)

	resp, err := h.billingRunner.RunOnce(ctx, asOf)
	if err != nil {
		h.logger.Errorw("billing run failed", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
