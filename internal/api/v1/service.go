package v1

import (
	"net/http"

	"github.com/freelanceflow/freelanceflow/internal/api/dto"
	ierr "github.com/freelanceflow/freelanceflow/internal/errors"
	"github.com/freelanceflow/freelanceflow/internal/logger"
	"github.com/freelanceflow/freelanceflow/internal/service"
	"github.com/freelanceflow/freelanceflow/internal/types"
	"github.com/gin-gonic/gin"
)

// ServiceHandler serves the billable services a freelancer offers
type ServiceHandler struct {
	recurringService service.RecurringService
	logger           *logger.Logger
}

func NewServiceHandler(recurringService service.RecurringService, logger *logger.Logger) *ServiceHandler {
	return &ServiceHandler{
		recurringService: recurringService,
		logger:           logger,
	}
}

// CreateService godoc
// @Summary Create a service
// @Description Create a one-time or recurring service. A recurring service is first due on its start date.
// @Tags Services
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param service body dto.CreateServiceRequest true "Service details"
// @Success 201 {object} dto.ServiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /services [post]
func (h *ServiceHandler) CreateService(c *gin.Context) {
	var req dto.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.recurringService.CreateService(c.Request.Context(), req)
	if err != nil {
		h.logger.Errorw("failed to create service", "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// GetService godoc
// @Summary Get a service
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param id path string true "Service ID"
// @Success 200 {object} dto.ServiceResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /services/{id} [get]
func (h *ServiceHandler) GetService(c *gin.Context) {
	id, ok := requireID(c, "service")
	if !ok {
		return
	}

	resp, err := h.recurringService.GetService(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListServices godoc
// @Summary List services
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param filter query types.ServiceFilter false "Filter"
// @Success 200 {object} dto.ListServicesResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /services [get]
func (h *ServiceHandler) ListServices(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	resp, err := h.recurringService.ListServices(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListRecurringServices godoc
// @Summary List active recurring services
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param filter query types.ServiceFilter false "Filter"
// @Success 200 {object} dto.ListServicesResponse
// @Router /services/recurring [get]
func (h *ServiceHandler) ListRecurringServices(c *gin.Context) {
	filter, ok := h.bindFilter(c)
	if !ok {
		return
	}

	resp, err := h.recurringService.ListRecurringServices(c.Request.Context(), filter)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// ListReadyForBilling godoc
// @Summary List services due for billing
// @Description Services whose next billing date is on or before as_of, earliest first. Nothing is billed.
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param as_of query string false "Reference date, defaults to now"
// @Success 200 {object} dto.ListServicesResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Router /services/ready-for-billing [get]
func (h *ServiceHandler) ListReadyForBilling(c *gin.Context) {
	asOf, err := parseAsOf(c)
	if err != nil {
		c.Error(err)
		return
	}

	services, err := h.recurringService.SelectEligibleServices(c.Request.Context(), asOf)
	if err != nil {
		c.Error(err)
		return
	}

	items := make([]*dto.ServiceResponse, 0, len(services))
	for _, svc := range services {
		item, err := dto.NewServiceResponse(svc)
		if err != nil {
			c.Error(err)
			return
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, types.NewListResponse(items, len(items), len(items), 0))
}

// UpdateService godoc
// @Summary Update a service
// @Tags Services
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Service ID"
// @Param service body dto.UpdateServiceRequest true "Service update"
// @Success 200 {object} dto.ServiceResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /services/{id} [put]
func (h *ServiceHandler) UpdateService(c *gin.Context) {
	id, ok := requireID(c, "service")
	if !ok {
		return
	}

	var req dto.UpdateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid request").Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.recurringService.UpdateService(c.Request.Context(), id, req)
	if err != nil {
		h.logger.Errorw("failed to update service", "service_id", id, "error", err)
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// GetServiceAmounts godoc
// @Summary Get the computed amounts of a service
// @Tags Services
// @Produce json
// @Security BearerAuth
// @Param id path string true "Service ID"
// @Success 200 {object} dto.ServiceAmountsResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /services/{id}/amounts [get]
func (h *ServiceHandler) GetServiceAmounts(c *gin.Context) {
	id, ok := requireID(c, "service")
	if !ok {
		return
	}

	resp, err := h.recurringService.GetServiceAmounts(c.Request.Context(), id)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (h *ServiceHandler) bindFilter(c *gin.Context) (*types.ServiceFilter, bool) {
	var filter types.ServiceFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.Error(ierr.WithError(err).WithHint("invalid query parameters").Mark(ierr.ErrValidation))
		return nil, false
	}
	if filter.QueryFilter == nil {
		filter.QueryFilter = types.NewDefaultQueryFilter()
	}
	if err := filter.Validate(); err != nil {
		c.Error(err)
		return nil, false
	}
	return &filter, true
}
