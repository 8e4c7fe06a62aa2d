package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/response"
)

type discountService interface {
	Create(ctx context.Context, req dto.CreateDiscountRequest) (*models.Discount, error)
	Update(ctx context.Context, id string, req dto.UpdateDiscountRequest) (*models.Discount, error)
	List(ctx context.Context, filter dto.DiscountFilter) ([]models.Discount, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.Discount, error)
	Delete(ctx context.Context, id string) error
}

// DiscountHandler manages discount rules.
type DiscountHandler struct {
	discounts discountService
}

// NewDiscountHandler constructs DiscountHandler.
func NewDiscountHandler(discounts discountService) *DiscountHandler {
	return &DiscountHandler{discounts: discounts}
}

// List godoc
// @Summary List discounts
// @Tags Discounts
// @Produce json
// @Param active query bool false "Only active discounts"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /discounts [get]
func (h *DiscountHandler) List(c *gin.Context) {
	var filter dto.DiscountFilter
	filter.ActiveOnly, _ = strconv.ParseBool(c.Query("active"))
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	items, pagination, err := h.discounts.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get discount
// @Tags Discounts
// @Produce json
// @Param id path string true "Discount ID"
// @Success 200 {object} response.Envelope
// @Router /discounts/{id} [get]
func (h *DiscountHandler) Get(c *gin.Context) {
	discount, err := h.discounts.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Create godoc
// @Summary Create discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param payload body dto.CreateDiscountRequest true "Discount"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discounts [post]
func (h *DiscountHandler) Create(c *gin.Context) {
	var req dto.CreateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	discount, err := h.discounts.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, discount)
}

// Update godoc
// @Summary Update discount
// @Tags Discounts
// @Accept json
// @Produce json
// @Param id path string true "Discount ID"
// @Param payload body dto.CreateDiscountRequest true "Discount"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /discounts/{id} [put]
func (h *DiscountHandler) Update(c *gin.Context) {
	var req dto.UpdateDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	discount, err := h.discounts.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, discount, nil)
}

// Delete godoc
// @Summary Delete discount
// @Tags Discounts
// @Param id path string true "Discount ID"
// @Success 204
// @Router /discounts/{id} [delete]
func (h *DiscountHandler) Delete(c *gin.Context) {
	if err := h.discounts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
