package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type discountServiceMock struct {
	lastCreate dto.CreateDiscountRequest
	lastFilter dto.DiscountFilter
	lastUpdate dto.UpdateDiscountRequest
	updatedID  string
	updateErr  error
	deleted    string
	deleteErr  error
}

func (m *discountServiceMock) Create(ctx context.Context, req dto.CreateDiscountRequest) (*models.Discount, error) {
	m.lastCreate = req
	return &models.Discount{ID: "disc-1", Code: req.Code, Percent: req.Percent}, nil
}

func (m *discountServiceMock) Update(ctx context.Context, id string, req dto.UpdateDiscountRequest) (*models.Discount, error) {
	m.updatedID, m.lastUpdate = id, req
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	return &models.Discount{ID: id, Code: req.Code, Percent: req.Percent, Active: active}, nil
}

func (m *discountServiceMock) List(ctx context.Context, filter dto.DiscountFilter) ([]models.Discount, *models.Pagination, error) {
	m.lastFilter = filter
	return []models.Discount{{ID: "disc-1"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (m *discountServiceMock) Get(ctx context.Context, id string) (*models.Discount, error) {
	return &models.Discount{ID: id}, nil
}

func (m *discountServiceMock) Delete(ctx context.Context, id string) error {
	m.deleted = id
	return m.deleteErr
}

func TestDiscountHandlerCreateParsesPercent(t *testing.T) {
	svc := &discountServiceMock{}
	h := NewDiscountHandler(svc)

	c, w := newTestContext(http.MethodPost, "/discounts", `{"code":"promo10","name":"Promo","percent":"10.5"}`, staffClaims())
	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "promo10", svc.lastCreate.Code)
	assert.True(t, decimal.RequireFromString("10.5").Equal(svc.lastCreate.Percent))
}

func TestDiscountHandlerUpdate(t *testing.T) {
	svc := &discountServiceMock{}
	h := NewDiscountHandler(svc)

	c, w := newTestContext(http.MethodPut, "/discounts/disc-1", `{"code":"PROMO10","name":"Promo","percent":"5","active":false,"end_date":"2026-06-30T00:00:00Z"}`, staffClaims())
	c.AddParam("id", "disc-1")
	h.Update(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "disc-1", svc.updatedID)
	require.NotNil(t, svc.lastUpdate.Active)
	assert.False(t, *svc.lastUpdate.Active)
	require.NotNil(t, svc.lastUpdate.EndDate)
	assert.True(t, decimal.NewFromInt(5).Equal(svc.lastUpdate.Percent))
}

func TestDiscountHandlerUpdateErrors(t *testing.T) {
	svc := &discountServiceMock{updateErr: appErrors.Clone(appErrors.ErrConflict, "discount code already exists")}
	h := NewDiscountHandler(svc)

	c, w := newTestContext(http.MethodPut, "/discounts/disc-1", `{"code":"LOYAL","name":"Promo"}`, staffClaims())
	c.AddParam("id", "disc-1")
	h.Update(c)
	assert.Equal(t, http.StatusConflict, w.Code)

	c, w = newTestContext(http.MethodPut, "/discounts/disc-1", `{"code":`, staffClaims())
	c.AddParam("id", "disc-1")
	h.Update(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDiscountHandlerList(t *testing.T) {
	svc := &discountServiceMock{}
	h := NewDiscountHandler(svc)

	c, w := newTestContext(http.MethodGet, "/discounts?active=true&limit=10", "", staffClaims())
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.lastFilter.ActiveOnly)
	assert.Equal(t, 1, svc.lastFilter.Page)
	assert.Equal(t, 10, svc.lastFilter.PageSize)
}

func TestDiscountHandlerDelete(t *testing.T) {
	svc := &discountServiceMock{}
	h := NewDiscountHandler(svc)

	c, w := newTestContext(http.MethodDelete, "/discounts/disc-1", "", staffClaims())
	c.AddParam("id", "disc-1")
	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "disc-1", svc.deleted)
}

func TestDiscountHandlerDeleteNotFound(t *testing.T) {
	h := NewDiscountHandler(&discountServiceMock{deleteErr: appErrors.Clone(appErrors.ErrNotFound, "discount not found")})

	c, w := newTestContext(http.MethodDelete, "/discounts/missing", "", staffClaims())
	c.AddParam("id", "missing")
	h.Delete(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
