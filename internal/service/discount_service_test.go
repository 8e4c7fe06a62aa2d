package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

func TestDiscountServiceCreate(t *testing.T) {
	repo := newFakeDiscountRepo()
	svc := NewDiscountService(repo, nil, nil)

	discount, err := svc.Create(context.Background(), dto.CreateDiscountRequest{
		Code:    " early ",
		Name:    "Early bird",
		Percent: decimal.RequireFromString("12.345"),
	})
	require.NoError(t, err)
	assert.Equal(t, "EARLY", discount.Code)
	assert.True(t, discount.Active)
	assert.True(t, decimal.RequireFromString("12.35").Equal(discount.Percent))
	assert.Len(t, repo.items, 1)

	_, err = svc.Create(context.Background(), dto.CreateDiscountRequest{Code: "Early", Name: "Again"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestDiscountServiceCreateValidation(t *testing.T) {
	svc := NewDiscountService(newFakeDiscountRepo(), nil, nil)
	inactive := false

	tests := []struct {
		name string
		req  dto.CreateDiscountRequest
	}{
		{name: "missing name", req: dto.CreateDiscountRequest{Code: "A"}},
		{name: "percent above 100", req: dto.CreateDiscountRequest{Code: "A", Name: "A", Percent: decimal.NewFromInt(120)}},
		{name: "negative percent", req: dto.CreateDiscountRequest{Code: "A", Name: "A", Percent: decimal.NewFromInt(-1)}},
		{name: "negative amount", req: dto.CreateDiscountRequest{Code: "A", Name: "A", Amount: -5}},
		{name: "window reversed", req: dto.CreateDiscountRequest{Code: "A", Name: "A", Active: &inactive, StartDate: dateRef(2026, 3, 2), EndDate: dateRef(2026, 3, 1)}},
		{name: "blank code", req: dto.CreateDiscountRequest{Code: "   ", Name: "A"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tc.req)
			assert.ErrorIs(t, err, appErrors.ErrValidation)
		})
	}
}

func TestDiscountServiceListGetDelete(t *testing.T) {
	repo := newFakeDiscountRepo(
		models.Discount{ID: "d1", Code: "A", Active: true},
		models.Discount{ID: "d2", Code: "B", Active: false},
	)
	svc := NewDiscountService(repo, nil, nil)

	items, pagination, err := svc.List(context.Background(), dto.DiscountFilter{ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "d1", items[0].ID)
	assert.Equal(t, 1, pagination.TotalCount)

	discount, err := svc.Get(context.Background(), "d2")
	require.NoError(t, err)
	assert.Equal(t, "B", discount.Code)

	require.NoError(t, svc.Delete(context.Background(), "d2"))
	_, err = svc.Get(context.Background(), "d2")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(context.Background(), "d2"), appErrors.ErrNotFound)
}

func TestDiscountServiceUpdate(t *testing.T) {
	repo := newFakeDiscountRepo(
		models.Discount{ID: "d1", Code: "EARLY", Name: "Early bird", Percent: decimal.NewFromInt(10), Active: true, UsageCount: 3},
		models.Discount{ID: "d2", Code: "LOYAL", Name: "Loyalty", Active: true},
	)
	svc := NewDiscountService(repo, nil, nil)
	inactive := false
	maxAmount := int64(50000)

	updated, err := svc.Update(context.Background(), "d1", dto.UpdateDiscountRequest{
		Code:      "early",
		Name:      "Early bird 2026",
		Percent:   decimal.RequireFromString("7.505"),
		Amount:    10000,
		MaxAmount: &maxAmount,
		Active:    &inactive,
		StartDate: dateRef(2026, 4, 1),
		EndDate:   dateRef(2026, 6, 30),
	})
	require.NoError(t, err)
	assert.Equal(t, "EARLY", updated.Code, "keeping its own code is not a conflict")
	assert.False(t, updated.Active)
	assert.True(t, decimal.RequireFromString("7.51").Equal(updated.Percent))

	stored := repo.items["d1"]
	assert.False(t, stored.Active)
	assert.Equal(t, int64(10000), stored.Amount)
	assert.Equal(t, *dateRef(2026, 6, 30), *stored.EndDate)
	assert.Equal(t, int64(3), stored.UsageCount)

	kept, err := svc.Update(context.Background(), "d2", dto.UpdateDiscountRequest{Code: "LOYAL", Name: "Loyalty", Percent: decimal.NewFromInt(5)})
	require.NoError(t, err)
	assert.True(t, kept.Active, "omitting active keeps the current flag")
}

func TestDiscountServiceUpdateRejections(t *testing.T) {
	repo := newFakeDiscountRepo(
		models.Discount{ID: "d1", Code: "EARLY", Name: "Early bird", Active: true},
		models.Discount{ID: "d2", Code: "LOYAL", Name: "Loyalty", Active: true},
	)
	svc := NewDiscountService(repo, nil, nil)

	_, err := svc.Update(context.Background(), "d1", dto.UpdateDiscountRequest{Code: "loyal", Name: "Early bird"})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.Update(context.Background(), "d1", dto.UpdateDiscountRequest{Code: "EARLY", Name: "Early bird", Percent: decimal.NewFromInt(101)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), "d1", dto.UpdateDiscountRequest{Code: "EARLY", Name: "Early bird", StartDate: dateRef(2026, 5, 1), EndDate: dateRef(2026, 4, 1)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Update(context.Background(), "missing", dto.UpdateDiscountRequest{Code: "NEW", Name: "New"})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	assert.Equal(t, "EARLY", repo.items["d1"].Code)
	assert.True(t, repo.items["d1"].Active)
}
