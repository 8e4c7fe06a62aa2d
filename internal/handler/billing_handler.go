package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/middleware"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/response"
)

type ledgerReader interface {
	Balance(ctx context.Context, enrollmentID string) (*dto.EnrollmentBalance, bool, error)
	History(ctx context.Context, enrollmentID string) ([]models.BillingEntry, error)
}

type purchaseRecorder interface {
	RecordPurchase(ctx context.Context, enrollmentID string, req dto.PurchaseRequest, actorID string) (*models.BillingEntry, error)
}

type fundsTransferer interface {
	Transfer(ctx context.Context, req dto.TransferFundsRequest, actorID string) (*dto.TransferResult, error)
}

type statementRenderer interface {
	Render(ctx context.Context, enrollmentID string, format dto.StatementFormat) (*dto.Statement, error)
}

// BillingHandler exposes balances, the ledger, purchases, transfers and statements.
type BillingHandler struct {
	ledger     ledgerReader
	purchases  purchaseRecorder
	transfers  fundsTransferer
	statements statementRenderer
}

// NewBillingHandler constructs BillingHandler.
func NewBillingHandler(ledger ledgerReader, purchases purchaseRecorder, transfers fundsTransferer, statements statementRenderer) *BillingHandler {
	return &BillingHandler{ledger: ledger, purchases: purchases, transfers: transfers, statements: statements}
}

// Balance godoc
// @Summary Enrollment balance
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope{data=dto.EnrollmentBalance}
// @Router /enrollments/{id}/billing/balance [get]
func (h *BillingHandler) Balance(c *gin.Context) {
	balance, hit, err := h.ledger.Balance(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, balance, nil, middleware.ExtractMeta(c))
}

// History godoc
// @Summary Enrollment ledger
// @Tags Billing
// @Produce json
// @Param id path string true "Enrollment ID"
// @Success 200 {object} response.Envelope
// @Router /enrollments/{id}/billing/entries [get]
func (h *BillingHandler) History(c *gin.Context) {
	entries, err := h.ledger.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, nil)
}

// Purchase godoc
// @Summary Record a session purchase
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param payload body dto.PurchaseRequest true "Purchase"
// @Success 201 {object} response.Envelope{data=models.BillingEntry}
// @Router /enrollments/{id}/billing/purchases [post]
func (h *BillingHandler) Purchase(c *gin.Context) {
	var req dto.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	entry, err := h.purchases.RecordPurchase(c.Request.Context(), c.Param("id"), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, entry)
}

// Transfer godoc
// @Summary Transfer prepaid balance between enrollments
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body dto.TransferFundsRequest true "Transfer"
// @Success 200 {object} response.Envelope{data=dto.TransferResult}
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /billing/transfers [post]
func (h *BillingHandler) Transfer(c *gin.Context) {
	var req dto.TransferFundsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	result, err := h.transfers.Transfer(c.Request.Context(), req, actorID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Statement godoc
// @Summary Download billing statement
// @Tags Billing
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Enrollment ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /enrollments/{id}/billing/statement [get]
func (h *BillingHandler) Statement(c *gin.Context) {
	format := dto.StatementFormat(strings.ToLower(c.DefaultQuery("format", string(dto.StatementFormatCSV))))
	statement, err := h.statements.Render(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, statement.Filename, statement.ContentType, statement.Body)
}
