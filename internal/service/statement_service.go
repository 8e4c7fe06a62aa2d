package service

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	"github.com/noah-isme/steam-center-api/pkg/export"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
)

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type statementEnrollmentReader interface {
	FindDetailByID(ctx context.Context, id string) (*models.EnrollmentDetail, error)
}

var statementHeaders = []string{"date", "type", "sessions", "unit_price", "discount", "amount", "note"}

// StatementService renders an enrollment's ledger as a downloadable statement.
type StatementService struct {
	enrollments statementEnrollmentReader
	ledger      *LedgerService
	csv         datasetRenderer
	pdf         datasetRenderer
	logger      *zap.Logger
}

// NewStatementService constructs the statement service.
func NewStatementService(enrollments statementEnrollmentReader, ledger *LedgerService, csv, pdf datasetRenderer, logger *zap.Logger) *StatementService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StatementService{enrollments: enrollments, ledger: ledger, csv: csv, pdf: pdf, logger: logger}
}

// Render builds the statement in the requested format.
func (s *StatementService) Render(ctx context.Context, enrollmentID string, format dto.StatementFormat) (*dto.Statement, error) {
	var (
		renderer    datasetRenderer
		contentType string
	)
	switch format {
	case dto.StatementFormatCSV, "":
		format = dto.StatementFormatCSV
		renderer, contentType = s.csv, "text/csv"
	case dto.StatementFormatPDF:
		renderer, contentType = s.pdf, "application/pdf"
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	detail, err := s.enrollments.FindDetailByID(ctx, enrollmentID)
	if err != nil {
		return nil, mapNotFound(err, "enrollment not found", "failed to load enrollment")
	}
	balance, _, err := s.ledger.Balance(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}
	entries, err := s.ledger.History(ctx, enrollmentID)
	if err != nil {
		return nil, err
	}

	body, err := renderer.Render(statementDataset(detail, balance, entries))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render statement")
	}
	s.logger.Debug("statement rendered", zap.String("enrollment_id", enrollmentID), zap.String("format", string(format)), zap.Int("entries", len(entries)))
	return &dto.Statement{
		Filename:    fmt.Sprintf("statement-%s.%s", enrollmentID, format),
		ContentType: contentType,
		Body:        body,
	}, nil
}

func statementDataset(detail *models.EnrollmentDetail, balance *dto.EnrollmentBalance, entries []models.BillingEntry) export.Dataset {
	summary := []string{
		fmt.Sprintf("Student: %s", fallback(detail.StudentName, detail.StudentID)),
		fmt.Sprintf("Class: %s", fallback(detail.ClassName, detail.ClassID)),
		fmt.Sprintf("Status: %s", balance.Status),
		fmt.Sprintf("Fee per session: %d", balance.FeePerSession),
		fmt.Sprintf("Sessions purchased: %d, consumed: %d, remaining: %d", balance.TotalSessionsPurchased, balance.SessionsConsumed, balance.SessionsRemaining),
		fmt.Sprintf("Remaining amount: %d", balance.RemainingAmount),
	}
	if balance.EndDate != nil {
		summary = append(summary, "Projected end date: "+balance.EndDate.Format(time.DateOnly))
	}

	rows := make([]map[string]string, 0, len(entries))
	for _, entry := range entries {
		rows = append(rows, map[string]string{
			"date":       entry.CreatedAt.Format(time.DateOnly),
			"type":       string(entry.EntryType),
			"sessions":   strconv.FormatInt(entry.Sessions, 10),
			"unit_price": strconv.FormatInt(entry.UnitPrice, 10),
			"discount":   strconv.FormatInt(entry.DiscountAmount, 10),
			"amount":     strconv.FormatInt(entry.Amount, 10),
			"note":       entry.Note,
		})
	}
	return export.Dataset{
		Title:   "Billing statement",
		Summary: summary,
		Headers: statementHeaders,
		Rows:    rows,
	}
}

func fallback(value, alt string) string {
	if value != "" {
		return value
	}
	return alt
}
