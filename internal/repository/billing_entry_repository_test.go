package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/models"
)

func TestBillingEntryRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBillingEntryRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO billing_entries")).
		WithArgs(sqlmock.AnyArg(), "enr-1", models.BillingEntryConsume, int64(-1), int64(100000), nil, int64(0), int64(-100000), "", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	entry := &models.BillingEntry{EnrollmentID: "enr-1", EntryType: models.BillingEntryConsume, Sessions: -1, UnitPrice: 100000, Amount: -100000}
	require.NoError(t, repo.Create(context.Background(), nil, entry))
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingEntryRepositoryExistsByType(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBillingEntryRepository(db)

	query := regexp.QuoteMeta("SELECT 1 FROM billing_entries WHERE enrollment_id = $1 AND entry_type = $2 LIMIT 1")
	mock.ExpectQuery(query).WithArgs("enr-1", models.BillingEntryPurchase).
		WillReturnRows(sqlmock.NewRows([]string{"one"}).AddRow(1))
	mock.ExpectQuery(query).WithArgs("enr-2", models.BillingEntryPurchase).
		WillReturnError(sql.ErrNoRows)

	exists, err := repo.ExistsByType(context.Background(), nil, "enr-1", models.BillingEntryPurchase)
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByType(context.Background(), nil, "enr-2", models.BillingEntryPurchase)
	require.NoError(t, err)
	assert.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingEntryRepositorySumSessions(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBillingEntryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(sessions), 0) FROM billing_entries WHERE enrollment_id = $1")).
		WithArgs("enr-1").
		WillReturnRows(sqlmock.NewRows([]string{"sum"}).AddRow(-3))

	total, err := repo.SumSessions(context.Background(), nil, "enr-1")
	require.NoError(t, err)
	assert.Equal(t, int64(-3), total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBillingEntryRepositoryListByEnrollment(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewBillingEntryRepository(db)

	rows := sqlmock.NewRows([]string{"id", "enrollment_id", "entry_type", "sessions", "unit_price", "discount_id", "discount_amount", "amount", "note", "created_by", "created_at"}).
		AddRow("be-2", "enr-1", "CONSUME", -1, 100000, nil, 0, -100000, "", nil, time.Now()).
		AddRow("be-1", "enr-1", "PURCHASE", 10, 90000, "disc-1", 100000, 900000, "Auto from enrollment", nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM billing_entries WHERE enrollment_id = $1 ORDER BY created_at DESC, id DESC")).
		WithArgs("enr-1").
		WillReturnRows(rows)

	entries, err := repo.ListByEnrollment(context.Background(), "enr-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NotNil(t, entries[1].DiscountID)
	assert.Equal(t, "disc-1", *entries[1].DiscountID)
	require.NoError(t, mock.ExpectationsWereMet())
}
