package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/models"
)

func TestMetricsServiceRecordsBillingActivity(t *testing.T) {
	metrics := NewMetricsService()
	metrics.RecordLedgerEntry(models.BillingEntryConsume)
	metrics.RecordLedgerEntry(models.BillingEntryConsume)
	metrics.RecordStatusTransition(models.ReasonAutoEndOfSessions)
	metrics.ObserveSweep(2*time.Second, 3)
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/enrollments", http.StatusOK, 10*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.ledgerEntries.WithLabelValues(string(models.BillingEntryConsume))))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.statusTransitions.WithLabelValues(models.ReasonAutoEndOfSessions)))
	assert.Equal(t, 3.0, testutil.ToFloat64(metrics.sweepFailures))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ledger_entries_total")
	assert.Contains(t, rec.Body.String(), "enrollment_sweep_duration_seconds")
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	assert.NotPanics(t, func() {
		metrics.RecordLedgerEntry(models.BillingEntryPurchase)
		metrics.RecordStatusTransition(models.ReasonManualCancel)
		metrics.ObserveSweep(time.Second, 0)
		metrics.RecordCacheOperation(true, time.Millisecond)
	})
	assert.Nil(t, metrics.Registry())
}

func TestLedgerCountsEntriesInMetrics(t *testing.T) {
	enrollment := activeEnrollment("enr-1")
	h := newLedgerHarness(t, enrollment)
	metrics := NewMetricsService()
	h.ledger.metrics = metrics
	h.status.metrics = metrics
	h.attendance.set(enrollment.StudentID, enrollment.ClassID, 10)

	h.expectCommit()
	_, err := h.status.AutoUpdateStatus(context.Background(), "enr-1", h.status.Today(), false)
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.statusTransitions.WithLabelValues(models.ReasonAutoEndOfSessions)))
	h.verify()
}
