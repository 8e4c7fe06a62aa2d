package handler

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/steam-center-api/internal/models"
)

type publisherMock struct {
	events []models.AttendanceStatusChanged
	err    error
}

func (m *publisherMock) Publish(ctx context.Context, event models.AttendanceStatusChanged) error {
	m.events = append(m.events, event)
	return m.err
}

func TestAttendanceEventHandlerPublishes(t *testing.T) {
	pub := &publisherMock{}
	h := NewAttendanceEventHandler(pub, nil)
	fixed := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return fixed }

	body := `{"attendance_id":"att-1","session_id":"ses-1","student_id":"stu-1","class_id":"cls-1","old_status":"A","new_status":"P"}`
	c, w := newTestContext(http.MethodPost, "/attendance-events", body, staffClaims())
	h.Publish(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, pub.events, 1)
	event := pub.events[0]
	assert.Equal(t, "stu-1", event.StudentID)
	require.NotNil(t, event.OldStatus)
	assert.Equal(t, models.AttendanceStatusAbsent, *event.OldStatus)
	assert.Equal(t, models.AttendanceStatusPresent, event.NewStatus)
	assert.Equal(t, fixed, event.OccurredAt)
}

func TestAttendanceEventHandlerRejectsUnknownStatus(t *testing.T) {
	pub := &publisherMock{}
	h := NewAttendanceEventHandler(pub, nil)

	body := `{"attendance_id":"att-1","session_id":"ses-1","student_id":"stu-1","class_id":"cls-1","new_status":"X"}`
	c, w := newTestContext(http.MethodPost, "/attendance-events", body, staffClaims())
	h.Publish(c)

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pub.events)
	assert.Equal(t, "VALIDATION_ERROR", decodeEnvelope(t, w).Error.Code)
}

func TestAttendanceEventHandlerRejectsMissingFields(t *testing.T) {
	pub := &publisherMock{}
	h := NewAttendanceEventHandler(pub, nil)

	c, w := newTestContext(http.MethodPost, "/attendance-events", `{"new_status":"P"}`, staffClaims())
	h.Publish(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, pub.events)
}

func TestAttendanceEventHandlerPublishFailure(t *testing.T) {
	h := NewAttendanceEventHandler(&publisherMock{err: errors.New("listener down")}, nil)

	body := `{"attendance_id":"att-1","session_id":"ses-1","student_id":"stu-1","class_id":"cls-1","new_status":"L"}`
	c, w := newTestContext(http.MethodPost, "/attendance-events", body, staffClaims())
	h.Publish(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
