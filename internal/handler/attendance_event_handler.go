package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/steam-center-api/internal/dto"
	"github.com/noah-isme/steam-center-api/internal/models"
	appErrors "github.com/noah-isme/steam-center-api/pkg/errors"
	"github.com/noah-isme/steam-center-api/pkg/response"
)

type attendancePublisher interface {
	Publish(ctx context.Context, event models.AttendanceStatusChanged) error
}

// AttendanceEventHandler receives attendance changes saved by the web layer.
type AttendanceEventHandler struct {
	publisher attendancePublisher
	validator *validator.Validate
	now       func() time.Time
}

// NewAttendanceEventHandler constructs AttendanceEventHandler.
func NewAttendanceEventHandler(publisher attendancePublisher, validate *validator.Validate) *AttendanceEventHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &AttendanceEventHandler{publisher: publisher, validator: validate, now: time.Now}
}

// Publish godoc
// @Summary Report an attendance status change
// @Description Dispatches the change to billing; consumption is recounted only when the record moves between attended and not attended.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body dto.AttendanceEventRequest true "Attendance change"
// @Success 202 {object} response.Envelope
// @Router /attendance-events [post]
func (h *AttendanceEventHandler) Publish(c *gin.Context) {
	var req dto.AttendanceEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance event"))
		return
	}
	event := req.Event(h.now().UTC())
	if err := h.publisher.Publish(c.Request.Context(), event); err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusAccepted, gin.H{"attendance_id": event.AttendanceID}, nil)
}
