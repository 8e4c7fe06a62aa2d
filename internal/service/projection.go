package service

import (
	"time"

	"github.com/noah-isme/steam-center-api/internal/models"
)

// maxProjectionDays bounds the end-date walk for schedules that never match.
const maxProjectionDays = 5000

// CalculateEndDate returns the date of the sessionsTotal-th meeting counting from start, where the
// class meets on the given weekdays (0=Monday). An empty weekday set means the class meets daily.
// It returns nil when start is missing, sessionsTotal is not positive, or no date is found within
// maxProjectionDays.
func CalculateEndDate(start *time.Time, sessionsTotal int64, weekdays []int) *time.Time {
	if start == nil || sessionsTotal <= 0 {
		return nil
	}

	var meets [7]bool
	daily := len(weekdays) == 0
	for _, d := range weekdays {
		if d >= 0 && d < 7 {
			meets[d] = true
		}
	}

	current := models.DateOf(*start)
	var counted int64
	for scanned := 1; scanned <= maxProjectionDays; scanned++ {
		if daily || meets[models.MondayIndex(current.Weekday())] {
			counted++
			if counted == sessionsTotal {
				end := current
				return &end
			}
		}
		current = current.AddDate(0, 0, 1)
	}
	return nil
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return models.DateOf(*a).Equal(models.DateOf(*b))
}
