package models

import "time"

// MondayIndex maps a time.Weekday onto the class schedule convention where Monday is 0 and
// Sunday is 6.
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}
