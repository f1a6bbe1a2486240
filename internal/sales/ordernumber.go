package sales

import (
	"fmt"
	"time"
)

// formatOrderNumber renders the human-facing receipt number. The sequence
// resets daily per store; the database unique index on (store_id,
// order_number) is what actually guarantees uniqueness.
func formatOrderNumber(day time.Time, seq int) string {
	return fmt.Sprintf("ORD-%s-%04d", day.Format("20060102"), seq)
}

// dayBounds returns the UTC day window containing t.
func dayBounds(t time.Time) (time.Time, time.Time) {
	utc := t.UTC()
	start := time.Date(utc.Year(), utc.Month(), utc.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
