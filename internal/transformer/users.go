package transformer

import (
	"strings"

	"sparkify/internal/records"
	"sparkify/internal/storage"
)

// UserRows maps every event to a user row in file order. The store keeps the
// last one per user_id.
//
// With skipBlank, events whose userId is empty (logged-out sessions) are
// dropped and counted in skipped.
func UserRows(events []records.ActivityEvent, skipBlank bool) (rows []storage.UserRow, skipped int) {
	rows = make([]storage.UserRow, 0, len(events))
	for _, e := range events {
		id := e.UserID.String()
		if skipBlank && strings.TrimSpace(id) == "" {
			skipped++
			continue
		}
		rows = append(rows, storage.UserRow{
			UserID:    id,
			FirstName: e.FirstName.Ptr(),
			LastName:  e.LastName.Ptr(),
			Gender:    e.Gender.Ptr(),
			Level:     e.Level,
		})
	}
	return rows, skipped
}
