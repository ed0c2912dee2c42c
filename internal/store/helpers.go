package store

import (
	"database/sql"

	"github.com/friendmatch/FriendQuiz/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// scanParticipantRow scans a ParticipantRecord from a single sql.Row.
func scanParticipantRow(row *sql.Row) (*models.ParticipantRecord, error) {
	var rec models.ParticipantRecord
	var username, firstName sql.NullString
	err := row.Scan(&rec.ID, &rec.ChatID, &username, &firstName, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Username = username.String
	rec.FirstName = firstName.String
	return &rec, nil
}
