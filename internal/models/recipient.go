package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// RecipientResponse is a guardian's answer to an interactive broadcast.
// Recorded at most once per recipient.
type RecipientResponse struct {
	SelectedOption string    `json:"selected_option"`
	AnsweredAt     time.Time `json:"answered_at"`
}

// Value implements driver.Valuer so the response persists as JSONB.
func (r RecipientResponse) Value() (driver.Value, error) {
	if r.SelectedOption == "" {
		return nil, nil
	}
	return json.Marshal(r)
}

// Scan implements sql.Scanner.
func (r *RecipientResponse) Scan(src interface{}) error {
	if src == nil {
		*r = RecipientResponse{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, r)
	case string:
		return json.Unmarshal([]byte(v), r)
	default:
		return fmt.Errorf("unsupported response payload type %T", src)
	}
}

// Answered reports whether a response has been recorded.
func (r RecipientResponse) Answered() bool {
	return r.SelectedOption != ""
}

// Recipient is the per-(student, guardian) delivery record of a broadcast.
// Exactly one row exists per pair and communication.
type Recipient struct {
	ID              string            `db:"id" json:"id"`
	CommunicationID string            `db:"communication_id" json:"communication_id"`
	StudentID       string            `db:"student_id" json:"student_id"`
	GuardianID      string            `db:"guardian_id" json:"guardian_id"`
	ReadAt          *time.Time        `db:"read_at" json:"read_at,omitempty"`
	IsArchived      bool              `db:"is_archived" json:"is_archived"`
	Response        RecipientResponse `db:"response" json:"response,omitempty"`
	CreatedAt       time.Time         `db:"created_at" json:"created_at"`
}

// RecipientPair is one (student, guardian) delivery target produced by
// audience expansion.
type RecipientPair struct {
	StudentID  string `db:"student_id" json:"student_id"`
	GuardianID string `db:"guardian_id" json:"guardian_id"`
}

// MarkReadResult reports the outcome of a read-receipt attempt.
type MarkReadResult struct {
	ReadAt         time.Time `json:"read_at"`
	WasAlreadyRead bool      `json:"was_already_read"`
}
