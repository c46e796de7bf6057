package models

import "time"

// GuardianNamePlaceholder is what the profile join yields when a guardian has
// no completed profile. The reconciler treats it as unresolved and attempts a
// secondary lookup through the linked student.
const GuardianNamePlaceholder = "Responsável"

// Reply is one chat message inside a broadcast's reply thread. The thread key
// is (communication_id, guardian_id): staff replies carry the guardian id of
// the thread they answer, not of their author.
type Reply struct {
	ID              string    `db:"id" json:"id"`
	CommunicationID string    `db:"communication_id" json:"communication_id"`
	GuardianID      string    `db:"guardian_id" json:"guardian_id"`
	Content         string    `db:"content" json:"content"`
	IsAdminReply    bool      `db:"is_admin_reply" json:"is_admin_reply"`
	AuthorName      string    `db:"author_name" json:"author_name"`
	AttachmentPath  *string   `db:"attachment_path" json:"attachment_path,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Conversation is the in-memory derived view of one reply thread plus display
// metadata. Never persisted; rebuilt or incrementally merged on every event.
type Conversation struct {
	GuardianID    string    `json:"guardian_id"`
	GuardianName  string    `json:"guardian_name"`
	Messages      []Reply   `json:"messages"`
	LastMessageAt time.Time `json:"last_message_at"`
	UnreadCount   int       `json:"unread_count"`
	NeedsReply    bool      `json:"needs_reply"`
}

// LastMessage returns the most recent reply or nil for an empty thread.
func (c *Conversation) LastMessage() *Reply {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// HasMessage reports whether the given reply id is already part of the thread.
func (c *Conversation) HasMessage(id string) bool {
	for i := range c.Messages {
		if c.Messages[i].ID == id {
			return true
		}
	}
	return false
}
