package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// ChannelCategory identifies the communication channel a broadcast belongs to.
type ChannelCategory string

const (
	ChannelGeneral     ChannelCategory = "GENERAL"
	ChannelPedagogical ChannelCategory = "PEDAGOGICAL"
	ChannelEvents      ChannelCategory = "EVENTS"
	ChannelBilling     ChannelCategory = "BILLING"
	ChannelUrgent      ChannelCategory = "URGENT"
)

// ChannelStyle carries the display attributes rendered for a channel.
type ChannelStyle struct {
	Color string `json:"color"`
	Icon  string `json:"icon"`
}

var channelStyles = map[ChannelCategory]ChannelStyle{
	ChannelGeneral:     {Color: "#64748b", Icon: "megaphone"},
	ChannelPedagogical: {Color: "#2563eb", Icon: "book-open"},
	ChannelEvents:      {Color: "#16a34a", Icon: "calendar"},
	ChannelBilling:     {Color: "#d97706", Icon: "receipt"},
	ChannelUrgent:      {Color: "#dc2626", Icon: "alert-triangle"},
}

var defaultChannelStyle = ChannelStyle{Color: "#64748b", Icon: "megaphone"}

// Valid reports whether the category is one of the known channels.
func (c ChannelCategory) Valid() bool {
	_, ok := channelStyles[c]
	return ok
}

// Style resolves the display attributes for the channel, falling back to the
// default style for unknown categories.
func (c ChannelCategory) Style() ChannelStyle {
	if style, ok := channelStyles[c]; ok {
		return style
	}
	return defaultChannelStyle
}

// ValidateChannelStyles ensures every declared category maps to a complete
// style. Called once at startup so a missing entry fails configuration, not a
// render.
func ValidateChannelStyles() error {
	for category, style := range channelStyles {
		if style.Color == "" || style.Icon == "" {
			return fmt.Errorf("channel %s has incomplete style", category)
		}
	}
	return nil
}

// CommunicationPriority orders broadcasts in the inbox.
type CommunicationPriority string

const (
	CommunicationPriorityNormal CommunicationPriority = "NORMAL"
	CommunicationPriorityHigh   CommunicationPriority = "HIGH"
)

// TargetScope selects how a broadcast audience is expanded.
type TargetScope string

const (
	TargetScopeSchool  TargetScope = "SCHOOL"
	TargetScopeClass   TargetScope = "CLASS"
	TargetScopeStudent TargetScope = "STUDENT"
)

// InteractiveKind distinguishes the structured payload types a broadcast may carry.
type InteractiveKind string

const (
	InteractiveRSVP InteractiveKind = "rsvp"
	InteractivePoll InteractiveKind = "poll"
)

// Interactive is the optional structured payload of a broadcast. A zero Kind
// means the broadcast carries none.
type Interactive struct {
	Kind    InteractiveKind `json:"kind"`
	Options []string        `json:"options"`
}

// Value implements driver.Valuer so the payload persists as JSONB.
func (i Interactive) Value() (driver.Value, error) {
	if i.Kind == "" {
		return nil, nil
	}
	return json.Marshal(i)
}

// Scan implements sql.Scanner.
func (i *Interactive) Scan(src interface{}) error {
	if src == nil {
		*i = Interactive{}
		return nil
	}
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, i)
	case string:
		return json.Unmarshal([]byte(v), i)
	default:
		return fmt.Errorf("unsupported interactive payload type %T", src)
	}
}

// HasOption reports whether the payload declares the given option.
func (i Interactive) HasOption(option string) bool {
	for _, o := range i.Options {
		if o == option {
			return true
		}
	}
	return false
}

// Communication represents a persisted broadcast row. Immutable after
// creation except for target metadata backfill.
type Communication struct {
	ID             string                `db:"id" json:"id"`
	Channel        ChannelCategory       `db:"channel" json:"channel"`
	ChannelStyle   ChannelStyle          `db:"-" json:"channel_style"`
	Title          string                `db:"title" json:"title"`
	Body           string                `db:"body" json:"body"`
	Priority       CommunicationPriority `db:"priority" json:"priority"`
	Interactive    Interactive           `db:"interactive" json:"interactive,omitempty"`
	TargetScope    TargetScope           `db:"target_scope" json:"target_scope"`
	TargetIDs      pq.StringArray        `db:"target_ids" json:"target_ids"`
	RecipientCount int                   `db:"recipient_count" json:"recipient_count"`
	CreatedBy      string                `db:"created_by" json:"created_by"`
	CreatedAt      time.Time             `db:"created_at" json:"created_at"`
}

// CommunicationFilter narrows broadcast listings.
type CommunicationFilter struct {
	Channel  ChannelCategory
	Priority CommunicationPriority
	Search   string
	Page     int
	PageSize int
}

// CommunicationMetrics is one row of the dashboard aggregation RPC.
type CommunicationMetrics struct {
	CommunicationID string  `db:"communication_id" json:"communication_id"`
	Title           string  `db:"title" json:"title"`
	Recipients      int     `db:"recipients" json:"recipients"`
	ReadCount       int     `db:"read_count" json:"read_count"`
	ReadRatio       float64 `db:"read_ratio" json:"read_ratio"`
	ReplyThreads    int     `db:"reply_threads" json:"reply_threads"`
	PendingThreads  int     `db:"pending_threads" json:"pending_threads"`
}
