package models

// Feed table identifiers as published on the changefeed channels.
const (
	FeedTableReplies        = "communication_replies"
	FeedTableCommunications = "communications"
	FeedTableRecipients     = "communication_recipients"
)

// Feed operations.
const (
	FeedOpInsert = "INSERT"
	FeedOpUpdate = "UPDATE"
)

// FeedRow is the partial row carried by a change event. The router refetches
// the fully-joined row before dispatching.
type FeedRow struct {
	ID              string `json:"id"`
	CommunicationID string `json:"communication_id"`
	GuardianID      string `json:"guardian_id,omitempty"`
}

// FeedEvent is one changefeed message.
type FeedEvent struct {
	Table     string  `json:"table"`
	Operation string  `json:"operation"`
	Row       FeedRow `json:"row"`
}

// ThreadEventType classifies events forwarded to stream subscribers.
type ThreadEventType string

const (
	ThreadEventReply         ThreadEventType = "reply"
	ThreadEventCommunication ThreadEventType = "communication"
	ThreadEventRecipient     ThreadEventType = "recipient"
)

// ThreadEvent is what a connected viewer receives for one communication.
type ThreadEvent struct {
	Type            ThreadEventType `json:"type"`
	CommunicationID string          `json:"communication_id"`
	Reply           *Reply          `json:"reply,omitempty"`
	PendingThreads  int             `json:"pending_threads"`
}
