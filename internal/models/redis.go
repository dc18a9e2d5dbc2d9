package models

import "time"

const RedisStreamDeliveryJournal = "scheduler:delivery:journal"

type DeliveryKind string

const (
	DeliveryKindResult       DeliveryKind = "result"
	DeliveryKindNotification DeliveryKind = "notification"
)

// DeliveryRecord is one delivery attempt as written to the journal stream.
type DeliveryRecord struct {
	StreamID       string       `json:"stream_id,omitempty"`
	Kind           DeliveryKind `json:"kind"`
	TaskID         string       `json:"task_id"`
	UserID         string       `json:"user_id"`
	ConversationID string       `json:"conversation_id"`
	Success        bool         `json:"success"`
	StatusCode     int          `json:"status_code,omitempty"`
	Error          string       `json:"error,omitempty"`
	Time           time.Time    `json:"time"`
}
