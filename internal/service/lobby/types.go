package lobby

import "time"

type JoinQueueRequest struct {
	UserID int64
	RoomID int64
}

type CancelQueueRequest struct {
	UserID int64
	RoomID int64
	Reason string
}

type QueueStatus string

const (
	QueueStatusIdle   QueueStatus = "idle"
	QueueStatusQueued QueueStatus = "queued"
	QueueStatusSeated QueueStatus = "seated"
)

type StatusResult struct {
	Status    QueueStatus `json:"status"`
	RoomID    int64       `json:"roomId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
	SeatIndex *int        `json:"seatIndex,omitempty"`
	JoinedAt  *time.Time  `json:"joinedAt,omitempty"`
}

type queueMember struct {
	UserID   int64     `json:"userId"`
	RoomID   int64     `json:"roomId"`
	Nickname string    `json:"nickname"`
	JoinedAt time.Time `json:"joinedAt"`
}

type seatNotifyPayload struct {
	RoomID    int64  `json:"roomId"`
	SessionID string `json:"sessionId"`
	SeatIndex int    `json:"seatIndex"`
}
