package domain

import (
	"strconv"
	"time"
)

// EntityID names one simulated agent's conversation.
type EntityID int64

// String returns the decimal form of the id.
func (id EntityID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseEntityID parses a decimal entity id.
func ParseEntityID(s string) (EntityID, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return EntityID(n), nil
}

// Session is the stored conversation state for one entity.
type Session struct {
	EntityID     EntityID  `json:"entityId"`
	Instructions string    `json:"instructions"`
	History      []Message `json:"history"`
	Turns        int       `json:"turns"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	s.History = CloneHistory(s.History)
	return s
}
