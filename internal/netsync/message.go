package netsync

import (
	"encoding/json"
	"fmt"
	"time"

	"dsrec/internal/capture"
)

// Control is the ctrl field of a message.
type Control string

const (
	ControlUpdate Control = "update"
	ControlRecord Control = "record"
	ControlStop   Control = "stop"
	ControlCancel Control = "cancel"
)

// Valid reports whether c is a known control verb.
func (c Control) Valid() bool {
	switch c {
	case ControlUpdate, ControlRecord, ControlStop, ControlCancel:
		return true
	}
	return false
}

// Message is one session-control datagram.
type Message struct {
	Time     float64 `json:"t"`
	Ctrl     Control `json:"ctrl"`
	ActionID int     `json:"aid"`
	PersonID int     `json:"pid"`
	ShotID   int     `json:"sid"`
}

// NewMessage stamps ctrl and id with the given wall clock time.
func NewMessage(ctrl Control, id capture.Identity, now time.Time) Message {
	return Message{
		Time:     float64(now.UnixNano()) / float64(time.Second),
		Ctrl:     ctrl,
		ActionID: id.ActionID,
		PersonID: id.PersonID,
		ShotID:   id.ShotID,
	}
}

// Identity returns the ids carried by m.
func (m Message) Identity() capture.Identity {
	return capture.Identity{ActionID: m.ActionID, PersonID: m.PersonID, ShotID: m.ShotID}
}

// SentAt converts the t field back to a time.
func (m Message) SentAt() time.Time {
	sec := int64(m.Time)
	nsec := int64((m.Time - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec)
}

// MalformedMessageError reports a datagram that is not valid JSON or carries
// a missing or unknown ctrl. Receivers skip these.
type MalformedMessageError struct {
	Payload []byte
	Reason  string
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed sync message (%s): %q", e.Reason, truncate(e.Payload, 64))
}

// Decode parses a datagram. Missing ids decode as 0.
func Decode(data []byte) (Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, &MalformedMessageError{Payload: data, Reason: err.Error()}
	}
	if msg.Ctrl == "" {
		return Message{}, &MalformedMessageError{Payload: data, Reason: "missing ctrl"}
	}
	if !msg.Ctrl.Valid() {
		return Message{}, &MalformedMessageError{Payload: data, Reason: "unknown ctrl " + string(msg.Ctrl)}
	}
	return msg, nil
}

func truncate(data []byte, limit int) []byte {
	if len(data) <= limit {
		return data
	}
	return data[:limit]
}
