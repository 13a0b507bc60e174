package protocol

import (
	"encoding/json"
	"fmt"

	"room-chat/internal/models"
)

// EventType identifies a frame on the realtime wire.
type EventType string

const (
	// Client -> server requests, acknowledged with an EventAck frame
	// correlated by envelope id. EventTyping is the exception: it has no ack.
	EventLogin       EventType = "login"
	EventLogout      EventType = "logout"
	EventJoinRoom    EventType = "joinRoom"
	EventLeaveRoom   EventType = "leaveRoom"
	EventSendMessage EventType = "sendMessage"
	EventTyping      EventType = "typing"

	// Server -> client
	EventAck             EventType = "ack"
	EventNewMessage      EventType = "newMessage"
	EventUserJoined      EventType = "userJoined"
	EventUserLeft        EventType = "userLeft"
	EventUserStatus      EventType = "userStatus"
	EventSessionReplaced EventType = "sessionReplaced"
)

// IsValid checks if the EventType is a known wire event.
func (t EventType) IsValid() bool {
	switch t {
	case EventLogin, EventLogout, EventJoinRoom, EventLeaveRoom,
		EventSendMessage, EventTyping, EventAck, EventNewMessage,
		EventUserJoined, EventUserLeft, EventUserStatus, EventSessionReplaced:
		return true
	default:
		return false
	}
}

// Envelope is the frame exchanged over the websocket. ID correlates a
// request with its ack and is empty on pushes.
type Envelope struct {
	ID   string          `json:"id,omitempty"`
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Validate checks the envelope structure.
func (e *Envelope) Validate() error {
	if !e.Type.IsValid() {
		return fmt.Errorf("invalid event type: %q", e.Type)
	}
	return nil
}

/** -------------------- Requests -------------------- */

type LoginRequest struct {
	UserID uint `json:"userId"`
}

type JoinRoomRequest struct {
	UserID uint `json:"userId"`
	RoomID uint `json:"roomId"`
}

type LeaveRoomRequest struct {
	UserID uint `json:"userId"`
	RoomID uint `json:"roomId"`
}

type SendMessageRequest struct {
	Content string `json:"content"`
	UserID  uint   `json:"userId"`
	RoomID  uint   `json:"roomId"`
}

type TypingSignal struct {
	UserID   uint `json:"userId"`
	RoomID   uint `json:"roomId"`
	IsTyping bool `json:"isTyping"`
}

/** -------------------- Replies and pushes -------------------- */

// Ack is the reply body for every acknowledged request.
type Ack struct {
	Success bool            `json:"success"`
	Message string          `json:"message,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// JoinRoomData is the snapshot returned by a successful joinRoom.
type JoinRoomData struct {
	RoomID   uint                     `json:"roomId"`
	Users    []models.UserResponse    `json:"users"`
	Messages []models.MessageResponse `json:"messages"`
}

type UserJoined struct {
	UserID uint                `json:"userId"`
	RoomID uint                `json:"roomId"`
	User   models.UserResponse `json:"user"`
}

type UserLeft struct {
	UserID uint `json:"userId"`
	RoomID uint `json:"roomId"`
}

type UserStatus struct {
	UserID   uint `json:"userId"`
	IsOnline bool `json:"isOnline"`
}

/** -------------------- Constructors -------------------- */

// Marshal encodes an envelope of the given type, panicking never: encoding
// failures surface as an error to the caller.
func Marshal(id string, eventType EventType, data interface{}) ([]byte, error) {
	env := Envelope{ID: id, Type: eventType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", eventType, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// MustMarshal is Marshal for payloads built from known-serializable types.
func MustMarshal(id string, eventType EventType, data interface{}) []byte {
	raw, err := Marshal(id, eventType, data)
	if err != nil {
		panic(err)
	}
	return raw
}

// NewAck builds a successful ack frame for the given request id.
func NewAck(requestID string, data interface{}) ([]byte, error) {
	ack := Ack{Success: true}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal ack payload: %w", err)
		}
		ack.Data = raw
	}
	return Marshal(requestID, EventAck, ack)
}

// NewErrorAck builds a failed ack frame with a human-readable reason.
func NewErrorAck(requestID, reason string) []byte {
	return MustMarshal(requestID, EventAck, Ack{Success: false, Message: reason})
}
