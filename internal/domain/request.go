package domain

import "github.com/xiaot623/gogo/a2ui/internal/protocol"

// ChatRequest is free text typed by the user.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	UserID    string `json:"user_id,omitempty"`
	Message   string `json:"message"`
	Language  string `json:"language,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// ActionRequest carries the action name of an activated control.
type ActionRequest struct {
	SessionID  string `json:"session_id,omitempty"`
	UserID     string `json:"user_id,omitempty"`
	ActionName string `json:"action_name"`
	Language   string `json:"language,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

// TurnResponse is returned for every chat or action turn.
type TurnResponse struct {
	SessionID     string             `json:"session_id"`
	Seq           uint64             `json:"seq"`
	View          ViewName           `json:"view"`
	Language      string             `json:"language"`
	AssistantText string             `json:"assistant_text"`
	Messages      []protocol.Message `json:"a2ui_messages"`
}

// StateResponse is returned when inspecting a session.
type StateResponse struct {
	SessionID string `json:"session_id"`
	ContextID string `json:"context_id"`
	State     *State `json:"state"`
}

// PushRequest replaces a session's state from the backend side and pushes
// the resulting view to connected clients.
type PushRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Language  string `json:"language,omitempty"`
	State     *State `json:"state"`
}
