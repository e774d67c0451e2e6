package protocol

// Frame types from client to server
const (
	TypeHello  = "hello"
	TypeChat   = "chat"
	TypeAction = "action"
)

// Frame types from server to client
const (
	TypeHelloAck = "hello_ack"
	TypeUI       = "a2ui"
	TypeError    = "error"
)

// BaseFrame contains common fields for all WebSocket frames.
type BaseFrame struct {
	Type      string `json:"type"`
	Ts        int64  `json:"ts"`
	RequestID string `json:"request_id,omitempty"`
	SessionID string `json:"session_id,omitempty"`
}

// HelloFrame is sent by the client to bind the connection to a client session.
// An empty session ID asks the server to allocate one.
type HelloFrame struct {
	BaseFrame
	UserID     string            `json:"user_id,omitempty"`
	APIKey     string            `json:"api_key,omitempty"`
	Language   string            `json:"language,omitempty"`
	ClientMeta map[string]string `json:"client_meta,omitempty"`
}

// HelloAckFrame confirms the bound client session.
type HelloAckFrame struct {
	BaseFrame
}

// ChatFrame carries free text typed by the user.
type ChatFrame struct {
	BaseFrame
	Message  string `json:"message"`
	Language string `json:"language,omitempty"`
}

// ActionFrame carries the action name of an activated control.
type ActionFrame struct {
	BaseFrame
	ActionName string `json:"action_name"`
	Language   string `json:"language,omitempty"`
}

// UIFrame delivers one message batch. Seq increases per client session.
type UIFrame struct {
	BaseFrame
	Seq           uint64    `json:"seq"`
	View          string    `json:"view"`
	AssistantText string    `json:"assistant_text,omitempty"`
	Messages      []Message `json:"messages"`
}

// ErrorFrame is sent when a request cannot be served.
type ErrorFrame struct {
	BaseFrame
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error codes
const (
	ErrorCodeInvalidMessage   = "invalid_message"
	ErrorCodeUnauthorized     = "unauthorized"
	ErrorCodeSessionRequired  = "session_required"
	ErrorCodeStoreUnavailable = "store_unavailable"
	ErrorCodeInternalError    = "internal_error"
)
