package utils

import "encoding/json"

// Custom WebSocket close codes.
// https://www.rfc-editor.org/rfc/rfc6455#section-7.4.2
const (
	CloseCodeInvalidMessage     int = 4001
	CloseCodeUnknownMessageType int = 4002
)

// Message types sent by the client.
const (
	MessageTypeBegin     = "begin"
	MessageTypeNextToken = "next_token"
)

// Message types sent by the server.
const (
	MessageTypeSession     = "session"
	MessageTypeBeginResult = "begin.result"
	MessageTypeToken       = "token"
	MessageTypeEnd         = "end"
)

// Message is the envelope for every text frame exchanged between
// the gateway and its clients.
// ID correlates a response with the request that produced it,
// the server echoes whatever the client sent.
type Message struct {
	Type string `json:"type"`
	ID   string `json:"id,omitempty"`

	// begin
	SystemPrompt string `json:"system_prompt,omitempty"`
	UserPrompt   string `json:"user_prompt,omitempty"`

	// begin.result
	Diagnostic string `json:"diagnostic,omitempty"`

	// token
	Token string `json:"token,omitempty"`

	// session
	SessionID string `json:"session_id,omitempty"`
}

func EncodeMessage(msg *Message) ([]byte, error) {
	return json.Marshal(msg)
}

func DecodeMessage(data []byte) (*Message, error) {
	msg := &Message{}
	err := json.Unmarshal(data, msg)
	if err != nil {
		return nil, err
	}
	return msg, nil
}

func IsKnownClientErrorCode(code int) bool {
	return code == CloseCodeInvalidMessage ||
		code == CloseCodeUnknownMessageType
}

var codeNameMap = map[int]string{
	CloseCodeInvalidMessage:     "CloseCodeInvalidMessage",
	CloseCodeUnknownMessageType: "CloseCodeUnknownMessageType",
}

func CloseCodeName(code int) string {
	name, exists := codeNameMap[code]
	if exists {
		return name
	}
	return "UnknownCode"
}
