package protocol

import "encoding/json"

const Version = "1.0"

// Message types.
const (
	// client -> server
	TypeHello        = "HELLO"
	TypeQueryHints   = "QUERY_HINTS"
	TypeQueryNames   = "QUERY_NAMES"
	TypeSetPosition  = "SET_POSITION"
	TypeSetDirection = "SET_DIRECTION"
	TypeMoveTo       = "MOVE_TO"

	// server -> client
	TypeWelcome = "WELCOME"
	TypeHints   = "HINTS"
	TypeNames   = "NAMES"
	TypeState   = "STATE"
	TypeError   = "ERROR"
)

// BaseMessage lets us route unknown JSON messages by type.
type BaseMessage struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version,omitempty"`
	ReqID           string `json:"req_id,omitempty"`
}

func DecodeBase(b []byte) (BaseMessage, error) {
	var m BaseMessage
	err := json.Unmarshal(b, &m)
	return m, err
}
