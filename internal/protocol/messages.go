package protocol

import "huntforge.ai/internal/hunt/index"

// HELLO (client -> server)
type HelloMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ClientName      string `json:"client_name,omitempty"`
	// Lang is the preferred name language for this connection.
	Lang string `json:"lang,omitempty"`
}

// WELCOME (server -> client)
type WelcomeMsg struct {
	Type            string         `json:"type"`
	ProtocolVersion string         `json:"protocol_version"`
	SessionID       string         `json:"session_id"`
	Lang            string         `json:"lang"`
	Languages       []string       `json:"languages"`
	DefaultLanguage string         `json:"default_language"`
	Catalogs        CatalogDigests `json:"catalogs"`
}

type CatalogDigests struct {
	HintsDigest string `json:"hints_digest"`
	NamesDigest string `json:"names_digest"`
}

// QUERY_HINTS (client -> server). Direction 0..3 is North, East, South, West;
// other values answer an empty hint set.
type QueryHintsMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	X               int32  `json:"x"`
	Y               int32  `json:"y"`
	Direction       int    `json:"direction"`
}

// HINTS (server -> client)
type HintsMsg struct {
	Type            string                              `json:"type"`
	ProtocolVersion string                              `json:"protocol_version"`
	ReqID           string                              `json:"req_id,omitempty"`
	X               int32                               `json:"x"`
	Y               int32                               `json:"y"`
	Direction       int                                 `json:"direction"`
	Hints           map[index.HintID]index.ResolvedHint `json:"hints"`
}

// QUERY_NAMES (client -> server). An empty Lang uses the connection language.
type QueryNamesMsg struct {
	Type            string   `json:"type"`
	ProtocolVersion string   `json:"protocol_version"`
	ReqID           string   `json:"req_id,omitempty"`
	IDs             []uint32 `json:"ids"`
	Lang            string   `json:"lang,omitempty"`
}

// NAMES (server -> client)
type NamesMsg struct {
	Type            string                  `json:"type"`
	ProtocolVersion string                  `json:"protocol_version"`
	ReqID           string                  `json:"req_id,omitempty"`
	Lang            string                  `json:"lang"`
	Names           map[index.HintID]string `json:"names"`
}

// SET_POSITION (client -> server)
type SetPositionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	X               int32  `json:"x"`
	Y               int32  `json:"y"`
}

// SET_DIRECTION (client -> server). A null direction clears it.
type SetDirectionMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Direction       *int   `json:"direction"`
}

// MOVE_TO (client -> server)
type MoveToMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	ID              uint32 `json:"id"`
}

// STATE (server -> client): session state after SET_POSITION, SET_DIRECTION or MOVE_TO.
type StateMsg struct {
	Type            string                              `json:"type"`
	ProtocolVersion string                              `json:"protocol_version"`
	ReqID           string                              `json:"req_id,omitempty"`
	Position        *index.Coord                        `json:"position"`
	Direction       *index.Direction                    `json:"direction"`
	Hints           map[index.HintID]index.ResolvedHint `json:"hints"`
}

// ERROR (server -> client)
type ErrorMsg struct {
	Type            string `json:"type"`
	ProtocolVersion string `json:"protocol_version"`
	ReqID           string `json:"req_id,omitempty"`
	Code            string `json:"code"`
	Message         string `json:"message"`
}

func NewError(reqID, code, message string) ErrorMsg {
	return ErrorMsg{
		Type:            TypeError,
		ProtocolVersion: Version,
		ReqID:           reqID,
		Code:            code,
		Message:         message,
	}
}
