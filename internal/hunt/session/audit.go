package session

const (
	EventOpen  = "open"
	EventClose = "close"
)

// AuditEntry records one session lifecycle event.
type AuditEntry struct {
	At       string `json:"at"`
	Session  string `json:"session"`
	Event    string `json:"event"`
	Source   string `json:"source"`
	Remote   string `json:"remote,omitempty"`
	Client   string `json:"client,omitempty"`
	Lang     string `json:"lang,omitempty"`
	Messages int    `json:"messages,omitempty"`
	Errors   int    `json:"errors,omitempty"`
	Moves    int    `json:"moves,omitempty"`
	Duration int64  `json:"duration_ms,omitempty"`
}

type Auditor interface {
	WriteAudit(AuditEntry) error
}
