package contracts

// Websocket message types on /ws/changes.
const (
	WSTypeChanged      = "changed"
	WSTypePing         = "ping"
	WSTypePong         = "pong"
	WSTypeRepoSwitched = "repo-switched"
	WSTypeClosing      = "closing"
)

// ChangeEvent is pushed to subscribers when the watched tree changed.
type ChangeEvent struct {
	Type string `json:"type"`
	// Changed is always true for change notifications.
	Changed bool   `json:"changed"`
	Path    string `json:"path,omitempty"`
	// Timestamp is epoch milliseconds.
	Timestamp int64 `json:"timestamp"`
}

// WSMessage is a control message from the client.
type WSMessage struct {
	Type string `json:"type"`
}
