package model

// ConnStatus is the broker session lifecycle as seen by the dashboard.
type ConnStatus int

const (
	ConnIdle ConnStatus = iota
	ConnConnecting
	ConnConnected
	ConnReconnecting
	ConnDisconnected
	ConnError
)

func (s ConnStatus) String() string {
	switch s {
	case ConnIdle:
		return "idle"
	case ConnConnecting:
		return "connecting"
	case ConnConnected:
		return "connected"
	case ConnReconnecting:
		return "reconnecting"
	case ConnDisconnected:
		return "disconnected"
	case ConnError:
		return "error"
	default:
		return "unknown"
	}
}
