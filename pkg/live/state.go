package live

type State int

const (
	StateDisconnected State = iota
	StateConnecting
	StateAuthenticating
	StateSubscriptionPending
	StateStreaming
	StateReconnecting
	StateStopped
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateSubscriptionPending:
		return "subscription_pending"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}
