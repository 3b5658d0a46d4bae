package domain

// ConnectionState описывает состояние соединения с сервером уведомлений.
type ConnectionState int32

const (
	Disconnected ConnectionState = iota
	Connecting
	Connected
)

func (s ConnectionState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	default:
		return "disconnected"
	}
}

// MarshalText позволяет отдавать состояние в JSON строкой.
func (s ConnectionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}
