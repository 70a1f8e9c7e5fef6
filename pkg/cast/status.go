package cast

import "strings"

// PlayerState is the playback state reported by a cast media session.
type PlayerState string

const (
	PlayerStateUnknown   PlayerState = ""
	PlayerStateIdle      PlayerState = "IDLE"
	PlayerStatePlaying   PlayerState = "PLAYING"
	PlayerStatePaused    PlayerState = "PAUSED"
	PlayerStateBuffering PlayerState = "BUFFERING"
)

// ParsePlayerState maps the wire value onto a known state.
func ParsePlayerState(s string) PlayerState {
	switch PlayerState(strings.ToUpper(s)) {
	case PlayerStateIdle:
		return PlayerStateIdle
	case PlayerStatePlaying:
		return PlayerStatePlaying
	case PlayerStatePaused:
		return PlayerStatePaused
	case PlayerStateBuffering:
		return PlayerStateBuffering
	}
	return PlayerStateUnknown
}

func (p PlayerState) String() string {
	if p == PlayerStateUnknown {
		return "UNKNOWN"
	}
	return string(p)
}

// MediaStatus is a snapshot of the media session on the source device.
type MediaStatus struct {
	PlayerState PlayerState
	Title       string
	Artist      string
	Album       string
	ContentType string
	ArtworkURL  string
}

// HasText reports whether the snapshot carries a title or an artist.
func (m MediaStatus) HasText() bool {
	return m.Title != "" || m.Artist != ""
}

// CastStatus is a snapshot of the receiver application running on the device.
type CastStatus struct {
	AppID       string
	SessionID   string
	DisplayName string
	// TransportID addresses the media channel of the running application.
	TransportID string
}

// Active reports whether an application session is running.
func (c CastStatus) Active() bool {
	return c.AppID != "" || c.SessionID != ""
}

// DeviceInfo identifies a cast device found on the network.
type DeviceInfo struct {
	Name  string
	Host  string
	Port  int
	UUID  string
	Model string
}

// State is the connection lifecycle of a bound device.
type State int

const (
	StateDiscovered State = iota
	StateConnecting
	StateReady
	StateLost
)

func (s State) String() string {
	switch s {
	case StateDiscovered:
		return "discovered"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	case StateLost:
		return "lost"
	}
	return "unknown"
}
