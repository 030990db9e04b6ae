package show

// PlayerStatus is the playback engine's transport status.
type PlayerStatus string

const (
	StatusIdle    PlayerStatus = "idle"
	StatusLoading PlayerStatus = "loading"
	StatusReady   PlayerStatus = "ready"
	StatusPlaying PlayerStatus = "playing"
	StatusPaused  PlayerStatus = "paused"
	StatusError   PlayerStatus = "error"
)

// NoCue is the current cue index when nothing is loaded.
const NoCue = -1

// PlayerState is the engine's authoritative playback state.
type PlayerState struct {
	Status          PlayerStatus `json:"status"`
	CurrentCueIndex int          `json:"currentCueIndex"`
	CurrentTime     float64      `json:"currentTime"`
	Duration        float64      `json:"duration"`
	Error           *string      `json:"error,omitempty"`
}

// IdleState returns the state of a player with nothing loaded.
func IdleState() PlayerState {
	return PlayerState{
		Status:          StatusIdle,
		CurrentCueIndex: NoCue,
	}
}

// MonitorInfo describes a physical display. Index is the engine's monitor number.
type MonitorInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	IsPrimary bool   `json:"isPrimary"`
}

// WindowedMonitor is the monitor index recorded for outputs opened in a window.
const WindowedMonitor = -1
