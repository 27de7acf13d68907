package model

// PlayerState is the synchronizer's position in its lifecycle.
type PlayerState int

const (
	PlayerIdle PlayerState = iota
	PlayerLoading
	PlayerPlaying
	PlayerPaused
	PlayerEnded
)

func (s PlayerState) String() string {
	switch s {
	case PlayerIdle:
		return "idle"
	case PlayerLoading:
		return "loading"
	case PlayerPlaying:
		return "playing"
	case PlayerPaused:
		return "paused"
	case PlayerEnded:
		return "ended"
	default:
		return "unknown"
	}
}

// RepeatMode controls what happens when the current track ends.
type RepeatMode int

const (
	RepeatOff RepeatMode = iota
	RepeatOne
	RepeatAll
)

func (m RepeatMode) String() string {
	switch m {
	case RepeatOne:
		return "one"
	case RepeatAll:
		return "all"
	default:
		return "off"
	}
}

// PlaybackSession is pure client state. It is never persisted or synced
// to the gateway; a reload rebuilds it from scratch.
type PlaybackSession struct {
	CurrentTrack *Track      `json:"currentTrack,omitempty"`
	Queue        []Track     `json:"queue,omitempty"`
	State        PlayerState `json:"state"`
	Volume       float64     `json:"volume"`
	Muted        bool        `json:"muted"`
	CurrentTime  float64     `json:"currentTime"`
	Duration     float64     `json:"duration"`
	RepeatMode   RepeatMode  `json:"repeatMode"`
	Shuffle      bool        `json:"shuffle"`
}
