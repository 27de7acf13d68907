package player

import (
	"sync"

	"vasilala/logger"
	"vasilala/model"
)

// restartThreshold is how far into a track a previous-track request
// restarts it instead of moving back.
const restartThreshold = 3.0

// Session is a copy of the synchronizer's observable state.
type Session struct {
	Track       *model.Track
	State       model.PlayerState
	CurrentTime float64
	Duration    float64
	Volume      float64
	Muted       bool
	Err         string
}

// EffectiveMuted reports whether output is silent, either because mute
// is on or because volume is zero. Mute and volume are independent
// inputs; this is the derived display value.
func (s Session) EffectiveMuted() bool {
	return s.Muted || s.Volume == 0
}

// Synchronizer reconciles desired playback state with a media element.
// Commands (play, toggle, seek) come from the UI; progress and
// completion come back as element events. The element is the source of
// truth for time and duration, so the synchronizer never advances the
// clock itself.
//
// Element calls are made outside the lock: an element implementation
// may deliver events synchronously from inside a command.
type Synchronizer struct {
	mu sync.Mutex

	el    MediaElement
	queue *Queue
	prev  PreviousStrategy

	state       model.PlayerState
	track       *model.Track
	currentTime float64
	duration    float64
	volume      float64
	muted       bool
	errMsg      string

	// load generation, bumped on every Load so that events from a
	// superseded source are discarded.
	generation uint64

	onTrackStart func(model.Track)

	listeners    map[int]func(Session)
	nextListener int
}

// NewSynchronizer creates an idle synchronizer at full volume.
func NewSynchronizer(el MediaElement, prev PreviousStrategy) *Synchronizer {
	if prev == nil {
		prev = HistoryStackPrevious{}
	}
	return &Synchronizer{
		el:        el,
		queue:     NewQueue(),
		prev:      prev,
		state:     model.PlayerIdle,
		volume:    1.0,
		listeners: make(map[int]func(Session)),
	}
}

// Queue returns the playback queue for repeat/shuffle configuration.
func (s *Synchronizer) Queue() *Queue {
	return s.queue
}

// SetOnTrackStart registers a hook fired whenever a track starts
// loading, e.g. to register a play count.
func (s *Synchronizer) SetOnTrackStart(fn func(model.Track)) {
	s.mu.Lock()
	s.onTrackStart = fn
	s.mu.Unlock()
}

// Session returns a copy of the observable playback state.
func (s *Synchronizer) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionLocked()
}

func (s *Synchronizer) sessionLocked() Session {
	sess := Session{
		State:       s.state,
		CurrentTime: s.currentTime,
		Duration:    s.duration,
		Volume:      s.volume,
		Muted:       s.muted,
		Err:         s.errMsg,
	}
	if s.track != nil {
		copied := *s.track
		sess.Track = &copied
	}
	return sess
}

// State returns the playback state.
func (s *Synchronizer) State() model.PlayerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Play replaces the queue with the given tracks, positioned at track,
// and starts loading it. A nil or empty queue plays the single track.
func (s *Synchronizer) Play(track model.Track, queue []model.Track) {
	if len(queue) == 0 {
		queue = []model.Track{track}
	}
	start := 0
	for i := range queue {
		if queue[i].ID == track.ID {
			start = i
			break
		}
	}
	s.queue.Set(queue, start)
	s.loadTrack(track)
}

// loadTrack transitions to Loading and hands the source to the element.
func (s *Synchronizer) loadTrack(track model.Track) {
	s.mu.Lock()
	s.track = &track
	s.state = model.PlayerLoading
	s.currentTime = 0
	s.duration = 0
	s.errMsg = ""
	s.generation++
	hook := s.onTrackStart
	s.mu.Unlock()

	s.el.Load(track.AudioURL)
	if hook != nil {
		hook(track)
	}
	s.notify()
}

// TogglePlayback pauses a playing track or resumes a paused one. It is
// a no-op while idle, loading, or ended.
func (s *Synchronizer) TogglePlayback() {
	s.mu.Lock()
	switch s.state {
	case model.PlayerPlaying:
		s.state = model.PlayerPaused
		s.mu.Unlock()
		s.el.Pause()
		s.notify()
	case model.PlayerPaused:
		s.mu.Unlock()
		if err := s.el.Play(); err != nil {
			s.setError(err.Error())
			return
		}
		s.mu.Lock()
		s.state = model.PlayerPlaying
		s.mu.Unlock()
		s.notify()
	default:
		s.mu.Unlock()
	}
}

// Seek moves the playhead, clamped to [0, duration]. Progress is
// observed only through subsequent time updates.
func (s *Synchronizer) Seek(position float64) {
	s.mu.Lock()
	if s.track == nil {
		s.mu.Unlock()
		return
	}
	if position < 0 {
		position = 0
	}
	if s.duration > 0 && position > s.duration {
		position = s.duration
	}
	s.mu.Unlock()
	s.el.Seek(position)
}

// SetVolume sets a clamped volume. Setting zero does not flip the mute
// flag; the two are kept independent.
func (s *Synchronizer) SetVolume(v float64) {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.mu.Lock()
	s.volume = v
	muted := s.muted
	s.mu.Unlock()
	if !muted {
		s.el.SetVolume(v)
	}
	s.notify()
}

// ToggleMute flips the mute flag, preserving the stored volume.
func (s *Synchronizer) ToggleMute() {
	s.mu.Lock()
	s.muted = !s.muted
	muted := s.muted
	volume := s.volume
	s.mu.Unlock()
	if muted {
		s.el.SetVolume(0)
	} else {
		s.el.SetVolume(volume)
	}
	s.notify()
}

// Next advances to the next track per the queue's repeat and shuffle
// policy. An exhausted queue stops playback.
func (s *Synchronizer) Next() {
	if next, ok := s.queue.Next(); ok {
		s.loadTrack(next)
		return
	}
	s.stop()
}

// Previous restarts the current track when more than a few seconds in;
// otherwise it resolves the previous track via the configured strategy.
func (s *Synchronizer) Previous() {
	s.mu.Lock()
	past := s.currentTime > restartThreshold
	hasTrack := s.track != nil
	s.mu.Unlock()

	if past && hasTrack {
		s.el.Seek(0)
		return
	}
	if prev, ok := s.prev.Previous(s.queue); ok {
		s.loadTrack(prev)
	}
}

// stop pauses the element and returns to idle with no current track.
func (s *Synchronizer) stop() {
	s.mu.Lock()
	s.track = nil
	s.state = model.PlayerIdle
	s.currentTime = 0
	s.duration = 0
	s.generation++
	s.mu.Unlock()
	s.el.Pause()
	s.notify()
}

// ElementLoaded reports that the element resolved metadata for the
// current source. A loading synchronizer starts playback; a rejected
// play (autoplay policy) degrades to paused rather than failing.
func (s *Synchronizer) ElementLoaded(duration float64) {
	s.mu.Lock()
	if s.state != model.PlayerLoading {
		s.mu.Unlock()
		return
	}
	s.duration = duration
	gen := s.generation
	s.mu.Unlock()

	err := s.el.Play()

	s.mu.Lock()
	if s.generation != gen {
		// A newer load superseded this one.
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state = model.PlayerPaused
		s.errMsg = err.Error()
		s.mu.Unlock()
		logger.Warn("playback start rejected", logger.ErrorField(err))
		s.notify()
		return
	}
	s.state = model.PlayerPlaying
	s.mu.Unlock()
	s.notify()
}

// ElementTimeUpdate reports playhead progress.
func (s *Synchronizer) ElementTimeUpdate(position float64) {
	s.mu.Lock()
	if s.track == nil {
		s.mu.Unlock()
		return
	}
	s.currentTime = position
	s.mu.Unlock()
	s.notify()
}

// ElementEnded reports that the current source played to completion.
// Repeat-one replays the same track from the start; otherwise the queue
// resolves the next track, and an exhausted queue returns to idle.
func (s *Synchronizer) ElementEnded() {
	s.mu.Lock()
	if s.track == nil {
		s.mu.Unlock()
		return
	}
	s.state = model.PlayerEnded
	current := *s.track
	s.mu.Unlock()
	s.notify()

	if s.queue.RepeatMode() == model.RepeatOne {
		s.loadTrack(current)
		return
	}
	if next, ok := s.queue.Next(); ok {
		s.loadTrack(next)
		return
	}
	s.stop()
}

// ElementError reports an asynchronous element failure. Playback
// degrades to paused when a track is loaded, idle otherwise.
func (s *Synchronizer) ElementError(err error) {
	if err == nil {
		return
	}
	logger.Error("media element error", logger.ErrorField(err))
	s.mu.Lock()
	if s.track != nil {
		s.state = model.PlayerPaused
	} else {
		s.state = model.PlayerIdle
	}
	s.errMsg = err.Error()
	s.mu.Unlock()
	s.notify()
}

func (s *Synchronizer) setError(msg string) {
	s.mu.Lock()
	s.errMsg = msg
	s.mu.Unlock()
	s.notify()
}

// Subscribe registers a session listener.
func (s *Synchronizer) Subscribe(fn func(Session)) func() {
	s.mu.Lock()
	id := s.nextListener
	s.nextListener++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

func (s *Synchronizer) notify() {
	s.mu.Lock()
	sess := s.sessionLocked()
	fns := make([]func(Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(sess)
	}
}
