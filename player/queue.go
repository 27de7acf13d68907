package player

import (
	"math/rand"
	"sync"
	"time"

	"vasilala/model"
)

// historyLimit bounds the previously-played stack.
const historyLimit = 50

// Queue is the ordered list of tracks a playback session traverses,
// together with the repeat and shuffle policy that decides what plays
// next.
//
// Shuffle consumes a pre-computed permutation, regenerated whenever the
// queue changes or wraps, so no track repeats before the others have
// played.
type Queue struct {
	mu      sync.Mutex
	tracks  []model.Track
	pos     int
	repeat  model.RepeatMode
	shuffle bool
	perm    []int
	permPos int
	history []model.Track
	rng     *rand.Rand
}

// NewQueue creates an empty queue.
func NewQueue() *Queue {
	return &Queue{
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Set replaces the queue contents and positions it at startIndex.
func (q *Queue) Set(tracks []model.Track, startIndex int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tracks = make([]model.Track, len(tracks))
	copy(q.tracks, tracks)
	if startIndex < 0 || startIndex >= len(tracks) {
		startIndex = 0
	}
	q.pos = startIndex
	q.history = nil
	if q.shuffle {
		q.regeneratePermLocked(true)
	}
}

// Tracks returns a copy of the queue contents.
func (q *Queue) Tracks() []model.Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]model.Track, len(q.tracks))
	copy(out, q.tracks)
	return out
}

// Len returns the queue length.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.tracks)
}

// Current returns the track at the queue pointer.
func (q *Queue) Current() (model.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.currentLocked()
}

func (q *Queue) currentLocked() (model.Track, bool) {
	if len(q.tracks) == 0 || q.pos < 0 || q.pos >= len(q.tracks) {
		return model.Track{}, false
	}
	return q.tracks[q.pos], true
}

// Position returns the queue pointer.
func (q *Queue) Position() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pos
}

// SetRepeatMode changes the repeat policy.
func (q *Queue) SetRepeatMode(mode model.RepeatMode) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.repeat = mode
}

// RepeatMode returns the repeat policy.
func (q *Queue) RepeatMode() model.RepeatMode {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.repeat
}

// SetShuffle toggles shuffle. Enabling it computes a fresh permutation
// starting at the current track.
func (q *Queue) SetShuffle(on bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.shuffle == on {
		return
	}
	q.shuffle = on
	if on {
		q.regeneratePermLocked(true)
	} else {
		q.perm = nil
	}
}

// Shuffle reports whether shuffle is on.
func (q *Queue) Shuffle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.shuffle
}

// Next resolves the next track. With repeat-one it replays the current
// track and leaves the pointer unchanged. An exhausted queue wraps under
// repeat-all and stops otherwise.
func (q *Queue) Next() (model.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tracks) == 0 {
		return model.Track{}, false
	}

	if q.repeat == model.RepeatOne {
		return q.currentLocked()
	}

	if current, ok := q.currentLocked(); ok {
		q.pushHistoryLocked(current)
	}

	if q.shuffle {
		return q.nextShuffledLocked()
	}

	q.pos++
	if q.pos >= len(q.tracks) {
		if q.repeat == model.RepeatAll {
			q.pos = 0
			return q.currentLocked()
		}
		q.pos = len(q.tracks) - 1
		return model.Track{}, false
	}
	return q.currentLocked()
}

func (q *Queue) nextShuffledLocked() (model.Track, bool) {
	if len(q.perm) != len(q.tracks) {
		q.regeneratePermLocked(true)
	}
	q.permPos++
	if q.permPos >= len(q.perm) {
		if q.repeat != model.RepeatAll {
			q.permPos = len(q.perm) - 1
			return model.Track{}, false
		}
		q.regeneratePermLocked(false)
		q.permPos = 0
	}
	q.pos = q.perm[q.permPos]
	return q.currentLocked()
}

// regeneratePermLocked shuffles the index permutation. With keepCurrent
// the current track is moved to the front so the permutation can be
// consumed from it; otherwise the first slot just avoids an immediate
// repeat of the current track.
func (q *Queue) regeneratePermLocked(keepCurrent bool) {
	n := len(q.tracks)
	q.perm = q.rng.Perm(n)
	q.permPos = 0
	if n <= 1 {
		return
	}
	if keepCurrent {
		for i, idx := range q.perm {
			if idx == q.pos {
				q.perm[0], q.perm[i] = q.perm[i], q.perm[0]
				break
			}
		}
	} else if q.perm[0] == q.pos {
		q.perm[0], q.perm[n-1] = q.perm[n-1], q.perm[0]
	}
}

func (q *Queue) pushHistoryLocked(t model.Track) {
	q.history = append(q.history, t)
	if len(q.history) > historyLimit {
		q.history = q.history[len(q.history)-historyLimit:]
	}
}

// HistoryDepth returns how many previously played tracks are stacked.
func (q *Queue) HistoryDepth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.history)
}

// PreviousStrategy resolves the previous track. The two playback
// surfaces use different policies, kept as explicit named strategies.
type PreviousStrategy interface {
	Name() string
	Previous(q *Queue) (model.Track, bool)
}

// QueuePointerPrevious steps the shared queue pointer backwards. Used by
// the video feed player. At the head of the queue it stays on the
// current track.
type QueuePointerPrevious struct{}

func (QueuePointerPrevious) Name() string { return "queue-pointer" }

func (QueuePointerPrevious) Previous(q *Queue) (model.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.tracks) == 0 {
		return model.Track{}, false
	}
	if q.pos > 0 {
		q.pos--
	}
	return q.currentLocked()
}

// HistoryStackPrevious pops the most recently played track off the
// bounded history stack. Used by the audio player. With an empty history
// it stays on the current track.
type HistoryStackPrevious struct{}

func (HistoryStackPrevious) Name() string { return "history-stack" }

func (HistoryStackPrevious) Previous(q *Queue) (model.Track, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.history) == 0 {
		return q.currentLocked()
	}
	last := q.history[len(q.history)-1]
	q.history = q.history[:len(q.history)-1]
	for i := range q.tracks {
		if q.tracks[i].ID == last.ID {
			q.pos = i
			break
		}
	}
	return last, true
}
