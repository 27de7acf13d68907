package player

// MediaElement abstracts the imperative surface of a native audio/video
// element. Implementations drive a real decoder; tests use a fake.
//
// All calls are side-effecting and may fail asynchronously; failures are
// reported back through the synchronizer's Element* event entry points,
// except Play, whose rejection (e.g. an autoplay policy) surfaces
// synchronously.
type MediaElement interface {
	// Load assigns a new source. Metadata resolves asynchronously and is
	// reported via ElementLoaded.
	Load(src string)
	// Play starts or resumes playback. May be rejected.
	Play() error
	// Pause halts playback without clearing the source.
	Pause()
	// Seek moves the playhead. The new position is observed only through
	// subsequent ElementTimeUpdate events.
	Seek(position float64)
	// SetVolume sets the element gain in [0,1].
	SetVolume(v float64)
}
