package protocol

// TrackID identifies a track in the authority's catalog. The authority uses
// the audio file name. The zero value means no track is selected.
type TrackID string

// Snapshot is a complete authoritative description of playback state at one
// server-observed instant.
type Snapshot struct {
	CurrentTrack TrackID
	IsPlaying    bool
	Position     float64 // seconds
	Timestamp    float64 // unix seconds on the authority's clock when Position was sampled
	Queue        []TrackID
	Catalog      []TrackID
}

// HasTrack reports whether a track is selected.
func (s Snapshot) HasTrack() bool {
	return s.CurrentTrack != ""
}

// Clone returns a copy that shares no slices with s.
func (s Snapshot) Clone() Snapshot {
	dup := s
	dup.Queue = cloneTracks(s.Queue)
	dup.Catalog = cloneTracks(s.Catalog)
	return dup
}

func cloneTracks(tracks []TrackID) []TrackID {
	if len(tracks) == 0 {
		return nil
	}
	dup := make([]TrackID, len(tracks))
	copy(dup, tracks)
	return dup
}

// Inbound is a frame received from the authority. It is a closed set:
// StateUpdate or Unrecognized.
type Inbound interface {
	inbound()
}

// StateUpdate carries a full snapshot.
type StateUpdate struct {
	Snapshot Snapshot
}

// Unrecognized is a well-formed frame whose type this viewer does not know.
type Unrecognized struct {
	Type string
	Raw  []byte
}

func (StateUpdate) inbound()  {}
func (Unrecognized) inbound() {}

// Command is a fire-and-forget request from a viewer to the authority.
type Command interface {
	// Type returns the wire discriminator.
	Type() string
}

// Play resumes playback from Position.
type Play struct {
	Position float64
}

// Pause pauses playback.
type Pause struct{}

// Seek moves the playhead to Position.
type Seek struct {
	Position float64
}

// PlayTrack switches to Track and starts it from the beginning.
type PlayTrack struct {
	Track TrackID
}

// Enqueue appends Track to the queue.
type Enqueue struct {
	Track TrackID
}

// Dequeue removes Track from the queue.
type Dequeue struct {
	Track TrackID
}

// SkipNext advances to the head of the queue.
type SkipNext struct{}

// Wire discriminators.
const (
	TypeStateUpdate     = "state_update"
	TypePlay            = "play"
	TypePause           = "pause"
	TypeNextSong        = "next_song"
	TypePlaySong        = "play_song"
	TypeAddToQueue      = "add_to_queue"
	TypeRemoveFromQueue = "remove_from_queue"
	TypeSeek            = "seek"
)

func (Play) Type() string      { return TypePlay }
func (Pause) Type() string     { return TypePause }
func (Seek) Type() string      { return TypeSeek }
func (PlayTrack) Type() string { return TypePlaySong }
func (Enqueue) Type() string   { return TypeAddToQueue }
func (Dequeue) Type() string   { return TypeRemoveFromQueue }
func (SkipNext) Type() string  { return TypeNextSong }
