package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// ErrMalformedFrame marks a frame that could not be parsed. Callers drop such
// frames; they never affect connection state.
var ErrMalformedFrame = errors.New("malformed frame")

type envelope struct {
	Type string `json:"type"`
}

type stateUpdateFrame struct {
	Type           string    `json:"type"`
	CurrentSong    *string   `json:"current_song"`
	IsPlaying      bool      `json:"is_playing"`
	Position       float64   `json:"position"`
	Timestamp      float64   `json:"timestamp"`
	Queue          []TrackID `json:"queue"`
	AvailableSongs []TrackID `json:"available_songs"`
}

type commandFrame struct {
	Type     string   `json:"type"`
	Position *float64 `json:"position,omitempty"`
	Song     *TrackID `json:"song,omitempty"`
}

// DecodeInbound parses one text frame from the authority.
func DecodeInbound(data []byte) (Inbound, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	switch env.Type {
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	case TypeStateUpdate:
		snap, err := decodeStateUpdate(data)
		if err != nil {
			return nil, err
		}
		return StateUpdate{Snapshot: snap}, nil
	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return Unrecognized{Type: env.Type, Raw: raw}, nil
	}
}

func decodeStateUpdate(data []byte) (Snapshot, error) {
	var frame stateUpdateFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Snapshot{}, fmt.Errorf("%w: state_update: %v", ErrMalformedFrame, err)
	}
	if math.IsNaN(frame.Position) || math.IsInf(frame.Position, 0) || frame.Position < 0 {
		return Snapshot{}, fmt.Errorf("%w: state_update: invalid position %v", ErrMalformedFrame, frame.Position)
	}
	if math.IsNaN(frame.Timestamp) || math.IsInf(frame.Timestamp, 0) {
		return Snapshot{}, fmt.Errorf("%w: state_update: invalid timestamp", ErrMalformedFrame)
	}
	snap := Snapshot{
		IsPlaying: frame.IsPlaying,
		Position:  frame.Position,
		Timestamp: frame.Timestamp,
		Queue:     cloneTracks(frame.Queue),
		Catalog:   cloneTracks(frame.AvailableSongs),
	}
	if frame.CurrentSong != nil {
		snap.CurrentTrack = TrackID(*frame.CurrentSong)
	}
	return snap, nil
}

// EncodeStateUpdate renders a snapshot as the authority would broadcast it.
func EncodeStateUpdate(s Snapshot) ([]byte, error) {
	frame := stateUpdateFrame{
		Type:           TypeStateUpdate,
		IsPlaying:      s.IsPlaying,
		Position:       s.Position,
		Timestamp:      s.Timestamp,
		Queue:          nonNil(s.Queue),
		AvailableSongs: nonNil(s.Catalog),
	}
	if s.HasTrack() {
		song := string(s.CurrentTrack)
		frame.CurrentSong = &song
	}
	return json.Marshal(frame)
}

func nonNil(tracks []TrackID) []TrackID {
	if tracks == nil {
		return []TrackID{}
	}
	return tracks
}

// EncodeCommand renders cmd as one outbound frame.
func EncodeCommand(cmd Command) ([]byte, error) {
	frame := commandFrame{}
	switch c := cmd.(type) {
	case Play:
		frame.Position = &c.Position
	case Seek:
		frame.Position = &c.Position
	case PlayTrack:
		frame.Song = &c.Track
	case Enqueue:
		frame.Song = &c.Track
	case Dequeue:
		frame.Song = &c.Track
	case Pause, SkipNext:
	case nil:
		return nil, fmt.Errorf("encode command: nil command")
	default:
		return nil, fmt.Errorf("encode command: unsupported type %T", cmd)
	}
	frame.Type = cmd.Type()
	return json.Marshal(frame)
}

// DecodeCommand parses an outbound frame. It is the authority side of
// EncodeCommand.
func DecodeCommand(data []byte) (Command, error) {
	var frame commandFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	position := func() float64 {
		if frame.Position == nil {
			return 0
		}
		return *frame.Position
	}
	song := func() (TrackID, error) {
		if frame.Song == nil || *frame.Song == "" {
			return "", fmt.Errorf("%w: %s without song", ErrMalformedFrame, frame.Type)
		}
		return *frame.Song, nil
	}

	switch frame.Type {
	case TypePlay:
		return Play{Position: position()}, nil
	case TypePause:
		return Pause{}, nil
	case TypeSeek:
		return Seek{Position: position()}, nil
	case TypeNextSong:
		return SkipNext{}, nil
	case TypePlaySong:
		track, err := song()
		if err != nil {
			return nil, err
		}
		return PlayTrack{Track: track}, nil
	case TypeAddToQueue:
		track, err := song()
		if err != nil {
			return nil, err
		}
		return Enqueue{Track: track}, nil
	case TypeRemoveFromQueue:
		track, err := song()
		if err != nil {
			return nil, err
		}
		return Dequeue{Track: track}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformedFrame)
	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrMalformedFrame, frame.Type)
	}
}
