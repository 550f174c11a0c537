// Package protocol defines the jam wire contract: the snapshot the authority
// broadcasts and the commands a viewer sends back.
//
// # Frames
//
// Every frame is a UTF-8 JSON object with a "type" discriminator.
//
// Inbound (authority to viewer):
//
//	{"type":"state_update","current_song":"a.mp3"|null,"is_playing":true,
//	 "position":10.0,"timestamp":1700000000.0,"queue":[...],"available_songs":[...]}
//
// Outbound (viewer to authority), one object per command:
//
//	play              {"type":"play","position":12.5}
//	pause             {"type":"pause"}
//	next_song         {"type":"next_song"}
//	play_song         {"type":"play_song","song":"a.mp3"}
//	add_to_queue      {"type":"add_to_queue","song":"a.mp3"}
//	remove_from_queue {"type":"remove_from_queue","song":"a.mp3"}
//	seek              {"type":"seek","position":100.0}
//
// # Variants
//
// Inbound frames decode to a closed set: StateUpdate or Unrecognized. Unknown
// types are not errors; they surface as Unrecognized so callers can count or
// log them. Frames that fail to parse return an error wrapping
// ErrMalformedFrame.
//
// Commands are plain value types implementing Command. They are idempotent at
// the authority, and delivery is at most once.
package protocol
