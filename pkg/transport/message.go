// Package transport carries lock protocol bodies over a packet connection.
//
// A Link plays the role of the GATT command/status characteristic pair:
// outbound bodies are split into segments with a one-byte header, inbound
// segments are reassembled and handed to a PacketHandler. The in-memory
// Pipe connects two links for tests and the demo without a radio.
package transport

import "github.com/backkem/sesame/pkg/message"

// ReceivedBody is a reassembled inbound body.
type ReceivedBody struct {
	// Parsing is the parsing type from the final segment header.
	Parsing message.ParsingType
	// Data is the body without segment headers. Sealed bodies include the tag.
	Data []byte
}

// PacketHandler is called for each reassembled body.
// Implementations should return quickly; the link's read loop is blocked
// while the handler runs.
type PacketHandler func(body *ReceivedBody)
