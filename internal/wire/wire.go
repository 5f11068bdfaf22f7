// Package wire defines Pond's framed query protocol and the binary log
// datagram codec shared by the ingest path and query responses.
//
// Every protocol message is a datagram: a 6-byte header {id u16, command
// u16, size u16}, big-endian, followed by size payload bytes, carried over
// a stream socket. The id correlates responses with the request that
// produced them.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// RequestCommand is a client-to-server command.
type RequestCommand uint16

const (
	ReqNop RequestCommand = iota
	// ReqQuery begins a new query on this connection.
	ReqQuery
	// ReqCommit finishes query setup and starts the response stream.
	ReqCommit
	// ReqCancel tears down the current query.
	ReqCancel
	// ReqFilterSite restricts the query to one site (payload: site name).
	ReqFilterSite
	// ReqFilterSince bounds the window from below (payload: decimal unix ms).
	ReqFilterSince
	// ReqFilterUntil bounds the window from above (payload: decimal unix ms).
	ReqFilterUntil
	// ReqFilterExpr adds a CEL expression constraint (payload: source).
	ReqFilterExpr
	// ReqFollow keeps the response stream open for live records.
	ReqFollow
)

// ResponseCommand is a server-to-client command.
type ResponseCommand uint16

const (
	RespNop ResponseCommand = iota
	// RespError carries a human-readable failure message and ends the query.
	RespError
	// RespEnd terminates a non-following query's response stream.
	RespEnd
	// RespLogRecord carries one encoded log record datagram.
	RespLogRecord
)

// HeaderSize is the fixed size of the framing header.
const HeaderSize = 6

// MaxPayload is the largest payload expressible in the header.
const MaxPayload = 1<<16 - 1

// ErrPayloadTooLarge is returned when a payload exceeds MaxPayload.
var ErrPayloadTooLarge = errors.New("wire: payload too large")

// WriteFrame writes one framed datagram.
func WriteFrame(w io.Writer, id, command uint16, payload []byte) error {
	if len(payload) > MaxPayload {
		return ErrPayloadTooLarge
	}
	buf := make([]byte, HeaderSize+len(payload))
	binary.BigEndian.PutUint16(buf[0:2], id)
	binary.BigEndian.PutUint16(buf[2:4], command)
	binary.BigEndian.PutUint16(buf[4:6], uint16(len(payload)))
	copy(buf[HeaderSize:], payload)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one framed datagram. io.EOF is returned unwrapped when
// the stream ends cleanly between frames.
func ReadFrame(r io.Reader) (id, command uint16, payload []byte, err error) {
	var hdr [HeaderSize]byte
	if _, err = io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			err = fmt.Errorf("wire: truncated header: %w", err)
		}
		return 0, 0, nil, err
	}
	id = binary.BigEndian.Uint16(hdr[0:2])
	command = binary.BigEndian.Uint16(hdr[2:4])
	size := binary.BigEndian.Uint16(hdr[4:6])
	if size > 0 {
		payload = make([]byte, size)
		if _, err = io.ReadFull(r, payload); err != nil {
			return 0, 0, nil, fmt.Errorf("wire: truncated payload: %w", err)
		}
	}
	return id, command, payload, nil
}
