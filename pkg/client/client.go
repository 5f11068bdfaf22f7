// Package client is a Go client for Pond's query protocol. It speaks the
// framed TCP protocol on the query port and the binary datagram format on
// the ingest port.
package client

import (
	"io"
	"net"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/rzbill/pond/internal/wire"
)

// Options configures Dial.
type Options struct {
	// DialTimeout bounds connection establishment. Zero means no timeout.
	DialTimeout time.Duration
}

// Client is one query protocol connection. It is not safe for concurrent
// use; a connection carries at most one streaming query at a time.
type Client struct {
	nc     net.Conn
	nextID uint16
	stream *Stream
}

// Dial connects to a Pond query server.
func Dial(addr string, opts Options) (*Client, error) {
	d := net.Dialer{Timeout: opts.DialTimeout}
	nc, err := d.Dial("tcp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "dial %s", addr)
	}
	return &Client{nc: nc}, nil
}

// Close closes the connection. Any active stream becomes unusable.
func (c *Client) Close() error {
	return c.nc.Close()
}

// Record is one log record as returned by a query.
type Record struct {
	TimestampMs int64
	Site        string
	Message     string
	// Raw is the record's wire encoding, unchanged from ingest.
	Raw []byte
}

// Query describes one query. Zero time bounds mean unbounded.
type Query struct {
	// Site restricts results to one site.
	Site string
	// SinceMs / UntilMs bound the time window in unix milliseconds.
	SinceMs int64
	UntilMs int64
	// Expr is an optional CEL expression evaluated per record.
	Expr string
	// Follow keeps the stream open and delivers future records live.
	Follow bool
}

// Run commits the query and returns its response stream. Only one stream
// may be active per connection.
func (c *Client) Run(q Query) (*Stream, error) {
	if c.stream != nil && !c.stream.done {
		return nil, pkgerrors.New("client: a query is already streaming")
	}

	c.nextID++
	id := c.nextID

	type req struct {
		cmd     wire.RequestCommand
		payload []byte
	}
	reqs := []req{{cmd: wire.ReqQuery}}
	if q.Site != "" {
		reqs = append(reqs, req{wire.ReqFilterSite, []byte(q.Site)})
	}
	if q.SinceMs != 0 {
		reqs = append(reqs, req{wire.ReqFilterSince, []byte(formatMs(q.SinceMs))})
	}
	if q.UntilMs != 0 {
		reqs = append(reqs, req{wire.ReqFilterUntil, []byte(formatMs(q.UntilMs))})
	}
	if q.Expr != "" {
		reqs = append(reqs, req{wire.ReqFilterExpr, []byte(q.Expr)})
	}
	if q.Follow {
		reqs = append(reqs, req{cmd: wire.ReqFollow})
	}
	reqs = append(reqs, req{cmd: wire.ReqCommit})

	for _, r := range reqs {
		if err := wire.WriteFrame(c.nc, id, uint16(r.cmd), r.payload); err != nil {
			return nil, pkgerrors.Wrap(err, "send query")
		}
	}

	c.stream = &Stream{c: c, id: id, follow: q.Follow}
	return c.stream, nil
}

// Stream is the response side of a committed query.
type Stream struct {
	c      *Client
	id     uint16
	follow bool
	done   bool
}

// Next returns the next record. It blocks until a record arrives, the
// stream ends (io.EOF), or the server reports an error. For following
// queries it blocks indefinitely between records.
func (s *Stream) Next() (Record, error) {
	for {
		if s.done {
			return Record{}, io.EOF
		}
		id, cmd, payload, err := wire.ReadFrame(s.c.nc)
		if err != nil {
			s.done = true
			return Record{}, err
		}
		if id != s.id {
			// Response to a superseded query; skip.
			continue
		}
		switch wire.ResponseCommand(cmd) {
		case wire.RespLogRecord:
			d, derr := wire.DecodeDatagram(payload)
			if derr != nil {
				s.done = true
				return Record{}, pkgerrors.Wrap(derr, "decode record")
			}
			return Record{
				TimestampMs: d.TimestampMs,
				Site:        d.Site,
				Message:     d.Message,
				Raw:         payload,
			}, nil
		case wire.RespEnd:
			s.done = true
			return Record{}, io.EOF
		case wire.RespError:
			s.done = true
			return Record{}, pkgerrors.Errorf("server: %s", payload)
		case wire.RespNop:
			continue
		default:
			s.done = true
			return Record{}, pkgerrors.Errorf("unexpected response command %d", cmd)
		}
	}
}

// Cancel asks the server to stop a following stream. The server
// acknowledges with END, which a concurrent Next observes as io.EOF.
func (s *Stream) Cancel() error {
	if s.done {
		return nil
	}
	return wire.WriteFrame(s.c.nc, s.id, uint16(wire.ReqCancel), nil)
}

func formatMs(ms int64) string { return strconv.FormatInt(ms, 10) }
