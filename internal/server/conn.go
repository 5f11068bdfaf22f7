package server

import (
	"io"
	"net"
	"strconv"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/rzbill/pond/internal/store"
	"github.com/rzbill/pond/internal/wire"
	logpkg "github.com/rzbill/pond/pkg/log"
)

// drainBatch bounds how many records are collected under the runtime lock
// per iteration, so a large backlog cannot starve the append path.
const drainBatch = 128

// rearmInterval bounds how long a following connection sleeps before
// re-checking its selection. A live append that fails the filter leaves
// the selection empty and unarmed; the tick is the driving loop's chance
// to resume and re-arm.
const rearmInterval = 100 * time.Millisecond

type frame struct {
	id      uint16
	command uint16
	payload []byte
}

// pendingQuery accumulates filter state between QUERY and COMMIT.
type pendingQuery struct {
	id     uint16
	filter *store.Filter
	follow bool
}

type conn struct {
	id     string
	srv    *Server
	nc     net.Conn
	logger logpkg.Logger

	reqs chan frame
	wake chan struct{}
}

func newConn(s *Server, nc net.Conn) *conn {
	id := connID()
	return &conn{
		id:     id,
		srv:    s,
		nc:     nc,
		logger: s.logger.With(logpkg.Str("conn", id), logpkg.Str("remote", nc.RemoteAddr().String())),
		reqs:   make(chan frame, 8),
		wake:   make(chan struct{}, 1),
	}
}

func (c *conn) run() {
	defer c.nc.Close()
	c.logger.Debug("connected")

	go c.readLoop()

	var pending *pendingQuery
	for {
		var f frame
		var ok bool
		select {
		case f, ok = <-c.reqs:
		case <-c.srv.close:
			return
		}
		if !ok {
			c.logger.Debug("disconnected")
			return
		}

		next, err := c.handleFrame(&pending, f)
		if err != nil {
			c.logger.Debug("connection error", logpkg.Err(err))
			return
		}
		for next != nil {
			f := *next
			next, err = c.handleFrame(&pending, f)
			if err != nil {
				c.logger.Debug("connection error", logpkg.Err(err))
				return
			}
		}
	}
}

// readLoop feeds inbound frames to the connection's state machine. The
// channel is closed when the peer goes away.
func (c *conn) readLoop() {
	defer close(c.reqs)
	for {
		id, cmd, payload, err := wire.ReadFrame(c.nc)
		if err != nil {
			if err != io.EOF {
				c.logger.Debug("read failed", logpkg.Err(err))
			}
			return
		}
		select {
		case c.reqs <- frame{id: id, command: cmd, payload: payload}:
		case <-c.srv.close:
			return
		}
	}
}

// handleFrame processes one request frame. It may return a follow-up
// frame that arrived while a committed query was streaming and must now
// be processed by the caller.
func (c *conn) handleFrame(pending **pendingQuery, f frame) (*frame, error) {
	switch wire.RequestCommand(f.command) {
	case wire.ReqNop:
		return nil, nil

	case wire.ReqQuery:
		if *pending != nil {
			return nil, c.sendError(f.id, "query setup already in progress")
		}
		*pending = &pendingQuery{id: f.id, filter: store.NewFilter()}
		return nil, nil

	case wire.ReqFilterSite:
		q, err := c.requireQuery(pending, f)
		if err != nil || q == nil {
			return nil, err
		}
		q.filter.Site = string(f.payload)
		return nil, nil

	case wire.ReqFilterSince:
		return nil, c.setTimeBound(pending, f, true)

	case wire.ReqFilterUntil:
		return nil, c.setTimeBound(pending, f, false)

	case wire.ReqFilterExpr:
		q, err := c.requireQuery(pending, f)
		if err != nil || q == nil {
			return nil, err
		}
		if err := q.filter.SetExpr(string(f.payload)); err != nil {
			*pending = nil
			return nil, c.sendError(f.id, "bad filter expression: "+err.Error())
		}
		return nil, nil

	case wire.ReqFollow:
		q, err := c.requireQuery(pending, f)
		if err != nil || q == nil {
			return nil, err
		}
		q.follow = true
		return nil, nil

	case wire.ReqCommit:
		q, err := c.requireQuery(pending, f)
		if err != nil || q == nil {
			return nil, err
		}
		*pending = nil
		return c.streamQuery(q)

	case wire.ReqCancel:
		if *pending != nil && (*pending).id == f.id {
			*pending = nil
		}
		return nil, nil

	default:
		return nil, c.sendError(f.id, "unknown command "+strconv.Itoa(int(f.command)))
	}
}

func (c *conn) requireQuery(pending **pendingQuery, f frame) (*pendingQuery, error) {
	q := *pending
	if q == nil || q.id != f.id {
		return nil, c.sendError(f.id, "no query in progress")
	}
	return q, nil
}

func (c *conn) setTimeBound(pending **pendingQuery, f frame, since bool) error {
	q, err := c.requireQuery(pending, f)
	if err != nil || q == nil {
		return err
	}
	ms, perr := strconv.ParseInt(string(f.payload), 10, 64)
	if perr != nil {
		*pending = nil
		return c.sendError(f.id, "bad time bound")
	}
	if since {
		q.filter.SinceMs = ms
	} else {
		q.filter.UntilMs = ms
	}
	return nil
}

// streamQuery drives a committed query: drain the selection in batches,
// then either terminate with END or follow the store live. A frame that
// arrives mid-stream and outlives the query (a fresh QUERY) is handed back
// to the caller.
func (c *conn) streamQuery(q *pendingQuery) (*frame, error) {
	sel := c.srv.rt.NewSelection(q.filter, c.notify)
	defer c.srv.rt.CloseSelection(sel)

	c.logger.Debug("query committed",
		logpkg.Str("site", q.filter.Site),
		logpkg.Bool("follow", q.follow))

	first := true
	var ticker *time.Ticker
	if q.follow {
		ticker = time.NewTicker(rearmInterval)
		defer ticker.Stop()
	}

	for {
		batch := c.drain(sel, first, q.follow)
		first = false
		for _, rec := range batch {
			if err := wire.WriteFrame(c.nc, q.id, uint16(wire.RespLogRecord), rec.Raw()); err != nil {
				return nil, pkgerrors.Wrap(err, "write record")
			}
		}
		if n := len(batch); n > 0 {
			c.srv.rt.Stats().Deliveries.Add(uint64(n))
			if n == drainBatch {
				// More backlog likely; keep draining, but let a queued
				// CANCEL through first.
				if f, done := c.pollRequest(q); done {
					return f, nil
				}
				continue
			}
		}

		if !q.follow {
			return nil, c.send(q.id, wire.RespEnd, nil)
		}

		select {
		case <-c.wake:
		case <-ticker.C:
		case f, ok := <-c.reqs:
			if !ok {
				return nil, io.EOF
			}
			if done := c.handleMidStream(q, f); done {
				if wire.RequestCommand(f.command) == wire.ReqQuery {
					return &f, nil
				}
				return nil, nil
			}
		case <-c.srv.close:
			return nil, nil
		}
	}
}

// pollRequest checks for an inbound frame without blocking.
func (c *conn) pollRequest(q *pendingQuery) (*frame, bool) {
	select {
	case f, ok := <-c.reqs:
		if !ok {
			return nil, true
		}
		if done := c.handleMidStream(q, f); done {
			if wire.RequestCommand(f.command) == wire.ReqQuery {
				return &f, true
			}
			return nil, true
		}
		return nil, false
	default:
		return nil, false
	}
}

// handleMidStream reacts to a request received while a query is
// streaming. CANCEL of the active query acknowledges with END; a fresh
// QUERY supersedes the active one; everything else is rejected without
// disturbing the stream.
func (c *conn) handleMidStream(q *pendingQuery, f frame) bool {
	switch wire.RequestCommand(f.command) {
	case wire.ReqCancel:
		if f.id == q.id {
			_ = c.send(q.id, wire.RespEnd, nil)
			return true
		}
		return false
	case wire.ReqQuery:
		return true
	case wire.ReqNop:
		return false
	default:
		_ = c.sendError(f.id, "query is streaming")
		return false
	}
}

// drain collects up to drainBatch matching records under the runtime
// lock. The first call positions the selection; later calls repair any
// eviction damage and resume past records that arrived while the
// selection was exhausted and unarmed. When the selection runs dry and
// the query follows, it is re-armed before the lock is released so no
// append is missed between drain and wait.
func (c *conn) drain(sel *store.Selection, first, follow bool) []*store.Record {
	var out []*store.Record
	c.srv.rt.View(func(*store.Store) {
		if first {
			sel.Rewind()
		} else {
			sel.FixDeleted()
			sel.Resume()
		}
		for sel.Valid() && len(out) < drainBatch {
			out = append(out, sel.Record())
			sel.Advance()
		}
		if follow && !sel.Valid() {
			sel.Follow()
		}
	})
	return out
}

// notify is the selection's append callback; it runs inside the store's
// append fan-out and must not block.
func (c *conn) notify() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

func (c *conn) send(id uint16, cmd wire.ResponseCommand, payload []byte) error {
	return wire.WriteFrame(c.nc, id, uint16(cmd), payload)
}

func (c *conn) sendError(id uint16, msg string) error {
	return c.send(id, wire.RespError, []byte(msg))
}
