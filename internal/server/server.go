// Package server implements Pond's query protocol server: it accepts TCP
// connections, turns QUERY/FILTER_*/FOLLOW/COMMIT request datagrams into a
// filtered Selection over the store, and streams matching records back as
// LOG_RECORD responses, terminated by END or held open under FOLLOW.
package server

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/rzbill/pond/internal/runtime"
	logpkg "github.com/rzbill/pond/pkg/log"
)

// Options configures the query server.
type Options struct {
	// Addr is the TCP listen address, e.g. ":5480".
	Addr    string
	Runtime *runtime.Runtime
	Logger  logpkg.Logger
}

// Server accepts query protocol connections and serves them until closed.
type Server struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	addr   string

	ln       net.Listener
	close    chan struct{}
	handlers sync.WaitGroup
}

// New returns a Server ready to Listen.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	return &Server{
		rt:     opts.Runtime,
		logger: logger.With(logpkg.Component("query-server")),
		addr:   opts.Addr,
		close:  make(chan struct{}),
	}
}

// Listen binds the TCP listener.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return pkgerrors.Wrapf(err, "listen %s", s.addr)
	}
	s.ln = ln
	return nil
}

// Addr returns the bound listen address. Listen must have succeeded.
func (s *Server) Addr() net.Addr { return s.ln.Addr() }

// Serve accepts connections until the context is cancelled or Close is
// called. Each connection is handled on its own goroutine.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.logger.Info("accepting connections", logpkg.Str("addr", s.ln.Addr().String()))

	go func() {
		select {
		case <-ctx.Done():
			_ = s.Close()
		case <-s.close:
		}
	}()

	for {
		c, err := s.ln.Accept()
		if err != nil {
			select {
			case <-s.close:
				s.handlers.Wait()
				return nil
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				s.handlers.Wait()
				return nil
			}
			s.logger.Warn("accept failed", logpkg.Err(err))
			continue
		}
		s.handlers.Add(1)
		go func() {
			defer s.handlers.Done()
			newConn(s, c).run()
		}()
	}
}

// Close stops accepting connections and unblocks Serve. In-flight
// connection handlers observe the closed channel and wind down.
func (s *Server) Close() error {
	select {
	case <-s.close:
		return nil
	default:
	}
	close(s.close)
	if s.ln != nil {
		return s.ln.Close()
	}
	return nil
}

func connID() string { return uuid.NewString() }
