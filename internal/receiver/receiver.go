// Package receiver implements Pond's ingest path: a UDP listener decoding
// log record datagrams and appending them to the store. It is the single
// append authority of a Pond instance.
package receiver

import (
	"errors"
	"net"

	pkgerrors "github.com/pkg/errors"

	"github.com/rzbill/pond/internal/runtime"
	"github.com/rzbill/pond/internal/wire"
	logpkg "github.com/rzbill/pond/pkg/log"
)

// maxDatagram bounds the size of one ingest datagram. Larger packets are
// truncated by the read and fail checksum verification.
const maxDatagram = 16 << 10

// Options configures the receiver.
type Options struct {
	// Addr is the UDP listen address, e.g. ":5479".
	Addr    string
	Runtime *runtime.Runtime
	Logger  logpkg.Logger
}

// Receiver ingests log record datagrams until closed.
type Receiver struct {
	rt     *runtime.Runtime
	logger logpkg.Logger
	pc     net.PacketConn
}

// Listen binds the UDP socket and returns a Receiver ready to Run.
func Listen(opts Options) (*Receiver, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewLogger()
	}
	pc, err := net.ListenPacket("udp", opts.Addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "listen udp %s", opts.Addr)
	}
	return &Receiver{
		rt:     opts.Runtime,
		logger: logger.With(logpkg.Component("receiver")),
		pc:     pc,
	}, nil
}

// Addr returns the bound address.
func (r *Receiver) Addr() net.Addr { return r.pc.LocalAddr() }

// Run reads and appends datagrams until Close. Malformed datagrams are
// counted and dropped, never fatal.
func (r *Receiver) Run() {
	r.logger.Info("ingesting datagrams", logpkg.Str("addr", r.pc.LocalAddr().String()))

	buf := make([]byte, maxDatagram)
	for {
		n, _, err := r.pc.ReadFrom(buf)
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				r.logger.Warn("read stopped", logpkg.Err(err))
			}
			return
		}
		d, err := wire.DecodeDatagram(buf[:n])
		if err != nil {
			r.rt.Stats().DroppedIngest.Inc()
			r.logger.Debug("dropped malformed datagram", logpkg.Err(err), logpkg.Int("bytes", n))
			continue
		}
		r.rt.Append(d)
	}
}

// Close stops the receiver.
func (r *Receiver) Close() error {
	return r.pc.Close()
}
