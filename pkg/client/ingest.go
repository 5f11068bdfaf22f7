package client

import (
	"net"

	pkgerrors "github.com/pkg/errors"

	"github.com/rzbill/pond/internal/wire"
)

// Ingester sends log record datagrams to a Pond ingest port.
type Ingester struct {
	nc net.Conn
}

// DialIngest connects a UDP socket to the ingest address.
func DialIngest(addr string) (*Ingester, error) {
	nc, err := net.Dial("udp", addr)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "dial udp %s", addr)
	}
	return &Ingester{nc: nc}, nil
}

// Send transmits one record. Delivery is best-effort, as with all
// datagram ingest.
func (i *Ingester) Send(rec Record) error {
	d := wire.Datagram{TimestampMs: rec.TimestampMs, Site: rec.Site, Message: rec.Message}
	_, err := i.nc.Write(d.Encode())
	return pkgerrors.Wrap(err, "send datagram")
}

// SendRaw transmits pre-encoded datagram bytes unchanged.
func (i *Ingester) SendRaw(b []byte) error {
	_, err := i.nc.Write(b)
	return pkgerrors.Wrap(err, "send datagram")
}

// Close releases the socket.
func (i *Ingester) Close() error { return i.nc.Close() }
