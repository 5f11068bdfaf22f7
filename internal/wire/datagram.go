package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
)

// Log record datagram encoding:
//
//	magic "Pnd1" (u32 BE) | attributes... | crc32c (u32 BE)
//
// Each attribute is a 1-byte tag followed by its payload. The checksum
// covers everything between the magic and the trailer.

const datagramMagic uint32 = 0x506e6431 // "Pnd1"

const (
	attrTimestamp byte = 1 // u64 BE unix milliseconds
	attrSite      byte = 2 // u16 BE length + bytes
	attrMessage   byte = 3 // u16 BE length + bytes
)

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

var (
	ErrBadMagic    = errors.New("wire: bad datagram magic")
	ErrBadChecksum = errors.New("wire: datagram checksum mismatch")
	ErrTruncated   = errors.New("wire: truncated datagram")
)

// Datagram is one log record as transmitted on the wire: the ingest path
// decodes these into store records, and the query path re-emits the stored
// raw bytes unchanged.
type Datagram struct {
	TimestampMs int64
	Site        string
	Message     string
}

// Encode returns the wire bytes of the datagram.
func (d *Datagram) Encode() []byte {
	out := make([]byte, 0, 4+9+4+len(d.Site)+3+len(d.Message)+4)
	out = binary.BigEndian.AppendUint32(out, datagramMagic)

	out = append(out, attrTimestamp)
	out = binary.BigEndian.AppendUint64(out, uint64(d.TimestampMs))
	if d.Site != "" {
		out = appendStringAttr(out, attrSite, d.Site)
	}
	if d.Message != "" {
		out = appendStringAttr(out, attrMessage, d.Message)
	}

	crc := crc32.Checksum(out[4:], castagnoli)
	return binary.BigEndian.AppendUint32(out, crc)
}

func appendStringAttr(dst []byte, tag byte, s string) []byte {
	dst = append(dst, tag)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(s)))
	return append(dst, s...)
}

// DecodeDatagram parses wire bytes into a Datagram. Unknown attribute tags
// are a decode error; the checksum is always verified.
func DecodeDatagram(b []byte) (Datagram, error) {
	var d Datagram
	if len(b) < 4+4 {
		return d, ErrTruncated
	}
	if binary.BigEndian.Uint32(b[0:4]) != datagramMagic {
		return d, ErrBadMagic
	}
	body := b[4 : len(b)-4]
	if crc32.Checksum(body, castagnoli) != binary.BigEndian.Uint32(b[len(b)-4:]) {
		return d, ErrBadChecksum
	}

	for len(body) > 0 {
		tag := body[0]
		body = body[1:]
		switch tag {
		case attrTimestamp:
			if len(body) < 8 {
				return d, ErrTruncated
			}
			d.TimestampMs = int64(binary.BigEndian.Uint64(body[:8]))
			body = body[8:]
		case attrSite:
			s, rest, err := takeString(body)
			if err != nil {
				return d, err
			}
			d.Site = s
			body = rest
		case attrMessage:
			s, rest, err := takeString(body)
			if err != nil {
				return d, err
			}
			d.Message = s
			body = rest
		default:
			return d, fmt.Errorf("wire: unknown datagram attribute %d", tag)
		}
	}
	return d, nil
}

func takeString(b []byte) (string, []byte, error) {
	if len(b) < 2 {
		return "", nil, ErrTruncated
	}
	n := int(binary.BigEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < n {
		return "", nil, ErrTruncated
	}
	return string(b[:n]), b[n:], nil
}
