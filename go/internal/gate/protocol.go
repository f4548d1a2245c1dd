package gate

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Packet IDs of the handshake, status, and login subset the gate speaks.
const (
	packetHandshake     int32 = 0x00
	packetStatusRequest int32 = 0x00
	packetStatusPing    int32 = 0x01
	packetLoginStart    int32 = 0x00
	packetLoginKick     int32 = 0x00
)

// Handshake next states.
const (
	nextStateStatus   int32 = 1
	nextStateLogin    int32 = 2
	nextStateTransfer int32 = 3
)

const (
	maxPacketLength = 1 << 21
	maxStringLength = 32767
	maxNameLength   = 16
)

func readVarInt(r io.ByteReader) (int32, error) {
	var (
		value uint32
		shift uint
	)
	for i := 0; i < 5; i++ {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		value |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			return int32(value), nil
		}
		shift += 7
	}
	return 0, ErrVarIntTooBig
}

func appendVarInt(buf []byte, v int32) []byte {
	u := uint32(v)
	for {
		if u&^0x7F == 0 {
			return append(buf, byte(u))
		}
		buf = append(buf, byte(u&0x7F|0x80))
		u >>= 7
	}
}

func appendString(buf []byte, s string) []byte {
	buf = appendVarInt(buf, int32(len(s)))
	return append(buf, s...)
}

// packetReader decodes fields from a packet payload.
type packetReader struct {
	*bytes.Reader
}

func newPacketReader(payload []byte) packetReader {
	return packetReader{bytes.NewReader(payload)}
}

func (p packetReader) varInt() (int32, error) {
	return readVarInt(p.Reader)
}

func (p packetReader) string(limit int) (string, error) {
	n, err := p.varInt()
	if err != nil {
		return "", err
	}
	if n < 0 || int(n) > limit*4 {
		return "", fmt.Errorf("%w: %d bytes", ErrStringTooLong, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(p.Reader, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func (p packetReader) uint16() (uint16, error) {
	var buf [2]byte
	if _, err := io.ReadFull(p.Reader, buf[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(buf[:]), nil
}

// readPacket reads one uncompressed length-prefixed packet.
func readPacket(r interface {
	io.Reader
	io.ByteReader
}) (int32, []byte, error) {
	length, err := readVarInt(r)
	if err != nil {
		return 0, nil, err
	}
	if length <= 0 || length > maxPacketLength {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrPacketTooLarge, length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return 0, nil, fmt.Errorf("read packet body: %w", err)
	}
	br := bytes.NewReader(body)
	id, err := readVarInt(br)
	if err != nil {
		return 0, nil, fmt.Errorf("read packet id: %w", err)
	}
	return id, body[len(body)-br.Len():], nil
}

// encodePacket frames id and payload.
func encodePacket(id int32, payload []byte) []byte {
	body := appendVarInt(nil, id)
	body = append(body, payload...)
	out := appendVarInt(make([]byte, 0, len(body)+5), int32(len(body)))
	return append(out, body...)
}

func writePacket(w io.Writer, id int32, payload []byte) error {
	_, err := w.Write(encodePacket(id, payload))
	return err
}

type handshake struct {
	ProtocolVersion int32
	ServerAddress   string
	ServerPort      uint16
	NextState       int32
}

func parseHandshake(id int32, payload []byte) (handshake, error) {
	if id != packetHandshake {
		return handshake{}, fmt.Errorf("%w: 0x%02x during handshake", ErrUnexpectedPacket, id)
	}
	p := newPacketReader(payload)
	var (
		hs  handshake
		err error
	)
	if hs.ProtocolVersion, err = p.varInt(); err != nil {
		return handshake{}, fmt.Errorf("read protocol version: %w", err)
	}
	if hs.ServerAddress, err = p.string(255); err != nil {
		return handshake{}, fmt.Errorf("read server address: %w", err)
	}
	if hs.ServerPort, err = p.uint16(); err != nil {
		return handshake{}, fmt.Errorf("read server port: %w", err)
	}
	if hs.NextState, err = p.varInt(); err != nil {
		return handshake{}, fmt.Errorf("read next state: %w", err)
	}
	return hs, nil
}

func (hs handshake) encode() []byte {
	payload := appendVarInt(nil, hs.ProtocolVersion)
	payload = appendString(payload, hs.ServerAddress)
	payload = binary.BigEndian.AppendUint16(payload, hs.ServerPort)
	payload = appendVarInt(payload, hs.NextState)
	return encodePacket(packetHandshake, payload)
}

type loginStart struct {
	Name string
	UUID uuid.UUID
}

// parseLoginStart accepts the name-only, optional-UUID, and mandatory-UUID
// layouts used by different protocol versions.
func parseLoginStart(id int32, payload []byte) (loginStart, error) {
	if id != packetLoginStart {
		return loginStart{}, fmt.Errorf("%w: 0x%02x during login", ErrUnexpectedPacket, id)
	}
	p := newPacketReader(payload)
	name, err := p.string(maxNameLength)
	if err != nil {
		return loginStart{}, fmt.Errorf("read player name: %w", err)
	}
	ls := loginStart{Name: name}

	rest := payload[len(payload)-p.Len():]
	switch {
	case len(rest) == 16:
		copy(ls.UUID[:], rest)
	case len(rest) == 17 && rest[0] == 1:
		copy(ls.UUID[:], rest[1:])
	}
	return ls, nil
}

func (ls loginStart) encode() []byte {
	payload := appendString(nil, ls.Name)
	payload = append(payload, ls.UUID[:]...)
	return encodePacket(packetLoginStart, payload)
}
