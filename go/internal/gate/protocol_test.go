package gate

import (
	"bufio"
	"bytes"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func TestVarIntEncoding(t *testing.T) {
	tests := []struct {
		value int32
		want  []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{255, []byte{0xff, 0x01}},
		{25565, []byte{0xdd, 0xc7, 0x01}},
		{2147483647, []byte{0xff, 0xff, 0xff, 0xff, 0x07}},
		{-1, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		got := appendVarInt(nil, tt.value)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("appendVarInt(%d) = %x, want %x", tt.value, got, tt.want)
		}
		decoded, err := readVarInt(bytes.NewReader(tt.want))
		if err != nil {
			t.Fatalf("readVarInt(%x): %v", tt.want, err)
		}
		if decoded != tt.value {
			t.Errorf("readVarInt(%x) = %d, want %d", tt.want, decoded, tt.value)
		}
	}
}

func TestReadVarIntTooBig(t *testing.T) {
	_, err := readVarInt(bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff, 0xff, 0x01}))
	if !errors.Is(err, ErrVarIntTooBig) {
		t.Fatalf("expected ErrVarIntTooBig, got %v", err)
	}
}

func TestReadPacketRejectsOversizedLength(t *testing.T) {
	frame := appendVarInt(nil, maxPacketLength+1)
	_, _, err := readPacket(bufio.NewReader(bytes.NewReader(frame)))
	if !errors.Is(err, ErrPacketTooLarge) {
		t.Fatalf("expected ErrPacketTooLarge, got %v", err)
	}
}

func TestParseHandshake(t *testing.T) {
	frame := handshake{ProtocolVersion: 765, ServerAddress: "play.example.net", ServerPort: 25565, NextState: nextStateLogin}.encode()

	id, payload, err := readPacket(bufio.NewReader(bytes.NewReader(frame)))
	if err != nil {
		t.Fatalf("readPacket: %v", err)
	}
	hs, err := parseHandshake(id, payload)
	if err != nil {
		t.Fatalf("parseHandshake: %v", err)
	}
	if hs.ProtocolVersion != 765 || hs.ServerAddress != "play.example.net" || hs.ServerPort != 25565 || hs.NextState != nextStateLogin {
		t.Errorf("unexpected handshake %+v", hs)
	}
}

func TestParseLoginStartLayouts(t *testing.T) {
	id := uuid.MustParse("069a79f4-44e9-4726-a5be-fca90e38aaf5")
	name := appendString(nil, "Notch")

	tests := []struct {
		name     string
		payload  []byte
		wantUUID uuid.UUID
	}{
		{"name only", name, uuid.Nil},
		{"mandatory uuid", append(append([]byte{}, name...), id[:]...), id},
		{"optional uuid present", append(append(append([]byte{}, name...), 1), id[:]...), id},
		{"optional uuid absent", append(append([]byte{}, name...), 0), uuid.Nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ls, err := parseLoginStart(packetLoginStart, tt.payload)
			if err != nil {
				t.Fatalf("parseLoginStart: %v", err)
			}
			if ls.Name != "Notch" {
				t.Errorf("expected name Notch, got %q", ls.Name)
			}
			if ls.UUID != tt.wantUUID {
				t.Errorf("expected uuid %s, got %s", tt.wantUUID, ls.UUID)
			}
		})
	}
}

func TestParseLoginStartRejectsLongName(t *testing.T) {
	payload := appendString(nil, string(bytes.Repeat([]byte("a"), maxNameLength*4+1)))
	if _, err := parseLoginStart(packetLoginStart, payload); !errors.Is(err, ErrStringTooLong) {
		t.Fatalf("expected ErrStringTooLong, got %v", err)
	}
}
