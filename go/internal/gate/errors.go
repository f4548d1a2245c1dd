package gate

import "errors"

var (
	ErrVarIntTooBig      = errors.New("varint is too big")
	ErrPacketTooLarge    = errors.New("packet exceeds size limit")
	ErrStringTooLong     = errors.New("string exceeds length limit")
	ErrUnexpectedPacket  = errors.New("unexpected packet")
	ErrUnknownNextState  = errors.New("unknown handshake next state")
	ErrGateClosed        = errors.New("gate closed")
)
