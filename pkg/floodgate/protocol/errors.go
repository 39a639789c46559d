package protocol

import "errors"

var (
	ErrInvalidPacketID   = errors.New("invalid packet id")
	ErrInvalidDataLength = errors.New("invalid data length")
	ErrStringTooLong     = errors.New("string exceeds maximum length")
	ErrVarIntTooBig      = errors.New("VarInt is too big")
)
