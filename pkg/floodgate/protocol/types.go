package protocol

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/google/uuid"
)

// Field is a value with a fixed Java edition wire encoding.
type Field interface {
	FieldEncoder
	FieldDecoder
}

type (
	FieldEncoder = io.WriterTo
	FieldDecoder = io.ReaderFrom
)

type (
	Boolean       bool
	UnsignedShort uint16
	Long          int64
	// VarInt is a signed 32-bit integer in 7-bit groups, least significant group first.
	VarInt int32
	// String is UTF-8 prefixed with its length in bytes as a VarInt.
	String string
	// Chat is a JSON text component sent as a String.
	Chat = String
	// ByteArray is prefixed with its length as a VarInt.
	ByteArray []byte
	// UUID is sent as 16 raw bytes.
	UUID uuid.UUID
)

const (
	MaxVarIntLen = 5
	// MaxStringLen is the largest string the Java edition accepts on the wire in bytes.
	// The server address of a handshake carrying an identity envelope gets close to it.
	MaxStringLen = 32767 * 4
)

func writeBytes(w io.Writer, b ...byte) (int64, error) {
	n, err := w.Write(b)
	return int64(n), err
}

func readByte(r io.Reader) (int64, byte, error) {
	if br, ok := r.(io.ByteReader); ok {
		b, err := br.ReadByte()
		if err != nil {
			return 0, 0, err
		}
		return 1, b, nil
	}

	var b [1]byte
	n, err := io.ReadFull(r, b[:])
	return int64(n), b[0], err
}

// readPrefixed reads a VarInt length followed by that many bytes. Lengths
// outside of [0, max] are rejected with errTooLong before anything is allocated.
func readPrefixed(r io.Reader, max int, errTooLong error) ([]byte, int64, error) {
	var l VarInt
	n, err := l.ReadFrom(r)
	if err != nil {
		return nil, n, err
	}

	if l < 0 || int(l) > max {
		return nil, n, fmt.Errorf("%w: length of %d", errTooLong, l)
	}

	buf := make([]byte, l)
	nBuf, err := io.ReadFull(r, buf)
	return buf, n + int64(nBuf), err
}

func writePrefixed(w io.Writer, b []byte) (int64, error) {
	n, err := VarInt(len(b)).WriteTo(w)
	if err != nil {
		return n, err
	}

	nb, err := w.Write(b)
	return n + int64(nb), err
}

func (b Boolean) WriteTo(w io.Writer) (int64, error) {
	if b {
		return writeBytes(w, 0x01)
	}
	return writeBytes(w, 0x00)
}

func (b *Boolean) ReadFrom(r io.Reader) (int64, error) {
	n, v, err := readByte(r)
	*b = v != 0x00
	return n, err
}

func (us UnsignedShort) WriteTo(w io.Writer) (int64, error) {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(us))
	return writeBytes(w, buf[:]...)
}

func (us *UnsignedShort) ReadFrom(r io.Reader) (int64, error) {
	var buf [2]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return int64(n), err
	}

	*us = UnsignedShort(binary.BigEndian.Uint16(buf[:]))
	return int64(n), nil
}

func (l Long) WriteTo(w io.Writer) (int64, error) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(l))
	return writeBytes(w, buf[:]...)
}

func (l *Long) ReadFrom(r io.Reader) (int64, error) {
	var buf [8]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return int64(n), err
	}

	*l = Long(binary.BigEndian.Uint64(buf[:]))
	return int64(n), nil
}

func (v VarInt) WriteTo(w io.Writer) (int64, error) {
	var buf [MaxVarIntLen]byte
	i := 0
	for num := uint32(v); ; i++ {
		buf[i] = byte(num & 0x7F)
		num >>= 7
		if num == 0 {
			i++
			break
		}
		buf[i] |= 0x80
	}

	return writeBytes(w, buf[:i]...)
}

func (v *VarInt) ReadFrom(r io.Reader) (int64, error) {
	var num uint32
	var n int64
	for shift := 0; ; shift += 7 {
		if n == MaxVarIntLen {
			return n, ErrVarIntTooBig
		}

		nn, b, err := readByte(r)
		n += nn
		if err != nil {
			return n, err
		}

		num |= uint32(b&0x7F) << shift
		if b&0x80 == 0 {
			break
		}
	}

	*v = VarInt(num)
	return n, nil
}

// Len returns the number of bytes required to encode the VarInt.
func (v VarInt) Len() int {
	n := 1
	for num := uint32(v) >> 7; num != 0; num >>= 7 {
		n++
	}
	return n
}

func (s String) WriteTo(w io.Writer) (int64, error) {
	return writePrefixed(w, []byte(s))
}

func (s *String) ReadFrom(r io.Reader) (int64, error) {
	b, n, err := readPrefixed(r, MaxStringLen, ErrStringTooLong)
	if err != nil {
		return n, err
	}

	*s = String(b)
	return n, nil
}

func (b ByteArray) WriteTo(w io.Writer) (int64, error) {
	return writePrefixed(w, b)
}

func (b *ByteArray) ReadFrom(r io.Reader) (int64, error) {
	buf, n, err := readPrefixed(r, MaxDataLength, ErrInvalidDataLength)
	if err != nil {
		return n, err
	}

	*b = buf
	return n, nil
}

// String returns the dashed hex form of the UUID.
func (u UUID) String() string {
	return uuid.UUID(u).String()
}

func (u UUID) WriteTo(w io.Writer) (int64, error) {
	return writeBytes(w, u[:]...)
}

func (u *UUID) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.ReadFull(r, (*u)[:])
	return int64(n), err
}
