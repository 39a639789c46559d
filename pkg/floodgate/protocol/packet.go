package protocol

import (
	"bytes"
	"fmt"
	"io"
)

// MaxDataLength bounds the payload of a single packet.
const MaxDataLength = 0x200000

// Packet is an uncompressed and unencrypted Java edition packet.
type Packet struct {
	ID   int32
	Data []byte
}

// Clone returns a deep copy of pk that does not share its data buffer.
func (pk Packet) Clone() Packet {
	return Packet{
		ID:   pk.ID,
		Data: append([]byte(nil), pk.Data...),
	}
}

// Len returns the number of bytes pk occupies on the wire including its length prefix.
func (pk Packet) Len() int {
	l := VarInt(pk.ID).Len() + len(pk.Data)
	return VarInt(l).Len() + l
}

// Decode reads fields from the packet data in order.
func (pk Packet) Decode(fields ...FieldDecoder) error {
	return ScanFields(bytes.NewReader(pk.Data), fields...)
}

func ScanFields(r io.Reader, fields ...FieldDecoder) error {
	for i, f := range fields {
		if _, err := f.ReadFrom(r); err != nil {
			return fmt.Errorf("decoding field %d: %w", i, err)
		}
	}
	return nil
}

// Encode replaces the packet with id and fields. The data buffer is reused.
func (pk *Packet) Encode(id int32, fields ...FieldEncoder) error {
	buf := bytes.NewBuffer(pk.Data[:0])
	for _, f := range fields {
		if _, err := f.WriteTo(buf); err != nil {
			return err
		}
	}

	pk.ID = id
	pk.Data = buf.Bytes()
	return nil
}

func (pk Packet) WriteTo(w io.Writer) (int64, error) {
	buf := bytes.NewBuffer(make([]byte, 0, pk.Len()))
	_, _ = VarInt(VarInt(pk.ID).Len() + len(pk.Data)).WriteTo(buf)
	_, _ = VarInt(pk.ID).WriteTo(buf)
	buf.Write(pk.Data)

	n, err := w.Write(buf.Bytes())
	return int64(n), err
}

func (pk *Packet) ReadFrom(r io.Reader) (int64, error) {
	var pkLen, pkID VarInt
	n, err := pkLen.ReadFrom(r)
	if err != nil {
		return n, err
	}

	nID, err := pkID.ReadFrom(r)
	n += nID
	if err != nil {
		return n, err
	}

	dataLen := int(pkLen) - int(nID)
	if dataLen < 0 || dataLen > MaxDataLength {
		return n, fmt.Errorf("%w: %d", ErrInvalidDataLength, dataLen)
	}

	if cap(pk.Data) < dataLen {
		pk.Data = make([]byte, dataLen)
	}
	pk.Data = pk.Data[:dataLen]
	pk.ID = int32(pkID)

	nData, err := io.ReadFull(r, pk.Data)
	return n + int64(nData), err
}

// PeekPacket reads the next packet from r without consuming it.
// It returns the number of bytes the packet spans so callers can discard them later.
func PeekPacket(r PeekReader, pk *Packet) (int, error) {
	p := peeker{r: r}
	_, err := pk.ReadFrom(&p)
	return p.off, err
}
