package protocol

import (
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"
)

// ReadCompressedFrom reads a packet in the format used after the server
// enabled compression. Packets below the threshold arrive with a data length of
// zero and are not compressed.
func (pk *Packet) ReadCompressedFrom(r io.Reader) (int64, error) {
	var pkLen VarInt
	n, err := pkLen.ReadFrom(r)
	if err != nil {
		return n, err
	}

	if pkLen < 1 || pkLen > MaxDataLength {
		return n, fmt.Errorf("%w: packet length of %d", ErrInvalidDataLength, pkLen)
	}

	frame := make([]byte, pkLen)
	nFrame, err := io.ReadFull(r, frame)
	n += int64(nFrame)
	if err != nil {
		return n, err
	}

	fr := bytes.NewReader(frame)
	var dataLen VarInt
	if _, err := dataLen.ReadFrom(fr); err != nil {
		return n, err
	}

	body := frame[len(frame)-fr.Len():]
	if dataLen != 0 {
		if dataLen < 0 || dataLen > MaxDataLength {
			return n, fmt.Errorf("%w: uncompressed length of %d", ErrInvalidDataLength, dataLen)
		}

		zr, err := zlib.NewReader(fr)
		if err != nil {
			return n, err
		}
		defer zr.Close()

		body = make([]byte, dataLen)
		if _, err := io.ReadFull(zr, body); err != nil {
			return n, err
		}
	}

	br := bytes.NewReader(body)
	var id VarInt
	if _, err := id.ReadFrom(br); err != nil {
		return n, err
	}

	pk.ID = int32(id)
	pk.Data = body[len(body)-br.Len():]
	return n, nil
}

// WriteCompressedTo writes pk in the compressed format. The packet is deflated
// if its uncompressed size reaches threshold.
func (pk Packet) WriteCompressedTo(w io.Writer, threshold int) (int64, error) {
	var body bytes.Buffer
	if _, err := VarInt(pk.ID).WriteTo(&body); err != nil {
		return 0, err
	}
	body.Write(pk.Data)

	var frame bytes.Buffer
	if body.Len() < threshold {
		if _, err := VarInt(0).WriteTo(&frame); err != nil {
			return 0, err
		}
		frame.Write(body.Bytes())
	} else {
		if _, err := VarInt(body.Len()).WriteTo(&frame); err != nil {
			return 0, err
		}
		zw := zlib.NewWriter(&frame)
		if _, err := zw.Write(body.Bytes()); err != nil {
			return 0, err
		}
		if err := zw.Close(); err != nil {
			return 0, err
		}
	}

	n, err := VarInt(frame.Len()).WriteTo(w)
	if err != nil {
		return n, err
	}

	nFrame, err := w.Write(frame.Bytes())
	return n + int64(nFrame), err
}
