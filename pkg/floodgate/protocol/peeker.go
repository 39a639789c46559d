package protocol

import "io"

// PeekReader is satisfied by *bufio.Reader.
type PeekReader interface {
	io.Reader
	Peek(n int) ([]byte, error)
}

// peeker reads from the buffer of r without advancing r. off is the number of
// bytes handed out so far.
type peeker struct {
	r   PeekReader
	off int
}

func (p *peeker) Read(b []byte) (int, error) {
	buf, err := p.r.Peek(p.off + len(b))
	if err != nil {
		return 0, err
	}

	n := copy(b, buf[p.off:])
	p.off += n
	return n, nil
}

func (p *peeker) ReadByte() (byte, error) {
	buf, err := p.r.Peek(p.off + 1)
	if err != nil {
		return 0, err
	}

	b := buf[p.off]
	p.off++
	return b, nil
}
