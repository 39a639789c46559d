package server

import (
	"bufio"
	"net"
	"time"

	"github.com/haveachin/floodgate/pkg/floodgate/protocol"
	"github.com/haveachin/floodgate/pkg/floodgate/protocol/login"
)

const defaultTimeout = 10 * time.Second

// Conn is a Java edition connection. Every read and write pushes the
// matching deadline timeout into the future, so a peer that stays silent
// for longer than timeout fails the pending call.
type Conn struct {
	net.Conn

	r       *bufio.Reader
	timeout time.Duration
}

func NewConn(c net.Conn) *Conn {
	if c == nil {
		panic("server: NewConn with nil net.Conn")
	}

	return &Conn{
		Conn:    c,
		r:       bufio.NewReader(c),
		timeout: defaultTimeout,
	}
}

// SetTimeout sets the idle timeout. Zero or less disables deadlines.
func (c *Conn) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *Conn) extend(setDeadline func(time.Time) error) error {
	if c.timeout <= 0 {
		return nil
	}
	return setDeadline(time.Now().Add(c.timeout))
}

func (c *Conn) Read(b []byte) (int, error) {
	if err := c.extend(c.SetReadDeadline); err != nil {
		return 0, err
	}
	return c.r.Read(b)
}

func (c *Conn) Write(b []byte) (int, error) {
	if err := c.extend(c.SetWriteDeadline); err != nil {
		return 0, err
	}
	return c.Conn.Write(b)
}

func (c *Conn) ReadPacket(pk *protocol.Packet) error {
	_, err := pk.ReadFrom(c)
	return err
}

// ReadCompressedPacket reads a packet after the peer enabled compression.
func (c *Conn) ReadCompressedPacket(pk *protocol.Packet) error {
	_, err := pk.ReadCompressedFrom(c)
	return err
}

func (c *Conn) WritePackets(pks ...protocol.Packet) error {
	for _, pk := range pks {
		if _, err := pk.WriteTo(c); err != nil {
			return err
		}
	}
	return nil
}

func (c *Conn) WritePacket(pk protocol.Packet) error {
	return c.WritePackets(pk)
}

// Disconnect sends a login disconnect with msg as its reason.
func (c *Conn) Disconnect(msg string) error {
	var pk protocol.Packet
	if err := login.DisconnectText(msg).Marshal(&pk); err != nil {
		return err
	}
	return c.WritePacket(pk)
}

// ForceClose closes the connection and discards unsent data of TCP
// connections instead of lingering.
func (c *Conn) ForceClose() error {
	if tc, ok := c.Conn.(*net.TCPConn); ok {
		_ = tc.SetLinger(0)
	}
	return c.Close()
}
