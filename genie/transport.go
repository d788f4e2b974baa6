package genie

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/tarm/serial"
)

// Transport is the byte channel to the display. It is owned by the caller,
// the engine never opens or closes it.
type Transport interface {
	// Available returns the number of bytes that can be read without blocking
	Available() int
	// ReadByte returns the next pending byte, or ErrNoCharacter if there is none
	ReadByte() (byte, error)
	WriteByte(c byte) error
	// Millis is a monotonic millisecond clock
	Millis() int64
}

// DefaultBaud is the factory default speed of Genie displays
const DefaultBaud = 9600

// Port is a Transport backed by a serial device or a TCP serial bridge.
// A goroutine drains the connection into an internal buffer so that
// Available and ReadByte never block.
type Port struct {
	conn  io.ReadWriteCloser
	w     *bufio.Writer
	wlock sync.Mutex

	rlock sync.Mutex
	rbuf  []byte
	err   error

	start time.Time
	Done  chan struct{}
}

// Open attaches to a display via a serial device or a tcp socket.
// Use socket://host:port or tcp://host:port for TCP, a device path or file://path for serial.
func Open(link string, baud int) (*Port, error) {
	u, err := url.Parse(link)
	if err != nil {
		return nil, err
	}
	if baud <= 0 {
		baud = DefaultBaud
	}

	var conn io.ReadWriteCloser
	switch u.Scheme {
	case "socket", "tcp":
		c, err := net.Dial("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		if err := keepAlive(c.(*net.TCPConn)); err != nil {
			c.Close()
			return nil, fmt.Errorf("genie: keepalive on %s: %w", u.Host, err)
		}
		conn = c
	case "file", "":
		conn, err = serial.OpenPort(&serial.Config{Name: u.Path, Baud: baud, Size: 8, Parity: serial.ParityNone, StopBits: serial.Stop1})
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("genie: unsupported link scheme %q in %q", u.Scheme, link)
	}

	return NewPort(conn), nil
}

// keepAlive lets a dead TCP serial bridge surface as a read error
func keepAlive(c *net.TCPConn) error {
	if err := c.SetKeepAlive(true); err != nil {
		return err
	}
	return c.SetKeepAlivePeriod(30 * time.Second)
}

// NewPort wraps an already opened connection
func NewPort(conn io.ReadWriteCloser) *Port {
	p := &Port{
		conn:  conn,
		w:     bufio.NewWriter(conn),
		start: time.Now(),
		Done:  make(chan struct{}),
	}
	go p.readLoop()
	return p
}

func (p *Port) readLoop() {
	defer close(p.Done)
	b := make([]byte, 256)
	for {
		n, err := p.conn.Read(b)
		if n > 0 {
			log.Debugf("Read b='%# x', n=%v", b[:n], n)
			p.rlock.Lock()
			p.rbuf = append(p.rbuf, b[:n]...)
			p.rlock.Unlock()
		}
		if err != nil {
			p.rlock.Lock()
			p.err = err
			p.rlock.Unlock()
			if err != io.EOF {
				log.Errorf("Read loop terminated: %v", err)
			}
			return
		}
	}
}

func (p *Port) Available() int {
	p.rlock.Lock()
	defer p.rlock.Unlock()
	return len(p.rbuf)
}

func (p *Port) ReadByte() (byte, error) {
	p.rlock.Lock()
	defer p.rlock.Unlock()
	if len(p.rbuf) == 0 {
		if p.err != nil {
			return 0, p.err
		}
		return 0, ErrNoCharacter
	}
	c := p.rbuf[0]
	p.rbuf = p.rbuf[1:]
	return c, nil
}

// WriteByte buffers c, Flush hands the buffered bytes to the connection
func (p *Port) WriteByte(c byte) error {
	p.wlock.Lock()
	defer p.wlock.Unlock()
	return p.w.WriteByte(c)
}

// Flush writes all buffered bytes. The engine flushes after each complete command.
func (p *Port) Flush() error {
	p.wlock.Lock()
	defer p.wlock.Unlock()
	n := p.w.Buffered()
	err := p.w.Flush()
	log.Debugf("Write n=%v, err=%v", n, err)
	return err
}

func (p *Port) Millis() int64 {
	return time.Since(p.start).Milliseconds()
}

// Err returns the error that terminated the read loop, if any
func (p *Port) Err() error {
	p.rlock.Lock()
	defer p.rlock.Unlock()
	return p.err
}

// Close closes the underlying serial device or network connection
func (p *Port) Close() error {
	p.wlock.Lock()
	defer p.wlock.Unlock()
	p.w.Flush()
	return p.conn.Close()
}

// flusher is implemented by transports that buffer writes
type flusher interface {
	Flush() error
}
