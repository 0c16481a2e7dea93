package gameserver

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moonvale/moonmud/internal/crypto"
	"github.com/moonvale/moonmud/internal/maps"
	"github.com/moonvale/moonmud/internal/model"
	"github.com/moonvale/moonmud/internal/packet"
	"github.com/moonvale/moonmud/internal/protocol"
	"github.com/moonvale/moonmud/internal/scheduler"
)

const (
	defaultSendQueueSize = 256
	defaultWriteTimeout  = 5 * time.Second
)

// Conn is one client connection: transport state owned by the reader
// and writer goroutines, and play state owned exclusively by the
// world tick goroutine.
type Conn struct {
	id      int64
	conn    net.Conn
	ip      string
	session *crypto.Session
	strict  bool

	// 1-slot inbound mailbox. The reader overwrites it on every
	// decoded frame, so a flooding client only ever has its newest
	// message processed.
	mailboxMu sync.Mutex
	mailbox   packet.Message

	closed atomic.Bool // reader observed transport loss

	// handshaked flips once the peer key is installed; the reader
	// consults it instead of the session so the driver can write the
	// key without racing.
	handshaked atomic.Bool

	sendCh    chan []byte
	closeCh   chan struct{}
	closeOnce sync.Once

	// Everything below is touched only on the world goroutine.
	state      ConnState
	outgoing   []packet.Message
	username   string
	user       *model.User
	player     *model.Player
	instance   *model.Instance
	roomMap    *maps.Room
	loggedIn   bool
	visible    map[int64]*model.Instance
	actionLoop *scheduler.Entry
}

// NewConn wraps an accepted connection. Reader and writer goroutines
// are started separately by Start.
func NewConn(id int64, conn net.Conn, session *crypto.Session, strict bool) *Conn {
	ip := ""
	if conn != nil {
		if host, _, err := net.SplitHostPort(conn.RemoteAddr().String()); err == nil {
			ip = host
		}
	}
	return &Conn{
		id:      id,
		conn:    conn,
		ip:      ip,
		session: session,
		strict:  strict,
		sendCh:  make(chan []byte, defaultSendQueueSize),
		closeCh: make(chan struct{}),
		state:   StateGetEntry,
		visible: make(map[int64]*model.Instance),
	}
}

// Start launches the reader and writer goroutines.
func (c *Conn) Start() {
	go c.readLoop()
	go c.writePump()
}

// ID returns the connection id.
func (c *Conn) ID() int64 {
	return c.id
}

// Closed reports whether the transport has been lost. The tick
// driver reaps closed connections at the top of each tick.
func (c *Conn) Closed() bool {
	return c.closed.Load()
}

// putMailbox stores the newest decoded message, discarding any
// unprocessed predecessor.
func (c *Conn) putMailbox(m packet.Message) {
	c.mailboxMu.Lock()
	c.mailbox = m
	c.mailboxMu.Unlock()
}

// takeMailbox removes and returns the pending message, if any.
func (c *Conn) takeMailbox() packet.Message {
	c.mailboxMu.Lock()
	m := c.mailbox
	c.mailbox = nil
	c.mailboxMu.Unlock()
	return m
}

// enqueue appends a message to the outbound queue. Messages flush in
// FIFO order at the end of the tick.
func (c *Conn) enqueue(m packet.Message) {
	c.outgoing = append(c.outgoing, m)
}

// readLoop decodes inbound frames into the mailbox until the
// transport fails.
func (c *Conn) readLoop() {
	r := bufio.NewReader(c.conn)
	for {
		payload, err := protocol.ReadFrame(r)
		if err != nil {
			slog.Debug("connection read ended", "conn", c.id, "ip", c.ip, "error", err)
			c.closed.Store(true)
			return
		}

		plain, derr := c.session.Decrypt(payload)
		if derr != nil {
			if c.strict && c.handshaked.Load() {
				slog.Warn("dropping undecryptable frame", "conn", c.id, "ip", c.ip, "error", derr)
				continue
			}
			// Compatibility fallback: retry the raw bytes as cleartext.
			slog.Debug("frame came through unencrypted", "conn", c.id, "ip", c.ip, "error", derr)
			plain = payload
		}

		msg, err := packet.Decode(plain)
		if err != nil {
			slog.Warn("dropping malformed frame", "conn", c.id, "ip", c.ip, "error", err)
			continue
		}
		c.putMailbox(msg)
	}
}

// flush encodes, encrypts and frames every queued message in FIFO
// order, handing the bytes to the writer goroutine. ClientKey
// handshake replies go out unencrypted; any other message is dropped
// with a log line if encryption fails.
func (c *Conn) flush() {
	for _, msg := range c.outgoing {
		data, err := packet.Encode(msg)
		if err != nil {
			slog.Error("encoding outbound message", "conn", c.id, "kind", msg.Kind(), "error", err)
			continue
		}
		if msg.Kind() != packet.KindClientKey {
			data, err = c.session.Encrypt(data)
			if err != nil {
				slog.Error("encrypting outbound message", "conn", c.id, "kind", msg.Kind(), "error", err)
				continue
			}
		}
		var frame bytes.Buffer
		if err := protocol.WriteFrame(&frame, data); err != nil {
			slog.Error("framing outbound message", "conn", c.id, "error", err)
			continue
		}
		if err := c.send(frame.Bytes()); err != nil {
			break
		}
	}
	c.outgoing = c.outgoing[:0]
}

// send queues a framed packet for async delivery. Non-blocking: a
// full queue means a slow client, which gets disconnected.
func (c *Conn) send(frame []byte) error {
	select {
	case c.sendCh <- frame:
		return nil
	default:
		slog.Warn("send queue full, disconnecting slow client", "conn", c.id, "ip", c.ip)
		c.CloseAsync()
		return fmt.Errorf("send queue full")
	}
}

// writePump is the dedicated writer goroutine: it drains sendCh to
// the socket with a per-write deadline.
func (c *Conn) writePump() {
	for {
		select {
		case frame := <-c.sendCh:
			if err := c.conn.SetWriteDeadline(time.Now().Add(defaultWriteTimeout)); err != nil {
				slog.Warn("set write deadline failed", "conn", c.id, "error", err)
				c.closed.Store(true)
				return
			}
			if _, err := c.conn.Write(frame); err != nil {
				slog.Warn("write failed", "conn", c.id, "error", err)
				c.closed.Store(true)
				return
			}
		case <-c.closeCh:
			return
		}
	}
}

// CloseAsync signals the writer goroutine to stop. Safe to call more
// than once.
func (c *Conn) CloseAsync() {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.closeCh)
	})
}

// Close tears down the transport.
func (c *Conn) Close() error {
	c.CloseAsync()
	return c.conn.Close()
}
