// network/connection.go
package network

import (
	"errors"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var (
	ErrConnectionClosed = errors.New("connection closed")
	ErrSendBufferFull   = errors.New("send buffer full")
)

type Connection interface {
	// Send queues one event whose payload is already JSON encoded.
	Send(event string, data []byte) error
	Close() error
	RemoteAddr() net.Addr
	SetHeartbeat(interval time.Duration)
	ReadMessage() (*Message, error)
}

// WSConnection serializes all writes through a single pump goroutine so
// frames leave in the order Send was called.
type WSConnection struct {
	conn        *websocket.Conn
	send        chan []byte
	heartbeatCh chan time.Duration
	done        chan struct{}
	pumpDone    chan struct{}
	doneOnce    sync.Once
	closeOnce   sync.Once
	closeErr    error
}

func NewWSConnection(conn *websocket.Conn, sendBuffer int) *WSConnection {
	if sendBuffer < 1 {
		sendBuffer = 1
	}
	c := &WSConnection{
		conn:        conn,
		send:        make(chan []byte, sendBuffer),
		heartbeatCh: make(chan time.Duration, 1),
		done:        make(chan struct{}),
		pumpDone:    make(chan struct{}),
	}
	conn.SetReadLimit(maxMessageSize)
	go c.writePump()
	return c
}

// Send queues a frame for the write pump. A client whose buffer is full is
// too slow to keep an ordered view of the room, so the connection is closed
// and its reader sees the error.
func (c *WSConnection) Send(event string, data []byte) error {
	select {
	case <-c.done:
		return ErrConnectionClosed
	default:
	}

	frame := Frame(event, data)
	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return ErrConnectionClosed
	default:
		c.shutdown()
		c.conn.Close()
		return ErrSendBufferFull
	}
}

func (c *WSConnection) ReadMessage() (*Message, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

// SetHeartbeat makes the peer answer a ping every interval; a peer silent for
// two intervals fails its next read.
func (c *WSConnection) SetHeartbeat(interval time.Duration) {
	if interval <= 0 {
		return
	}
	c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(interval * 2))
	})
	select {
	case c.heartbeatCh <- interval:
	default:
	}
}

// Close flushes queued frames, sends a close frame and closes the socket.
// It is safe to call more than once.
func (c *WSConnection) Close() error {
	c.shutdown()
	<-c.pumpDone
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *WSConnection) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

func (c *WSConnection) shutdown() {
	c.doneOnce.Do(func() { close(c.done) })
}

func (c *WSConnection) write(messageType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

func (c *WSConnection) writePump() {
	defer close(c.pumpDone)

	var ticker *time.Ticker
	var ping <-chan time.Time
	defer func() {
		if ticker != nil {
			ticker.Stop()
		}
	}()

	for {
		select {
		case frame := <-c.send:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				c.shutdown()
				c.conn.Close()
				return
			}
		case interval := <-c.heartbeatCh:
			if ticker != nil {
				ticker.Stop()
			}
			ticker = time.NewTicker(interval)
			ping = ticker.C
		case <-ping:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				c.conn.Close()
				return
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.send:
					if err := c.write(websocket.TextMessage, frame); err != nil {
						return
					}
				default:
					c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
					return
				}
			}
		}
	}
}
