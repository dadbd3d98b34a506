package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Next and Send after the connection is gone.
var ErrClosed = errors.New("transport: connection closed")

// Conn is a client connection to a hub.
type Conn struct {
	ws      *websocket.Conn
	writeMu sync.Mutex

	incoming chan Envelope
	done     chan struct{}
	once     sync.Once

	errMu sync.Mutex
	err   error
}

// Dial connects to url and registers with role.
func Dial(ctx context.Context, url, role string) (*Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}

	c := &Conn{
		ws:       ws,
		incoming: make(chan Envelope, 16),
		done:     make(chan struct{}),
	}
	go c.readLoop()

	if role != "" {
		if err := c.Send(EventRegister, role); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Conn) readLoop() {
	defer close(c.incoming)
	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			c.shutdown(err)
			return
		}
		env, err := Decode(data)
		if err != nil {
			continue
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

// Next returns the next envelope from the server.
func (c *Conn) Next(ctx context.Context) (Envelope, error) {
	select {
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	case env, ok := <-c.incoming:
		if !ok {
			return Envelope{}, c.closeErr()
		}
		return env, nil
	}
}

// Send writes one event.
func (c *Conn) Send(event string, data any) error {
	msg, err := Encode(event, data)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	select {
	case <-c.done:
		return c.closeErr()
	default:
	}

	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.TextMessage, msg)
}

// Done is closed when the connection ends.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection.
func (c *Conn) Close() error {
	c.writeMu.Lock()
	c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	c.shutdown(ErrClosed)
	return c.ws.Close()
}

func (c *Conn) shutdown(err error) {
	c.once.Do(func() {
		c.errMu.Lock()
		c.err = err
		c.errMu.Unlock()
		close(c.done)
	})
}

func (c *Conn) closeErr() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil || websocket.IsCloseError(c.err, websocket.CloseNormalClosure) {
		return ErrClosed
	}
	return fmt.Errorf("%w: %v", ErrClosed, c.err)
}
