package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/soyeahso/agentclick/internal/hooks"
	"github.com/soyeahso/agentclick/internal/logging"
)

// ErrClientClosed is returned when queueing to a closed subscriber.
var ErrClientClosed = errors.New("client connection closed")

var errSlowClient = errors.New("client send queue full")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	sendQueue  = 64
)

// Client is one /ws subscriber. Frames are queued and written by a single
// pump goroutine; a subscriber that lets its queue fill is disconnected.
type Client struct {
	ConnID      string
	Remote      string
	ConnectedAt time.Time

	conn *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
	log  *logging.Logger
}

func newClient(conn *websocket.Conn, remote string, log *logging.Logger) *Client {
	id := uuid.NewString()
	return &Client{
		ConnID:      id,
		Remote:      remote,
		ConnectedAt: time.Now(),
		conn:        conn,
		send:        make(chan Frame, sendQueue),
		done:        make(chan struct{}),
		log:         log.With("connId", id),
	}
}

func (c *Client) enqueue(f Frame) error {
	select {
	case <-c.done:
		return ErrClientClosed
	default:
	}
	select {
	case c.send <- f:
		return nil
	case <-c.done:
		return ErrClientClosed
	default:
		c.log.Warn().Msg("dropping slow websocket client")
		c.Close()
		return errSlowClient
	}
}

// writePump owns every write on the connection and closes it on exit.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case f := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(f); err != nil {
				c.log.Debug().Err(err).Msg("websocket write failed")
				c.Close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "")
			c.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
			return
		}
	}
}

// readFrames decodes request frames until the peer goes away. Non-request
// frames are ignored.
func (c *Client) readFrames(limit int64, handle func(Frame)) error {
	c.conn.SetReadLimit(limit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		var f Frame
		if err := c.conn.ReadJSON(&f); err != nil {
			return err
		}
		if f.Type == FrameTypeRequest {
			handle(f)
		}
	}
}

// Close stops the write pump, which sends a close frame and releases the
// connection. Safe to call repeatedly.
func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// ClientRegistry tracks live subscribers by connection id.
type ClientRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
	log     *logging.Logger
}

func newClientRegistry(log *logging.Logger) *ClientRegistry {
	return &ClientRegistry{clients: make(map[string]*Client), log: log}
}

func (r *ClientRegistry) add(c *Client) {
	r.mu.Lock()
	r.clients[c.ConnID] = c
	n := len(r.clients)
	r.mu.Unlock()
	r.log.Info().Str("connId", c.ConnID).Str("remote", c.Remote).Int("clients", n).Msg("websocket client connected")
}

func (r *ClientRegistry) remove(c *Client) {
	r.mu.Lock()
	_, ok := r.clients[c.ConnID]
	delete(r.clients, c.ConnID)
	r.mu.Unlock()
	if ok {
		r.log.Info().Str("connId", c.ConnID).Dur("connected", time.Since(c.ConnectedAt)).Msg("websocket client disconnected")
	}
}

// Count returns the number of live subscribers.
func (r *ClientRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

func (r *ClientRegistry) snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Client, 0, len(r.clients))
	for _, c := range r.clients {
		out = append(out, c)
	}
	return out
}

// broadcast pushes a bus event to every subscriber.
func (r *ClientRegistry) broadcast(p hooks.Payload) {
	clients := r.snapshot()
	if len(clients) == 0 {
		return
	}
	f, err := eventFrame(p.Event, p.Seq, p.Data)
	if err != nil {
		r.log.Warn().Err(err).Str("event", p.Event).Msg("encoding event failed")
		return
	}
	for _, c := range clients {
		if err := c.enqueue(f); err != nil && !errors.Is(err, ErrClientClosed) {
			r.log.Debug().Err(err).Str("connId", c.ConnID).Msg("broadcast skipped client")
		}
	}
}

func (r *ClientRegistry) closeAll() {
	for _, c := range r.snapshot() {
		c.Close()
	}
}
