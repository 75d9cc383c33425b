package ws

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"
)

// subscriberBuffer bounds how many change events can queue per subscription
// before new ones are dropped.
const subscriberBuffer = 16

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// Client is one connected websocket. Writes are serialized because the hub
// loop and terminal watchers both push to it.
type Client struct {
	UserID string
	conn   Conn
	mu     sync.Mutex
}

func NewClient(conn Conn, userID string) *Client {
	return &Client{conn: conn, UserID: userID}
}

func (c *Client) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Close()
}

// Hub keeps the websocket clients and the change-feed subscriptions. All map
// access happens on the Run goroutine.
type Hub struct {
	clients map[*Client]bool
	subs    map[*Subscription]bool

	register    chan *Client
	unregister  chan *Client
	subscribe   chan *Subscription
	unsubscribe chan *Subscription
	broadcast   chan []byte
	events      chan ChangeEvent
	done        chan struct{}

	log *zap.Logger
}

func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		clients:     make(map[*Client]bool),
		subs:        make(map[*Subscription]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		subscribe:   make(chan *Subscription),
		unsubscribe: make(chan *Subscription),
		broadcast:   make(chan []byte, 64),
		events:      make(chan ChangeEvent, 256),
		done:        make(chan struct{}),
		log:         log,
	}
}

// Run owns the hub state until ctx is cancelled. On exit every subscription
// channel is closed so watchers can return.
func (h *Hub) Run(ctx context.Context) {
	defer func() {
		close(h.done)
		for sub := range h.subs {
			close(sub.ch)
			delete(h.subs, sub)
		}
		for c := range h.clients {
			c.Close()
			delete(h.clients, c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case c := <-h.register:
			h.clients[c] = true
			h.log.Debug("ws client connected", zap.String("user_id", c.UserID), zap.Int("clients", len(h.clients)))

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.Close()
			}

		case sub := <-h.subscribe:
			h.subs[sub] = true

		case sub := <-h.unsubscribe:
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}

		case message := <-h.broadcast:
			for c := range h.clients {
				if err := c.Send(message); err != nil {
					h.log.Warn("ws write failed, dropping client", zap.Error(err))
					c.Close()
					delete(h.clients, c)
				}
			}

		case ev := <-h.events:
			for sub := range h.subs {
				if !sub.topic.Matches(ev) {
					continue
				}
				select {
				case sub.ch <- ev:
				default:
					h.log.Warn("change event dropped, subscriber is behind",
						zap.String("table", ev.Table), zap.String("session_id", ev.SessionID))
				}
			}
		}
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// Broadcast queues a raw message for every connected client.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- msg:
	case <-h.done:
	}
}

// BroadcastJSON marshals payload and broadcasts it.
func (h *Hub) BroadcastJSON(payload interface{}) {
	msg, err := json.Marshal(payload)
	if err != nil {
		h.log.Error("marshal broadcast payload", zap.Error(err))
		return
	}
	h.Broadcast(msg)
}

// Publish hands a change event to matching subscriptions.
func (h *Hub) Publish(ev ChangeEvent) {
	select {
	case h.events <- ev:
	case <-h.done:
	}
}

// Subscribe registers interest in a topic. The caller must Close the
// returned subscription on every exit path.
func (h *Hub) Subscribe(topic Topic) *Subscription {
	sub := &Subscription{
		topic: topic,
		ch:    make(chan ChangeEvent, subscriberBuffer),
		hub:   h,
	}
	sub.C = sub.ch
	select {
	case h.subscribe <- sub:
	case <-h.done:
		close(sub.ch)
	}
	return sub
}

// Subscription delivers change events for one topic on C. C is closed after
// Close or when the hub stops.
type Subscription struct {
	C     <-chan ChangeEvent
	ch    chan ChangeEvent
	topic Topic
	hub   *Hub
	once  sync.Once
}

func (s *Subscription) Topic() Topic {
	return s.topic
}

// Close is idempotent.
func (s *Subscription) Close() {
	s.once.Do(func() {
		select {
		case s.hub.unsubscribe <- s:
		case <-s.hub.done:
		}
	})
}
