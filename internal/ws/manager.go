package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ordmarket/sale-service/internal/platform/logger"
)

// Manager tracks which clients watch which item and fans sale-event
// payloads out to them.
type Manager struct {
	// itemID -> *sync.Map of *Client
	subscribers sync.Map

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	log *logger.Logger
}

// Client is one WebSocket connection watching one item.
type Client struct {
	ID     string
	ItemID string
	Conn   *websocket.Conn
	Send   chan []byte
}

type broadcastMessage struct {
	itemID  string
	payload []byte
}

func NewManager(log *logger.Logger) *Manager {
	return &Manager{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
		log:        log,
	}
}

// Run owns the connection lifecycle. Run it in a goroutine.
func (m *Manager) Run() {
	for {
		select {
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		case message := <-m.broadcast:
			m.broadcastToItem(message.itemID, message.payload)
		}
	}
}

// RegisterClient adds a client to the manager.
func (m *Manager) RegisterClient(client *Client) {
	m.register <- client
}

// UnregisterClient removes a client from the manager.
func (m *Manager) UnregisterClient(client *Client) {
	m.unregister <- client
}

// Broadcast sends a payload to every client watching the item.
func (m *Manager) Broadcast(itemID string, payload []byte) {
	m.broadcast <- &broadcastMessage{itemID: itemID, payload: payload}
}

func (m *Manager) registerClient(client *Client) {
	subscribers, _ := m.subscribers.LoadOrStore(client.ItemID, &sync.Map{})
	subscribers.(*sync.Map).Store(client, true)

	m.log.Debug("client subscribed", "client_id", client.ID, "item_id", client.ItemID)

	go client.writePump()
}

func (m *Manager) unregisterClient(client *Client) {
	if subscribers, ok := m.subscribers.Load(client.ItemID); ok {
		subscribers.(*sync.Map).Delete(client)
	}

	close(client.Send)
	client.Conn.Close()

	m.log.Debug("client unsubscribed", "client_id", client.ID, "item_id", client.ItemID)
}

func (m *Manager) broadcastToItem(itemID string, payload []byte) {
	subscribers, ok := m.subscribers.Load(itemID)
	if !ok {
		return
	}
	var evicted []*Client
	subscribers.(*sync.Map).Range(func(key, _ interface{}) bool {
		client := key.(*Client)
		select {
		case client.Send <- payload:
		default:
			// Send buffer full; drop the slow client so it cannot
			// stall the rest.
			evicted = append(evicted, client)
		}
		return true
	})
	// Already on the Run goroutine here, so unregister directly; sending
	// on m.unregister would block against its only receiver.
	for _, client := range evicted {
		m.unregisterClient(client)
	}
}

// SubscriberCount returns the number of clients watching an item.
func (m *Manager) SubscriberCount(itemID string) int {
	subscribers, ok := m.subscribers.Load(itemID)
	if !ok {
		return 0
	}
	count := 0
	subscribers.(*sync.Map).Range(func(_, _ interface{}) bool {
		count++
		return true
	})
	return count
}

const (
	pingInterval  = 54 * time.Second
	writeDeadline = 10 * time.Second
	readDeadline  = 60 * time.Second
)

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) readPump(unregister chan *Client) {
	defer func() {
		unregister <- c
	}()

	c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	// Clients only listen; reads exist to drive pong handling and to
	// notice disconnects.
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// StartReadPump starts the read pump for this client.
func (c *Client) StartReadPump(unregister chan *Client) {
	go c.readPump(unregister)
}
