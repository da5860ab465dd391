package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout = 5 * time.Second
	maxFrameSize = 4096
)

// client wraps one websocket connection. gorilla/websocket allows a single
// concurrent writer per connection, hence the mutex.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, payload)
}

// Hub tracks live websocket connections per account and implements
// channel.RealtimeSender. An account may hold several connections (multiple
// tabs or devices); a payload goes to all of them.
type Hub struct {
	log      *logrus.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[int64]map[*client]struct{}
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		log: log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  maxFrameSize,
			WriteBufferSize: maxFrameSize,
			// The HTTP layer has already authenticated the request.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[int64]map[*client]struct{}),
	}
}

// Serve upgrades the request and keeps the connection registered until the
// peer closes it. Blocks for the lifetime of the connection.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, accountID int64) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	cl := &client{conn: conn}
	h.register(accountID, cl)
	h.log.WithField("account_id", accountID).Debug("Realtime connection opened")

	defer func() {
		h.unregister(accountID, cl)
		conn.Close()
		h.log.WithField("account_id", accountID).Debug("Realtime connection closed")
	}()

	conn.SetReadLimit(maxFrameSize)
	for {
		// Inbound frames are not part of the protocol; the read loop only
		// notices disconnects.
		if _, _, err := conn.ReadMessage(); err != nil {
			return nil
		}
	}
}

func (h *Hub) register(accountID int64, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[accountID] == nil {
		h.clients[accountID] = make(map[*client]struct{})
	}
	h.clients[accountID][cl] = struct{}{}
}

func (h *Hub) unregister(accountID int64, cl *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if set, ok := h.clients[accountID]; ok {
		delete(set, cl)
		if len(set) == 0 {
			delete(h.clients, accountID)
		}
	}
}

// SendToAccount pushes a JSON payload to every live connection of the
// account. Returns false when the account has no connection or no write
// succeeded; that is a normal outcome, not an error.
func (h *Hub) SendToAccount(accountID int64, payload any) bool {
	data, err := json.Marshal(payload)
	if err != nil {
		h.log.WithError(err).Warn("Failed to marshal realtime payload")
		return false
	}

	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients[accountID]))
	for cl := range h.clients[accountID] {
		targets = append(targets, cl)
	}
	h.mu.RUnlock()

	delivered := false
	for _, cl := range targets {
		if err := cl.write(data); err != nil {
			h.log.WithError(err).WithField("account_id", accountID).Debug("Realtime write failed")
			continue
		}
		delivered = true
	}
	return delivered
}

// ConnectedAccounts reports how many accounts currently hold at least one
// connection. Exposed for operational visibility.
func (h *Hub) ConnectedAccounts() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
