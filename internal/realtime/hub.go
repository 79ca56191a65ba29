// Package realtime pushes group board changes to connected browsers.
package realtime

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"taskboard/internal/domain/models"

	"github.com/gorilla/websocket"
)

const (
	EventTaskCreated   = "task_created"
	EventTaskUpdated   = "task_updated"
	EventTaskDeleted   = "task_deleted"
	EventStatusChanged = "task_status_changed"
	EventGroupDeleted  = "group_deleted"

	writeWait = 5 * time.Second
)

type Event struct {
	Event   string            `json:"event"`
	GroupID string            `json:"groupId"`
	TaskID  string            `json:"taskId,omitempty"`
	Task    *models.GroupTask `json:"task,omitempty"`
}

// Subscriber identifies who holds a board connection. Expires is the
// expiry of the token the connection was opened with.
type Subscriber struct {
	UserID  string
	TokenID string
	Expires time.Time
}

// Hub tracks websocket subscribers per group.
type Hub struct {
	connections map[string]map[*websocket.Conn]Subscriber
	mutex       sync.Mutex
	now         func() time.Time
}

func NewHub() *Hub {
	return &Hub{
		connections: make(map[string]map[*websocket.Conn]Subscriber),
		now:         time.Now,
	}
}

func (h *Hub) Subscribe(groupID string, conn *websocket.Conn, sub Subscriber) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if h.connections[groupID] == nil {
		h.connections[groupID] = make(map[*websocket.Conn]Subscriber)
	}
	h.connections[groupID][conn] = sub
}

func (h *Hub) Unsubscribe(groupID string, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.remove(groupID, conn)
}

func (h *Hub) remove(groupID string, conn *websocket.Conn) {
	conns, ok := h.connections[groupID]
	if !ok {
		return
	}
	if _, ok := conns[conn]; ok {
		delete(conns, conn)
		conn.Close()
	}
	if len(conns) == 0 {
		delete(h.connections, groupID)
	}
}

func (h *Hub) Subscribers(groupID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.connections[groupID])
}

// Prune closes the group's connections whose user no longer passes keep.
// It returns how many were closed.
func (h *Hub) Prune(groupID string, keep func(userID string) bool) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	closed := 0
	for conn, sub := range h.connections[groupID] {
		if !keep(sub.UserID) {
			h.remove(groupID, conn)
			closed++
		}
	}
	return closed
}

// DropToken closes every connection opened with the given token.
func (h *Hub) DropToken(tokenID string) int {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	closed := 0
	for groupID, conns := range h.connections {
		for conn, sub := range conns {
			if sub.TokenID == tokenID {
				h.remove(groupID, conn)
				closed++
			}
		}
	}
	return closed
}

// Broadcast sends the event to every subscriber of the group. Connections
// whose token has expired or that fail to accept the write are dropped.
func (h *Hub) Broadcast(ev Event) {
	message, err := json.Marshal(ev)
	if err != nil {
		log.Printf("[ERROR] Failed to marshal board event: %v", err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	now := h.now()
	for conn, sub := range h.connections[ev.GroupID] {
		if !sub.Expires.IsZero() && !now.Before(sub.Expires) {
			h.remove(ev.GroupID, conn)
			continue
		}
		_ = conn.SetWriteDeadline(now.Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, message); err != nil {
			log.Printf("[WARN] Dropping board subscriber of group %s: %v", ev.GroupID, err)
			h.remove(ev.GroupID, conn)
		}
	}

	if ev.Event == EventGroupDeleted {
		for conn := range h.connections[ev.GroupID] {
			h.remove(ev.GroupID, conn)
		}
	}
}
