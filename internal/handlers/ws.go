package handlers

import (
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/surajs41/RideEasy-Rental/internal/changefeed"
	"github.com/surajs41/RideEasy-Rental/internal/models"
	"github.com/surajs41/RideEasy-Rental/internal/types"
	"github.com/surajs41/RideEasy-Rental/internal/utils"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
)

func (h *Handler) upgrader() websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			// non-browser clients send no origin
			if origin == "" {
				return true
			}
			for _, allowed := range h.Origins {
				if origin == allowed {
					return true
				}
			}
			return false
		},
	}
}

// NotificationSocket streams every notification emitted to ?audience= while
// the connection is open. The subscription is registered before the
// "connected" frame is written, so a client that fetches after receiving it
// misses nothing.
func (h *Handler) NotificationSocket(c *gin.Context) {
	user, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	audience := c.Query("audience")
	if audience == "" {
		audience = user.ID
	}

	if !utils.CanAccessAudience(user, audience) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not allowed to subscribe to this audience"})
		return
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := h.Broker.Subscribe(audience)
	label := "notifications/" + audience

	defer func() {
		sub.Close()
		conn.Close()
		log.Printf("WebSocket connection closed for %s", label)
	}()

	if !hello(conn, types.SocketMessage{
		Type:     types.MessageConnected,
		Message:  "WebSocket connection established",
		Audience: audience,
	}) {
		return
	}

	stream(conn, label, sub.Notifications(), func(n models.Notification) types.SocketMessage {
		return types.SocketMessage{Type: types.MessageNotification, Audience: n.Audience, Notification: &n}
	})
}

// BookingSocket streams booking row changes: the caller's own bookings, or
// every booking for admins.
func (h *Handler) BookingSocket(c *gin.Context) {
	user, err := utils.GetCurrentUser(c)

	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	scope := changefeed.UserBookings(user.ID)
	if user.IsAdmin() {
		scope = changefeed.AllBookings()
	}

	upgrader := h.upgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	sub := h.Feed.Subscribe(scope)
	label := "bookings/" + user.ID

	defer func() {
		sub.Close()
		conn.Close()
		log.Printf("WebSocket connection closed for %s", label)
	}()

	if !hello(conn, types.SocketMessage{
		Type:    types.MessageConnected,
		Message: "WebSocket connection established",
	}) {
		return
	}

	stream(conn, label, sub.Events(), func(ch changefeed.Change) types.SocketMessage {
		return types.SocketMessage{Type: types.MessageChange, Change: &ch}
	})
}

func hello(conn *websocket.Conn, msg types.SocketMessage) bool {
	conn.SetReadLimit(maxMessageSize)
	if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.Printf("Failed to set initial read deadline: %v", err)
		return false
	}
	conn.SetPongHandler(func(string) error {
		if err := conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			log.Printf("Failed to set read deadline in pong handler: %v", err)
		}
		return nil
	})

	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		log.Printf("Failed to set write deadline for welcome message: %v", err)
		return false
	}

	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Failed to send welcome message: %v", err)
		return false
	}

	return true
}

// stream is the write pump. It owns every write after the welcome message;
// a reader goroutine only services control frames and notices disconnects.
func stream[T any](conn *websocket.Conn, label string, events <-chan T, wrap func(T) types.SocketMessage) {
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WebSocket error for %s: %v", label, err)
				}
				return
			}
			if messageType == websocket.TextMessage {
				log.Printf("Received message from client on %s: %s", label, string(message))
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set write deadline for %s: %v", label, err)
				return
			}
			if !ok {
				// dropped for falling behind, the client reconnects and catches up
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscription dropped"))
				return
			}
			if err := conn.WriteJSON(wrap(ev)); err != nil {
				log.Printf("Failed to deliver to %s: %v", label, err)
				return
			}
		case <-ticker.C:
			if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Printf("Failed to set write deadline for %s: %v", label, err)
				return
			}
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.Printf("Ping failed for %s: %v", label, err)
				return
			}
		}
	}
}
