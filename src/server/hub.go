package server

import (
	"net/http"

	"market-viewer/src/models"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
// -----------------------------------------------------------------------------

// handleWebsockets is the main Hub loop
func (s *APIServer) handleWebsockets() {
	for {
		select {
		case <-s.stop:
			for client := range s.clients {
				s.drop(client)
			}
			return

		case client := <-s.register:
			s.clients[client] = struct{}{}
			s.connected.Add(1)
			// Send initial state on connect
			s.stateMutex.RLock()
			initial := *s.latestState
			s.stateMutex.RUnlock()
			initial.Type = "INITIAL"
			client.send <- &initial

		case client := <-s.unregister:
			if _, ok := s.clients[client]; ok {
				s.drop(client)
			}

		case message := <-s.broadcast:
			s.stateMutex.Lock()
			s.latestState = message
			s.stateMutex.Unlock()

			for client := range s.clients {
				select {
				case client.send <- message:
				default:
					// Client too slow, disconnect to prevent Hub blocking
					s.drop(client)
				}
			}
		}
	}
}

func (s *APIServer) drop(client *Client) {
	delete(s.clients, client)
	close(client.send)
	s.connected.Add(-1)
}

// -----------------------------------------------------------------------------
// Data Exchange Interface Implementation
// -----------------------------------------------------------------------------

// Broadcast queues a view snapshot for every dashboard client. It never blocks;
// when the queue is full the snapshot is dropped since a newer one follows.
func (s *APIServer) Broadcast(payload interface{}) {
	msg, ok := payload.(*models.MViewMessage)
	if !ok {
		s.Logger.Warning("Broadcast expected *models.MViewMessage, got %T", payload)
		return
	}
	msg.Type = "UPDATE"

	select {
	case s.broadcast <- msg:
	default:
		s.Logger.Debug("Broadcast queue full, dropping snapshot %d", msg.Timestamp)
	}
}

// -----------------------------------------------------------------------------

// LatestState returns the last snapshot seen by the hub.
func (s *APIServer) LatestState() models.MViewMessage {
	s.stateMutex.RLock()
	defer s.stateMutex.RUnlock()
	return *s.latestState
}

// -----------------------------------------------------------------------------
// WebSocket Handlers
// -----------------------------------------------------------------------------

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// -----------------------------------------------------------------------------

func (s *APIServer) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.Logger.Info("Failed to upgrade websocket: %v", err)
		return
	}

	client := &Client{
		hub:  s,
		conn: conn,
		// Buffered channel to prevent blocking the Hub loop
		send: make(chan *models.MViewMessage, 64),
	}

	select {
	case s.register <- client:
	case <-s.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
