package gateway

import (
	"fmt"
	"sync/atomic"

	"github.com/gofiber/contrib/websocket"
	"go.uber.org/zap"

	"crashcore/internal/auth"
)

var connSeq uint64

func nextConnID() string {
	return fmt.Sprintf("conn-%d", atomic.AddUint64(&connSeq, 1))
}

// Handler builds the gofiber/contrib/websocket handler for a
// Dispatcher, grounded on the teacher's gameWebSocketHandler
// (internal/server/routes.go) but authenticating at connect (spec.md
// §4.6 "Connect") instead of trusting a query-string user_id, and
// dispatching through typed wire events instead of a raw
// map[string]interface{} switch.
func Handler(hub *Hub, dispatcher *Dispatcher, validator *auth.Validator, log *zap.Logger) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		token := conn.Query("token")
		identity, err := validator.Validate(token)
		if err != nil {
			log.Info("rejecting unauthenticated connection", zap.Error(err))
			conn.Close()
			return
		}

		connID := nextConnID()
		client := hub.Register(conn, connID, identity.UserID)
		dispatcher.HandleConnect(connID)

		defer func() {
			hub.Unregister(client)
			dispatcher.HandleDisconnect(connID)
		}()

		for {
			messageType, message, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if messageType != websocket.TextMessage {
				continue
			}
			if !dispatcher.Dispatch(connID, identity.UserID, identity.Username, message) {
				hub.SendTo(connID, Message{Event: "error", Payload: map[string]string{"message": "rate limit exceeded, closing connection"}})
				return
			}
		}
	}
}
