package lndboard

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/ellemouton/lndboard/broadcast"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,

	// The feed is public and read only.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWebsocket streams hub events to the connection until either side
// goes away. Anything the client sends is discarded.
func (s *Server) handleWebsocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already replied to the client.
		s.log.WithError(err).Debug("websocket upgrade failed")
		return nil
	}

	sub := s.hub.Subscribe()
	log := s.log.WithFields(logrus.Fields{
		"subscriber": sub.ID(),
		"remote_ip":  c.RealIP(),
	})
	log.Debug("websocket connected")

	go s.readPump(conn, sub)
	s.writePump(conn, sub, log)

	log.Debug("websocket disconnected")

	return nil
}

func (s *Server) readPump(conn *websocket.Conn, sub *broadcast.Subscriber) {
	defer s.hub.Unsubscribe(sub)

	conn.SetReadLimit(maxMessageSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (s *Server) writePump(conn *websocket.Conn, sub *broadcast.Subscriber,
	log *logrus.Entry) {

	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.hub.Unsubscribe(sub)
		conn.Close()
	}()

	for {
		select {
		case e, ok := <-sub.Events():
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))

			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(
						websocket.CloseNormalClosure, "",
					))
				return
			}

			if err := conn.WriteJSON(e); err != nil {
				log.WithError(err).Debug("failure writing event")
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
