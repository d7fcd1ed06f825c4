package api

import (
	"github.com/coder/websocket"
	echo "github.com/labstack/echo/v5"
)

// wsHandler upgrades HTTP connections to WebSocket and streams wsbus
// events for the task given by the ?task_id= query parameter ("" streams
// every task's events).
func (s *Server) wsHandler(c *echo.Context) error {
	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return err
	}
	defer conn.CloseNow()

	ctx := c.Request().Context()
	id, events := s.bus.Subscribe(c.QueryParam("task_id"))
	defer s.bus.Unsubscribe(id)

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, open := <-events:
			if !open {
				return nil
			}
			frame := evt.MarshalForTransport()
			if frame == nil {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageText, frame); err != nil {
				return nil
			}
		}
	}
}
