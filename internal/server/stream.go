package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/sessiond-dev/sessiond/internal/session"
)

// changeStream is the long-lived push channel. One connected frame opens
// the stream; session and index updates plus keep-alive pings follow until
// the client goes away. A client that stops reading is dropped by the hub
// without blocking anyone else.
func (s *Server) changeStream(c echo.Context) error {
	w := c.Response()
	w.Header().Set(echo.HeaderContentType, "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id, ch := s.hub.Subscribe()
	defer s.hub.Unsubscribe(id)

	if err := writeFrame(w, session.ChangeEvent{Kind: session.EventConnected}); err != nil {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-ch:
			if !ok {
				return nil
			}
			if err := writeFrame(w, ev); err != nil {
				return nil
			}
		}
	}
}

func writeFrame(w *echo.Response, ev session.ChangeEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	w.Flush()
	return nil
}
