package httpapi

import (
	"context"
	"net/http"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const wsWriteTimeout = 5 * time.Second

// handleActivityWS upgrades the request and streams the user's activity
// events until the peer disconnects or the store closes the feed. Slow
// peers time out on write rather than backing up the store.
func (s *Server) handleActivityWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream aborted")

	events, cancel := s.store.Subscribe(userID)
	defer cancel()

	// CloseRead fails the context when the peer goes away; the stream
	// is server-to-client only.
	ctx := conn.CloseRead(r.Context())
	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "feed closed")
				return
			}
			writeCtx, cancelWrite := context.WithTimeout(ctx, wsWriteTimeout)
			writeErr := wsjson.Write(writeCtx, conn, event)
			cancelWrite()
			if writeErr != nil {
				return
			}
		}
	}
}
