/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"net/http"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/segue/internal/engine"
)

// eventStreamBuffer bounds how far a websocket client may fall behind
// before it is disconnected.
const eventStreamBuffer = 256

// forwardEvent returns a listener that queues events for the socket
// writer. The engine dispatcher must never block on a slow client, so
// a full queue cancels the connection instead of waiting.
func forwardEvent(events chan<- engine.Event, cancel context.CancelFunc) engine.Listener {
	return func(ev engine.Event) {
		select {
		case events <- ev:
		default:
			cancel()
		}
	}
}

// handleEvents streams engine events over a WebSocket. The first
// message is the current status snapshot, then every engine event
// follows in order.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		a.logger.Error().Err(err).Msg("websocket accept failed")
		return
	}
	defer conn.Close(ws.StatusInternalError, "server error")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := wsjson.Write(ctx, conn, map[string]any{
		"type":   "snapshot",
		"status": a.statusPayload(),
	}); err != nil {
		return
	}

	events := make(chan engine.Event, eventStreamBuffer)
	unsubscribe := a.eng.Subscribe(forwardEvent(events, cancel))
	defer unsubscribe()

	for {
		select {
		case <-ctx.Done():
			conn.Close(ws.StatusNormalClosure, "client disconnected")
			return
		case ev := <-events:
			if err := wsjson.Write(ctx, conn, ev); err != nil {
				a.logger.Debug().Err(err).Msg("websocket write failed, client disconnected")
				return
			}
		}
	}
}
