/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"context"
	"strings"
	"testing"
	"time"

	ws "nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/friendsincode/segue/internal/engine"
)

func dialEvents(t *testing.T, rig *apiRig) *ws.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)
	url := strings.Replace(rig.srv.URL, "http", "ws", 1) + "/api/v1/player/events"
	conn, _, err := ws.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial event stream: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close(ws.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var msg map[string]any
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return msg
}

func TestEventStreamSnapshotFirst(t *testing.T) {
	rig := newAPIRig(t)
	conn := dialEvents(t, rig)

	first := readEvent(t, conn)
	if first["type"] != "snapshot" {
		t.Fatalf("first message type = %v, want snapshot", first["type"])
	}
	status, ok := first["status"].(map[string]any)
	if !ok || status["state"] != "idle" {
		t.Errorf("snapshot status = %v, want idle state", first["status"])
	}
}

func TestEventStreamDeliversInOrder(t *testing.T) {
	rig := newAPIRig(t)
	conn := dialEvents(t, rig)
	readEvent(t, conn) // snapshot

	track := &engine.Track{ID: "t1", Path: "/media/a.mp3", Title: "A", Type: engine.MediaAudio}
	if err := rig.eng.Play(track); err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	rig.factory.Instance(0).CompleteLoad(90 * time.Second)
	rig.factory.Instance(0).EmitEnd()

	// Collect everything up to the end-of-track notification, skipping
	// position updates.
	var got []string
	for len(got) == 0 || got[len(got)-1] != "media_ended" {
		msg := readEvent(t, conn)
		switch msg["type"] {
		case "time_changed":
			continue
		case "state_changed":
			got = append(got, "state:"+msg["new_state"].(string))
		default:
			got = append(got, msg["type"].(string))
		}
	}

	want := []string{"state:loading", "state:playing", "state:stopped", "media_ended"}
	if len(got) != len(want) {
		t.Fatalf("event sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event sequence = %v, want %v", got, want)
		}
	}
}

func TestEventForwardOverflowCancels(t *testing.T) {
	events := make(chan engine.Event, 1)
	canceled := false
	fn := forwardEvent(events, func() { canceled = true })

	fn(engine.Event{Type: engine.EventTimeChanged})
	if canceled {
		t.Fatal("cancel fired while the queue had room")
	}

	fn(engine.Event{Type: engine.EventTimeChanged})
	if !canceled {
		t.Error("full event queue must disconnect the client")
	}
	if len(events) != 1 {
		t.Errorf("queued events = %d, want 1", len(events))
	}
}
