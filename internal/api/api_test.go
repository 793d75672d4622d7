/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/friendsincode/segue/internal/backend"
	"github.com/friendsincode/segue/internal/engine"
	"github.com/friendsincode/segue/internal/logbuffer"
	"github.com/friendsincode/segue/internal/models"
	"github.com/friendsincode/segue/internal/queue"
)

type apiRig struct {
	srv     *httptest.Server
	factory *backend.FakeFactory
	eng     *engine.Engine
	dir     string
}

func newAPIRig(t *testing.T) *apiRig {
	t.Helper()
	dir := t.TempDir()

	database, err := gorm.Open(sqlite.Open(filepath.Join(dir, "api.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	if err := database.AutoMigrate(&models.QueueEntry{}, &models.PlayHistory{}, &models.PlayerSettings{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	factory := backend.NewFakeFactory()
	eng, err := engine.New(factory.Factory(), engine.Options{Volume: 1, Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("create engine: %v", err)
	}
	t.Cleanup(func() { _ = eng.Close() })

	q := queue.New(database, eng, dir, zerolog.Nop())
	t.Cleanup(q.Close)

	a := New(eng, q, logbuffer.New(100), zerolog.Nop())
	r := chi.NewRouter()
	a.Routes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return &apiRig{srv: srv, factory: factory, eng: eng, dir: dir}
}

func (r *apiRig) post(t *testing.T, path string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(r.srv.URL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func (r *apiRig) get(t *testing.T, path string) *http.Response {
	t.Helper()
	resp, err := http.Get(r.srv.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(into); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.get(t, "/api/v1/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["state"] != "idle" {
		t.Errorf("state = %q, want idle", body["state"])
	}
}

func TestPlayAndStatus(t *testing.T) {
	rig := newAPIRig(t)

	resp := rig.post(t, "/api/v1/player/play", map[string]string{"path": "/media/a.mp3", "title": "A"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("play status = %d, want 202", resp.StatusCode)
	}
	resp.Body.Close()
	rig.factory.Instance(0).CompleteLoad(120 * time.Second)

	resp = rig.get(t, "/api/v1/player/status")
	var status map[string]any
	decode(t, resp, &status)
	if status["state"] != "playing" {
		t.Errorf("state = %v, want playing", status["state"])
	}
	track, ok := status["track"].(map[string]any)
	if !ok || track["title"] != "A" {
		t.Errorf("track = %v, want title A", status["track"])
	}
}

func TestPlayRequiresPath(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.post(t, "/api/v1/player/play", map[string]string{})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCrossfadeValidation(t *testing.T) {
	rig := newAPIRig(t)

	resp := rig.post(t, "/api/v1/player/crossfade", map[string]any{"enabled": true, "duration_seconds": 7})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	resp.Body.Close()

	resp = rig.post(t, "/api/v1/player/crossfade", map[string]any{"enabled": true, "duration_seconds": 21})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422 for invalid duration", resp.StatusCode)
	}
	// Rejected update leaves the old configuration in place.
	if got := rig.eng.Status().Crossfade.DurationSeconds; got != 7 {
		t.Errorf("crossfade duration = %d, want 7", got)
	}
}

func TestVolumeClampsThroughAPI(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.post(t, "/api/v1/player/volume", map[string]any{"level": 2.5})
	var status map[string]any
	decode(t, resp, &status)
	if status["volume"] != 1.0 {
		t.Errorf("volume = %v, want clamped 1.0", status["volume"])
	}
}

func TestUnknownDeviceRejected(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.post(t, "/api/v1/player/device", map[string]string{"device": "toaster"})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
}

func TestDevicesList(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.get(t, "/api/v1/player/devices")
	var body map[string][]string
	decode(t, resp, &body)
	if len(body["devices"]) == 0 {
		t.Error("expected at least one device")
	}
}

func TestSpectrumWithoutTrack(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.get(t, "/api/v1/player/spectrum")
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404 with no track", resp.StatusCode)
	}
}

func TestQueueLifecycle(t *testing.T) {
	rig := newAPIRig(t)
	path := filepath.Join(rig.dir, "song.mp3")
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := rig.post(t, "/api/v1/queue/", map[string]string{"path": path})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d, want 201", resp.StatusCode)
	}
	var entry map[string]any
	decode(t, resp, &entry)
	id, _ := entry["id"].(string)
	if id == "" {
		t.Fatal("entry id missing")
	}

	resp = rig.get(t, "/api/v1/queue/")
	var entries []map[string]any
	decode(t, resp, &entries)
	if len(entries) != 1 {
		t.Fatalf("queue length = %d, want 1", len(entries))
	}

	req, err := http.NewRequest(http.MethodDelete, rig.srv.URL+"/api/v1/queue/"+id, nil)
	if err != nil {
		t.Fatal(err)
	}
	delResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer delResp.Body.Close()
	if delResp.StatusCode != http.StatusOK {
		t.Fatalf("delete status = %d, want 200", delResp.StatusCode)
	}

	resp = rig.post(t, "/api/v1/queue/start", nil)
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("start on empty queue = %d, want 409", resp.StatusCode)
	}
}

func TestLogsEndpoint(t *testing.T) {
	rig := newAPIRig(t)
	resp := rig.get(t, "/api/v1/logs/stats")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var stats map[string]any
	decode(t, resp, &stats)
	if stats["capacity"] != 100.0 {
		t.Errorf("capacity = %v, want 100", stats["capacity"])
	}
}

func TestQueueAddOutsideMediaRoot(t *testing.T) {
	rig := newAPIRig(t)
	outside := filepath.Join(t.TempDir(), "elsewhere.mp3")
	if err := os.WriteFile(outside, []byte("media"), 0o644); err != nil {
		t.Fatal(err)
	}

	resp := rig.post(t, "/api/v1/queue/", map[string]string{"path": outside})
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", resp.StatusCode)
	}
	var body map[string]string
	decode(t, resp, &body)
	if body["error"] != "path_outside_media_root" {
		t.Errorf("error = %q, want path_outside_media_root", body["error"])
	}
}
