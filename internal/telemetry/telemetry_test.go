/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type collector struct {
	mu      sync.Mutex
	batches []batch
	crashes []string
	session string
}

func (c *collector) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		var b batch
		if err := json.NewDecoder(r.Body).Decode(&b); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		c.mu.Lock()
		c.batches = append(c.batches, b)
		c.session = r.Header.Get("X-Scenewriter-Session")
		c.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		c.mu.Lock()
		c.crashes = append(c.crashes, string(body))
		c.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func (c *collector) events() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, b := range c.batches {
		out = append(out, b.Events...)
	}
	return out
}

func TestClient_FlushSendsBatch(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", Timeout: 2 * time.Second, Interval: time.Hour})
	defer c.Close()

	c.Event("export", map[string]any{"format": "docx", "scenes": 3})
	c.Event("export", map[string]any{"format": "pdf", "scenes": 1})
	c.Flush(context.Background())

	evs := col.events()
	if len(evs) != 2 {
		t.Fatalf("want 2 events, got %d", len(evs))
	}
	col.mu.Lock()
	nb, header := len(col.batches), col.session
	col.mu.Unlock()
	if nb != 1 {
		t.Fatalf("want one batch, got %d", nb)
	}
	ev := evs[0]
	if ev.Name != "export" || ev.Props["format"] != "docx" || ev.Time.IsZero() {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Session == "" || ev.Session != c.Session() || header != c.Session() {
		t.Fatalf("session not propagated: event=%q header=%q", ev.Session, header)
	}
}

func TestClient_BatchSizeTriggersSend(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", BatchSize: 2, Interval: time.Hour})

	for i := 0; i < 4; i++ {
		c.Event("render", nil)
	}
	c.Close()
	if n := len(col.events()); n != 4 {
		t.Fatalf("want 4 events after close, got %d", n)
	}
}

func TestClient_UploadCrash(t *testing.T) {
	var col collector
	srv := col.server(t)
	c := New(Config{OptIn: true, CrashURL: srv.URL + "/crash"})
	defer c.Close()

	c.UploadCrash([]byte("STACKTRACE"))
	col.mu.Lock()
	defer col.mu.Unlock()
	if len(col.crashes) != 1 || col.crashes[0] != "STACKTRACE" {
		t.Fatalf("crash not uploaded: %v", col.crashes)
	}
}

func TestClient_DisabledSendsNothing(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer srv.Close()

	c := New(Config{OptIn: false, EventsURL: srv.URL, CrashURL: srv.URL})
	if c.Enabled() {
		t.Fatalf("expected disabled client")
	}
	c.Event("ignored", nil)
	c.UploadCrash([]byte("ignored"))
	c.Close()

	c2 := New(Config{OptIn: true, EventsURL: srv.URL})
	c2.Event("", nil)
	c2.Flush(nil)
	c2.Close()

	if n := atomic.LoadInt32(&hits); n != 0 {
		t.Fatalf("expected no requests, got %d", n)
	}
}

func TestClient_SendErrorsAreSwallowed(t *testing.T) {
	c := New(Config{
		OptIn:        true,
		EventsURL:    "http://127.0.0.1:1/events",
		CrashURL:     "http://127.0.0.1:1/crash",
		Timeout:      50 * time.Millisecond,
		DebugLogging: true,
	})
	c.Event("err", map[string]any{"a": 1})
	c.Flush(context.Background())
	c.UploadCrash([]byte("oops"))
	c.Close()
	c.Flush(context.Background())
}

func TestFromEnv(t *testing.T) {
	t.Setenv("SW_TELEMETRY_OPT_IN", "yes")
	t.Setenv("SW_TELEMETRY_URL", "http://127.0.0.1:0")
	t.Setenv("SW_CRASH_UPLOAD_URL", "")
	t.Setenv("SW_TELEMETRY_TIMEOUT_MS", "100")

	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 100*time.Millisecond {
		t.Fatalf("FromEnv did not parse correctly: %+v", cfg)
	}
	NewDefault(cfg)
	t.Cleanup(func() { NewDefault(Config{}) })
	if !Enabled() {
		t.Fatalf("package client should be enabled")
	}
}

func TestFromEnvWithOptIn(t *testing.T) {
	t.Setenv("SW_TELEMETRY_OPT_IN", "")
	if FromEnvWithOptIn(false).OptIn {
		t.Fatalf("opt-in must default to false")
	}
	if !FromEnvWithOptIn(true).OptIn {
		t.Fatalf("persisted opt-in not honored")
	}
}
