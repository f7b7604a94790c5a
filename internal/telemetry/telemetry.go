/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
//
// Nothing is sent unless the user opted in and an endpoint is configured.
// Events are queued, batched and posted in the background; a full queue drops
// events rather than slowing an export down.
//
// Environment variables (read by FromEnv):
//   - SW_TELEMETRY_OPT_IN: 1|true|yes|on enables events
//   - SW_TELEMETRY_URL: endpoint receiving {"events": [...]} batches
//   - SW_CRASH_UPLOAD_URL: endpoint receiving plain-text crash reports
//   - SW_TELEMETRY_TIMEOUT_MS: request timeout, default 1500
//   - SW_TELEMETRY_DEBUG: log send attempts
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	applog "scenewriter/internal/log"
	"scenewriter/internal/version"
)

const (
	defaultTimeout   = 1500 * time.Millisecond
	defaultBatchSize = 16
	defaultInterval  = 2 * time.Second
	queueSize        = 64
)

// Config controls the client. Zero BatchSize and Interval use defaults.
type Config struct {
	OptIn        bool
	EventsURL    string
	CrashURL     string
	Timeout      time.Duration
	BatchSize    int
	Interval     time.Duration
	DebugLogging bool
}

// FromEnv reads Config from SW_TELEMETRY_* variables.
func FromEnv() Config {
	cfg := Config{
		OptIn:        parseBool(os.Getenv("SW_TELEMETRY_OPT_IN")),
		EventsURL:    strings.TrimSpace(os.Getenv("SW_TELEMETRY_URL")),
		CrashURL:     strings.TrimSpace(os.Getenv("SW_CRASH_UPLOAD_URL")),
		Timeout:      defaultTimeout,
		DebugLogging: os.Getenv("SW_TELEMETRY_DEBUG") != "",
	}
	if ms, err := strconv.Atoi(strings.TrimSpace(os.Getenv("SW_TELEMETRY_TIMEOUT_MS"))); err == nil && ms > 0 {
		cfg.Timeout = time.Duration(ms) * time.Millisecond
	}
	return cfg
}

// FromEnvWithOptIn is FromEnv with the opt-in also honoring the persisted
// user preference.
func FromEnvWithOptIn(userOptIn bool) Config {
	cfg := FromEnv()
	cfg.OptIn = cfg.OptIn || userOptIn
	return cfg
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

// Event is one anonymous usage record. Props must not contain user content.
type Event struct {
	Name    string         `json:"name"`
	Session string         `json:"session"`
	Time    time.Time      `json:"ts"`
	Version string         `json:"version"`
	OS      string         `json:"os"`
	Arch    string         `json:"arch"`
	Props   map[string]any `json:"props,omitempty"`
}

type batch struct {
	Events []Event `json:"events"`
}

// Client queues events and posts them in batches from one goroutine.
type Client struct {
	cfg     Config
	session string
	log     *slog.Logger
	http    *http.Client
	q       chan Event
	flush   chan chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New starts a client. Call Close to stop it.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	c := &Client{
		cfg:     cfg,
		session: uuid.NewString(),
		log:     applog.WithComponent("telemetry"),
		http:    &http.Client{Timeout: cfg.Timeout},
		q:       make(chan Event, queueSize),
		flush:   make(chan chan struct{}),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go c.loop()
	return c
}

// Enabled reports whether events are sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Session returns the random id attached to this process's events.
func (c *Client) Session() string { return c.session }

// Event queues an event. It never blocks.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	ev := Event{
		Name:    name,
		Session: c.session,
		Time:    time.Now().UTC(),
		Version: version.String(),
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
	}
	if len(props) > 0 {
		ev.Props = make(map[string]any, len(props))
		for k, v := range props {
			ev.Props[k] = v
		}
	}
	select {
	case c.q <- ev:
	default:
	}
}

// Flush sends everything queued so far and waits until it was posted or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ack := make(chan struct{})
	select {
	case c.flush <- ack:
	case <-c.done:
		return
	case <-ctx.Done():
		return
	}
	select {
	case <-ack:
	case <-ctx.Done():
	}
}

// Close sends pending events and stops the client.
func (c *Client) Close() {
	if c == nil {
		return
	}
	c.once.Do(func() { close(c.stop) })
	<-c.done
}

func (c *Client) loop() {
	defer close(c.done)
	tick := time.NewTicker(c.cfg.Interval)
	defer tick.Stop()
	var pending []Event
	send := func() {
		if len(pending) > 0 {
			c.post(pending)
			pending = nil
		}
	}
	drain := func() {
		for {
			select {
			case ev := <-c.q:
				pending = append(pending, ev)
			default:
				return
			}
		}
	}
	for {
		select {
		case ev := <-c.q:
			pending = append(pending, ev)
			if len(pending) >= c.cfg.BatchSize {
				send()
			}
		case <-tick.C:
			send()
		case ack := <-c.flush:
			drain()
			send()
			close(ack)
		case <-c.stop:
			drain()
			send()
			return
		}
	}
}

func (c *Client) post(events []Event) {
	buf, err := json.Marshal(batch{Events: events})
	if err != nil {
		return
	}
	if err := c.postBody(c.cfg.EventsURL, "application/json", buf); err != nil {
		c.debug("telemetry send failed", slog.Int("events", len(events)), slog.Any("err", err))
		return
	}
	c.debug("telemetry batch sent", slog.Int("events", len(events)))
}

func (c *Client) postBody(url, contentType string, body []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("X-Scenewriter-Session", c.session)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) debug(msg string, attrs ...any) {
	if c.cfg.DebugLogging {
		c.log.Debug(msg, attrs...)
	}
}

// UploadCrash posts a crash report when the user opted in. It blocks for at
// most the configured timeout since the process is about to exit.
func (c *Client) UploadCrash(report []byte) {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return
	}
	if err := c.postBody(c.cfg.CrashURL, "text/plain; charset=utf-8", report); err != nil {
		c.debug("crash upload failed", slog.Any("err", err))
		return
	}
	c.debug("crash report uploaded")
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

func getDefault() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// NewDefault replaces the package client, closing the previous one.
func NewDefault(cfg Config) {
	defaultMu.Lock()
	prev := defaultClient
	defaultClient = New(cfg)
	defaultMu.Unlock()
	if prev != nil {
		prev.Close()
	}
}

// Enabled reports whether the package client sends events.
func Enabled() bool { return getDefault().Enabled() }

// Emit queues an event on the package client.
func Emit(name string, props map[string]any) { getDefault().Event(name, props) }

// Flush flushes the package client.
func Flush(ctx context.Context) { getDefault().Flush(ctx) }

// UploadCrash uploads through the package client.
func UploadCrash(report []byte) { getDefault().UploadCrash(report) }
