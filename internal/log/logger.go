/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log configures the process-wide slog logger for scenewriter.
//
// Console output is a compact one-line format (or JSON); an optional file sink
// writes JSON through lumberjack with size-based rotation. Attributes stored in
// a context with ContextWith are added to every record logged with that
// context, which is how the HTTP server tags records with the request id.
package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	lj "gopkg.in/natefinch/lumberjack.v2"

	"scenewriter/internal/version"
)

// Options controls logger initialization.
//
// FromEnv reads SW_LOG_LEVEL (debug|info|warn|error), SW_LOG_FORMAT
// (console|json), SW_LOG_SOURCE and SW_LOG_FILE. A file sink defaults to
// 10 MB per file and 3 backups.
type Options struct {
	Level      string
	Format     string // "console" or "json"
	AddSource  bool
	File       string // rotated JSON log; empty disables
	MaxSizeMB  int
	MaxBackups int
	Console    io.Writer // defaults to os.Stderr
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the process logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	return Init(FromEnv())
}

// Init builds the logger described by opts, installs it as slog.Default and returns it.
func Init(opts Options) *slog.Logger {
	lvl := parseLevel(opts.Level)
	console := opts.Console
	if console == nil {
		console = os.Stderr
	}

	var sinks []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(console, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	} else {
		sinks = append(sinks, &consoleHandler{w: console, level: lvl, source: opts.AddSource, wmu: &sync.Mutex{}})
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		rot := &lj.Logger{
			Filename:   f,
			MaxSize:    orDefault(opts.MaxSizeMB, 10),
			MaxBackups: orDefault(opts.MaxBackups, 3),
			MaxAge:     28,
			Compress:   true,
		}
		sinks = append(sinks, slog.NewJSONHandler(rot, &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}))
	}

	var h slog.Handler = sinks[0]
	if len(sinks) > 1 {
		h = fanout(sinks)
	}
	l := slog.New(ctxHandler{next: h}).With(
		slog.String("app", "scenewriter"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	current = l
	mu.Unlock()
	slog.SetDefault(l)
	return l
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// FromEnv builds Options from SW_LOG_* environment variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("SW_LOG_LEVEL", "info"),
		Format:    getenv("SW_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("SW_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("SW_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

type ctxAttrsKey struct{}

// ContextWith returns a context whose records carry attrs in addition to any
// attributes already stored in ctx.
func ContextWith(ctx context.Context, attrs ...slog.Attr) context.Context {
	prev := AttrsFromContext(ctx)
	all := make([]slog.Attr, 0, len(prev)+len(attrs))
	all = append(all, prev...)
	all = append(all, attrs...)
	return context.WithValue(ctx, ctxAttrsKey{}, all)
}

// AttrsFromContext returns the attributes stored by ContextWith.
func AttrsFromContext(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	attrs, _ := ctx.Value(ctxAttrsKey{}).([]slog.Attr)
	return attrs
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// ctxHandler adds context attributes before passing the record on.
type ctxHandler struct{ next slog.Handler }

func (h ctxHandler) Enabled(ctx context.Context, l slog.Level) bool { return h.next.Enabled(ctx, l) }

func (h ctxHandler) Handle(ctx context.Context, r slog.Record) error {
	if attrs := AttrsFromContext(ctx); len(attrs) > 0 {
		r = r.Clone()
		r.AddAttrs(attrs...)
	}
	return h.next.Handle(ctx, r)
}

func (h ctxHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return ctxHandler{next: h.next.WithAttrs(attrs)}
}

func (h ctxHandler) WithGroup(name string) slog.Handler {
	return ctxHandler{next: h.next.WithGroup(name)}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, l slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, l) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var first error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// consoleHandler writes "15:04:05.000 INF msg key=value ..." lines.
type consoleHandler struct {
	w      io.Writer
	level  slog.Level
	source bool
	prefix string // dotted group path
	attrs  []slog.Attr
	wmu    *sync.Mutex
}

func (h *consoleHandler) Enabled(_ context.Context, l slog.Level) bool { return l >= h.level }

func (h *consoleHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString(ts.Format("15:04:05.000"))
	b.WriteByte(' ')
	b.WriteString(levelTag(r.Level))
	if r.Message != "" {
		b.WriteByte(' ')
		b.WriteString(r.Message)
	}
	for _, a := range h.attrs {
		writeAttr(&b, "", a)
	}
	r.Attrs(func(a slog.Attr) bool {
		writeAttr(&b, h.prefix, a)
		return true
	})
	if h.source && r.PC != 0 {
		fr, _ := runtime.CallersFrames([]uintptr{r.PC}).Next()
		fmt.Fprintf(&b, " src=%s:%d", filepath.Base(fr.File), fr.Line)
	}
	b.WriteByte('\n')

	if h.wmu != nil {
		h.wmu.Lock()
		defer h.wmu.Unlock()
	}
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *consoleHandler) clone() *consoleHandler {
	c := *h
	c.attrs = append([]slog.Attr(nil), h.attrs...)
	if c.wmu == nil {
		c.wmu = &sync.Mutex{}
	}
	return &c
}

func (h *consoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	c := h.clone()
	for _, a := range attrs {
		a.Key = h.prefix + a.Key
		c.attrs = append(c.attrs, a)
	}
	return c
}

func (h *consoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	c := h.clone()
	c.prefix = h.prefix + name + "."
	return c
}

func writeAttr(b *strings.Builder, prefix string, a slog.Attr) {
	v := a.Value.Resolve()
	if v.Kind() == slog.KindGroup {
		for _, ga := range v.Group() {
			writeAttr(b, prefix+a.Key+".", ga)
		}
		return
	}
	if a.Key == "" {
		return
	}
	b.WriteByte(' ')
	b.WriteString(prefix)
	b.WriteString(a.Key)
	b.WriteByte('=')
	b.WriteString(valueString(v))
}

func levelTag(l slog.Level) string {
	switch {
	case l < slog.LevelInfo:
		return "DBG"
	case l < slog.LevelWarn:
		return "INF"
	case l < slog.LevelError:
		return "WRN"
	}
	return "ERR"
}

func valueString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	case slog.KindString:
		s := v.String()
		if s == "" || strings.ContainsAny(s, " \t\n\"=") {
			return strconv.Quote(s)
		}
		return s
	}
	return v.String()
}
