/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Command scenewriter converts scene bundles into typeset screenplays.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"scenewriter/internal/backend"
	"scenewriter/internal/config"
	"scenewriter/internal/crash"
	applog "scenewriter/internal/log"
	"scenewriter/internal/storage"
	"scenewriter/internal/telemetry"
	"scenewriter/internal/version"
)

// app carries what every command needs.
type app struct {
	out   io.Writer
	cfg   config.AppConfig
	token string
	now   func() time.Time
	ph    *storage.ProjectHandle // filled when a command opens a project; read by crash.Recover
	log   *slog.Logger
}

// usageError marks errors caused by bad arguments (exit code 2).
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error { return usageError{msg: fmt.Sprintf(format, args...)} }

func (a *app) usage() {
	fmt.Fprintln(a.out, "scenewriter: screenplay export for scene bundles")
	fmt.Fprintf(a.out, "Version: %s\n\n", version.String())
	fmt.Fprintln(a.out, `Usage:
  scenewriter version                                   Show version
  scenewriter init <dir> <name> [-grouping mode]        Create a project
  scenewriter open <dir>                                Print a project summary
  scenewriter add-scene <dir> <title> [-content file|-] [-loc INT|EXT] [-tod DAY|NIGHT]
                        [-season id] [-episode id] [-order n]
  scenewriter export <dir> [-format docx|pdf|txt] [-season id] [-episode id]
                     [-out dir] [-author name] [-style name|file.yaml] [-remote]
  scenewriter render <request.json|-> [-format f] [-out dir] [-style file.yaml]
  scenewriter batch <dir> [-preset edit|print|preview|all] [-out dir] [-author name] [-style s]
  scenewriter history <dir> [-limit n]
  scenewriter search <dir> [-q text] [-character name] [-season id] [-episode id] [-limit n] [-pg]
  scenewriter reindex <dir>
  scenewriter styles <dir> list|export <zip>|install <zip>
  scenewriter serve [<dir>] [-addr :8080] [-pg] [-style s] [-author name]
  scenewriter token [-subject name] [-ttl 24h]
  scenewriter projects [-remote]
  scenewriter pull <dir> <project-id> [-remote]
  scenewriter push <dir>
  scenewriter secret set|delete backend-token|postgres-password|server-secret [value]
  scenewriter config`)
}

func main() {
	cfg, token, cfgErr := config.Load()
	applog.Init(cfg.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config not loaded, using defaults", slog.Any("err", cfgErr))
	}
	telemetry.NewDefault(telemetry.FromEnvWithOptIn(cfg.General.TelemetryOptIn))

	ph := &storage.ProjectHandle{}
	defer crash.Recover(ph)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	a := &app{out: os.Stdout, cfg: cfg, token: token, now: time.Now, ph: ph, log: l}
	l.Debug("start", slog.Int("args", len(os.Args)))
	err := a.run(ctx, os.Args[1:])
	stop()
	if len(os.Args) > 1 {
		telemetry.Emit("command", map[string]any{"name": os.Args[1], "ok": err == nil})
	}
	flushCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	telemetry.Flush(flushCtx)
	cancel()
	if err == nil {
		return
	}
	fmt.Fprintln(os.Stderr, "Error:", err)
	var ue usageError
	if errors.As(err, &ue) {
		os.Exit(2)
	}
	os.Exit(1)
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return nil
	}
	cmd, rest := args[0], args[1:]
	switch cmd {
	case "version", "--version", "-v":
		fmt.Fprintln(a.out, version.String())
		return nil
	case "help", "-h", "--help":
		a.usage()
		return nil
	case "init":
		return a.cmdInit(rest)
	case "open":
		return a.cmdOpen(rest)
	case "add-scene":
		return a.cmdAddScene(rest)
	case "export":
		return a.cmdExport(ctx, rest)
	case "render":
		return a.cmdRender(rest)
	case "batch":
		return a.cmdBatch(ctx, rest)
	case "history":
		return a.cmdHistory(ctx, rest)
	case "search":
		return a.cmdSearch(ctx, rest)
	case "reindex":
		return a.cmdReindex(ctx, rest)
	case "styles":
		return a.cmdStyles(rest)
	case "serve":
		return a.cmdServe(ctx, rest)
	case "token":
		return a.cmdToken(rest)
	case "projects":
		return a.cmdProjects(ctx, rest)
	case "pull":
		return a.cmdPull(ctx, rest)
	case "push":
		return a.cmdPush(ctx, rest)
	case "secret":
		return a.cmdSecret(rest)
	case "config":
		return a.cmdConfig()
	}
	a.usage()
	return usagef("unknown command %q", cmd)
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

// parseFlags parses flags that may appear before, between or after
// positional arguments and returns the positionals.
func parseFlags(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, usageError{msg: err.Error()}
		}
		args = fs.Args()
		if len(args) == 0 {
			return pos, nil
		}
		pos = append(pos, args[0])
		args = args[1:]
	}
}

// open loads the project at dir and publishes it to the crash handler.
func (a *app) open(dir string) (*storage.ProjectHandle, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	h, err := storage.Open(abs)
	if err != nil {
		return nil, err
	}
	*a.ph = *h
	return h, nil
}

// outDir resolves a relative output directory against the project root.
func outDir(root, dir string) string {
	if dir == "" {
		dir = storage.ExportsDirName
	}
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(root, dir)
}

func (a *app) client() *backend.Client {
	return backend.NewClientWithOptions(a.cfg.Backend.BaseURL, a.token, backend.ClientOptions{
		Timeout:     a.cfg.Backend.Timeout(),
		TLSInsecure: a.cfg.Backend.TLSInsecure,
	})
}

func (a *app) source(ctx context.Context) (*backend.Source, error) {
	dsn := a.cfg.Backend.PostgresDSNWithSecret()
	if dsn == "" {
		return nil, fmt.Errorf("no postgres dsn configured (set %s or backend.postgres_dsn)", config.EnvPostgresDSN)
	}
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Backend.Timeout())
	defer cancel()
	return backend.Open(ctx, dsn)
}
