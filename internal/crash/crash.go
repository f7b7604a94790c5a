/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns panics into crash reports.
//
// A report goes to the open project's backups directory (or the temp dir when
// no project is open), the loaded bundle is snapshotted next to it, and the
// report is uploaded when telemetry crash uploads are enabled.
package crash

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strings"
	"time"

	applog "scenewriter/internal/log"
	"scenewriter/internal/storage"
	"scenewriter/internal/telemetry"
	"scenewriter/internal/version"
)

// ExitCode is the process exit status after a recovered panic.
const ExitCode = 2

var (
	exitFn           = os.Exit
	stderr io.Writer = os.Stderr
	now              = time.Now
)

// Report describes one recovered panic.
type Report struct {
	Time    time.Time
	Panic   any
	Stack   []byte
	Args    []string
	Project string
	Root    string
	Bundle  string
	Scenes  int
}

// NewReport captures the panic value with the state of ph, which may be nil.
func NewReport(panicVal any, stack []byte, ph *storage.ProjectHandle) Report {
	rep := Report{Time: now(), Panic: panicVal, Stack: stack, Args: commandLine()}
	if ph != nil {
		rep.Project = ph.Bundle.Project.Name
		rep.Root = ph.Root
		rep.Bundle = ph.BundlePath
		rep.Scenes = len(ph.Bundle.Scenes)
	}
	return rep
}

// commandLine returns the subcommand and flag names only; values may hold
// titles or secrets.
func commandLine() []string {
	var out []string
	for i, a := range os.Args {
		switch {
		case i == 1:
			out = append(out, a)
		case strings.HasPrefix(a, "-"):
			name, _, _ := strings.Cut(a, "=")
			out = append(out, name)
		}
	}
	return out
}

// Bytes renders the plain-text report.
func (r Report) Bytes() []byte {
	var b bytes.Buffer
	fmt.Fprintln(&b, "scenewriter crash report")
	fmt.Fprintf(&b, "Timestamp: %s\n", r.Time.Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n", version.String())
	fmt.Fprintf(&b, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if len(r.Args) > 0 {
		fmt.Fprintf(&b, "Command: %s\n", strings.Join(r.Args, " "))
	}
	if r.Root != "" {
		fmt.Fprintf(&b, "Project: %s\n", r.Project)
		fmt.Fprintf(&b, "ProjectRoot: %s\n", r.Root)
		fmt.Fprintf(&b, "Bundle: %s\n", r.Bundle)
		fmt.Fprintf(&b, "Scenes: %d\n", r.Scenes)
	}
	fmt.Fprintf(&b, "\nPanic: %v\n\n", r.Panic)
	fmt.Fprintf(&b, "Stack:\n%s\n", r.Stack)
	return b.Bytes()
}

// Dir is where the report is written.
func (r Report) Dir() string {
	if r.Root == "" {
		return os.TempDir()
	}
	return filepath.Join(r.Root, storage.BackupsDirName)
}

// Write saves the report as crash-<timestamp>.log in Dir and returns its path.
func (r Report) Write() (string, error) {
	dir := r.Dir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", r.Time.Format("20060102-150405.000")))
	if err := os.WriteFile(path, r.Bytes(), 0o644); err != nil {
		return path, fmt.Errorf("write crash report: %w", err)
	}
	return path, nil
}

// Recover handles a panic in the calling goroutine: it logs the stack, writes
// a report, snapshots the open bundle and exits with ExitCode.
//
// Recover must be deferred directly so recover() sees the panic. Pass a
// handle allocated up front and fill it in once a project is open:
//
//	ph := &storage.ProjectHandle{}
//	defer crash.Recover(ph)
func Recover(ph *storage.ProjectHandle) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	rep := NewReport(r, debug.Stack(), ph)
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(rep.Stack)))

	path, err := rep.Write()
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	if rep.Root != "" {
		if snap, err := storage.CrashSnapshot(ph); err != nil {
			l.Error("crash snapshot failed", slog.Any("err", err))
		} else {
			l.Info("crash snapshot written", slog.String("path", snap))
		}
	}
	telemetry.UploadCrash(rep.Bytes())

	fmt.Fprintf(stderr, "A fatal error occurred. A crash report was saved to: %s\n", path)
	fmt.Fprintf(stderr, "Version: %s\nOS/Arch: %s/%s\n", version.String(), runtime.GOOS, runtime.GOARCH)
	exitFn(ExitCode)
}
