/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Save writes art into dir under its computed filename and returns the path.
// Data goes to a temp file in dir that is renamed into place, so a failed
// save leaves no partial artifact behind.
func Save(art *Artifact, dir string) (path string, err error) {
	if art == nil {
		return "", errors.New("nil artifact")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("ensure out dir: %w", err)
	}
	path = filepath.Join(dir, art.Filename)
	f, err := os.CreateTemp(dir, "."+art.Filename+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	temp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(temp)
		}
	}()
	if _, err = f.Write(art.Data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err = f.Sync(); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("sync artifact: %w", err)
	}
	if err = f.Close(); err != nil {
		return "", fmt.Errorf("close artifact: %w", err)
	}
	if err = os.Chmod(temp, 0o644); err != nil {
		return "", fmt.Errorf("chmod artifact: %w", err)
	}
	if err = os.Rename(temp, path); err != nil {
		return "", fmt.Errorf("replace artifact: %w", err)
	}
	return path, nil
}
