// Copyright Cairo-M Contributors
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package lspdaemon

import (
	"context"
	"os"
	"path/filepath"
	"time"
)

const pollInterval = 2 * time.Second

// watchDir falls back to periodic os.Stat polling on platforms without an
// inotify-equivalent wired up. Coarser than watcher_linux.go's event-driven
// version but adequate for a "rebuild eventually" project watcher.
func watchDir(ctx context.Context, root string) (<-chan string, func()) {
	events := make(chan string)
	stopped := make(chan struct{})

	go func() {
		defer close(events)

		mtimes := make(map[string]time.Time)
		scan := func() {
			_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err != nil || d.IsDir() {
					return nil //nolint:nilerr
				}

				info, err := d.Info()
				if err != nil {
					return nil //nolint:nilerr
				}

				if prev, ok := mtimes[path]; !ok || info.ModTime().After(prev) {
					mtimes[path] = info.ModTime()

					select {
					case events <- path:
					case <-ctx.Done():
						return ctx.Err()
					}
				}

				return nil
			})
		}

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		scan()

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			case <-ticker.C:
				scan()
			}
		}
	}()

	return events, func() { close(stopped) }
}
