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

//go:build linux

package lspdaemon

import (
	"context"
	"os"
	"path/filepath"
	"unsafe"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const inotifyEventHeaderSize = unix.SizeofInotifyEvent

// watchDir watches root (and every directory beneath it, recursively, at
// the time of the call) for filesystem changes via inotify, reporting each
// changed path. New subdirectories created after the initial scan are not
// picked up until the daemon restarts; bounding this to a one-shot recursive
// watch keeps the syscall surface small.
func watchDir(ctx context.Context, root string) (<-chan string, func()) {
	events := make(chan string)

	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC | unix.IN_NONBLOCK)
	if err != nil {
		log.WithError(err).Warn("lspdaemon: inotify_init1 failed, project watcher disabled")
		close(events)

		return events, func() {}
	}

	wds := make(map[int32]string)

	_ = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil //nolint:nilerr
		}

		wd, err := unix.InotifyAddWatch(fd, path, unix.IN_CREATE|unix.IN_MODIFY|unix.IN_DELETE|unix.IN_MOVED_TO)
		if err != nil {
			log.WithError(err).WithField("path", path).Debug("lspdaemon: inotify_add_watch failed")

			return nil
		}

		wds[int32(wd)] = path

		return nil
	})

	stopped := make(chan struct{})

	go func() {
		defer close(events)

		f := os.NewFile(uintptr(fd), "inotify")
		defer f.Close()

		buf := make([]byte, 64*(inotifyEventHeaderSize+4096))

		for {
			select {
			case <-ctx.Done():
				return
			case <-stopped:
				return
			default:
			}

			n, err := f.Read(buf)
			if err != nil {
				return
			}

			offset := 0
			for offset+inotifyEventHeaderSize <= n {
				raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset])) //nolint:gosec
				nameLen := int(raw.Len)
				dir := wds[raw.Wd]

				var name string
				if nameLen > 0 {
					name = string(buf[offset+inotifyEventHeaderSize : offset+inotifyEventHeaderSize+nameLen])
					for i, c := range name {
						if c == 0 {
							name = name[:i]
							break
						}
					}
				}

				select {
				case events <- filepath.Join(dir, name):
				case <-ctx.Done():
					return
				}

				offset += inotifyEventHeaderSize + nameLen
			}
		}
	}()

	return events, func() {
		close(stopped)
		unix.Close(fd)
	}
}
