// Copyright 2025 OpenClaw Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package store

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	// lockRetryInterval is how long a waiter sleeps between attempts.
	lockRetryInterval = 50 * time.Millisecond

	// lockAcquireDeadline bounds the total wait for the lock.
	lockAcquireDeadline = 10 * time.Second

	// lockStaleAfter is the age past which a lock is presumed abandoned
	// by a crashed process and may be removed by a waiter.
	lockStaleAfter = 30 * time.Second
)

// fileLock is an advisory lock implemented as a sibling file created with
// exclusive-create semantics. The file holds the acquisition time in unix
// milliseconds so waiters can detect locks left behind by crashes.
type fileLock struct {
	path   string
	logger *slog.Logger
	held   bool
}

func newFileLock(statePath string, logger *slog.Logger) *fileLock {
	return &fileLock{path: statePath + ".lock", logger: logger}
}

// acquire blocks until the lock is held or the deadline elapses. On
// deadline it force-removes whatever lock is present and writes its own;
// only if that last resort fails is a LockError returned.
func (l *fileLock) acquire() error {
	start := time.Now()
	var lastErr error

	for {
		if err := l.tryCreate(); err == nil {
			l.held = true
			return nil
		} else if !os.IsExist(err) {
			lastErr = err
		}

		if age, ok := l.age(); ok && age > lockStaleAfter {
			l.logger.Warn("removing stale store lock",
				slog.String("path", l.path),
				slog.Duration("age", age))
			os.Remove(l.path)
			continue
		}

		if time.Since(start) >= lockAcquireDeadline {
			// Last resort: take the lock over from whoever holds it.
			l.logger.Warn("store lock deadline elapsed, forcing takeover",
				slog.String("path", l.path))
			os.Remove(l.path)
			if err := l.tryCreate(); err != nil {
				return &LockError{Path: l.path, Waited: time.Since(start), Cause: firstErr(err, lastErr)}
			}
			l.held = true
			return nil
		}

		time.Sleep(lockRetryInterval)
	}
}

// tryCreate attempts the exclusive create and writes the timestamp.
func (l *fileLock) tryCreate() error {
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return err
	}
	_, werr := fmt.Fprintf(f, "%d", time.Now().UnixMilli())
	cerr := f.Close()
	if werr != nil || cerr != nil {
		os.Remove(l.path)
		return firstErr(werr, cerr)
	}
	return nil
}

// age reads the acquisition timestamp out of the lock file. A lock whose
// contents cannot be parsed has no knowable age and is treated as stale.
func (l *fileLock) age() (time.Duration, bool) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		return 0, false
	}
	ms, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return lockStaleAfter + time.Second, true
	}
	return time.Since(time.UnixMilli(ms)), true
}

// release unlinks the lock file. A missing lock is not an error; that is
// the normal state after a crash between write and release.
func (l *fileLock) release() {
	if !l.held {
		return
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		l.logger.Warn("failed to remove store lock", slog.String("path", l.path), slog.Any("error", err))
	}
}

func firstErr(errs ...error) error {
	for _, e := range errs {
		if e != nil {
			return e
		}
	}
	return nil
}
