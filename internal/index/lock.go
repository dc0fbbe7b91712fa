package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"
)

// LockFile is created in the index directory while an index run is active.
const LockFile = "index.lock"

// lockStaleAfter is the age after which a lock file whose owner cannot be
// found is ignored. Live holders refresh the file every lockHeartbeat.
const (
	lockStaleAfter = 30 * time.Minute
	lockHeartbeat  = lockStaleAfter / 6
)

var (
	heldMu sync.Mutex
	held   = map[string]bool{}
)

// destLock serialises index runs per destination. The in-process map covers
// goroutines of this process; the O_EXCL lock file covers other processes.
type destLock struct {
	key  string
	file string
	stop chan struct{}
	done chan struct{}
}

func acquireLock(dir string) (*destLock, error) {
	key, err := filepath.Abs(dir)
	if err != nil {
		return nil, &IndexError{Kind: KindIO, Path: dir, Err: err}
	}

	heldMu.Lock()
	defer heldMu.Unlock()
	if held[key] {
		return nil, &IndexError{Kind: KindConcurrentWrite, Path: dir, Err: errors.New("index already in progress")}
	}

	if err := os.MkdirAll(key, 0o755); err != nil {
		return nil, &IndexError{Kind: KindIO, Path: dir, Err: err}
	}
	file := filepath.Join(key, LockFile)
	if err := createLockFile(file); err != nil {
		return nil, err
	}
	held[key] = true
	l := &destLock{key: key, file: file, stop: make(chan struct{}), done: make(chan struct{})}
	go l.heartbeat(lockHeartbeat)
	return l, nil
}

// lockOwner is the "<pid> <host> <time>" line written into the lock file.
type lockOwner struct {
	pid  int
	host string
}

func currentOwner() lockOwner {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "-"
	}
	return lockOwner{pid: os.Getpid(), host: host}
}

func readOwner(path string) (lockOwner, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return lockOwner{}, false
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return lockOwner{}, false
	}
	pid, err := strconv.Atoi(fields[0])
	if err != nil || pid <= 0 {
		return lockOwner{}, false
	}
	return lockOwner{pid: pid, host: fields[1]}, true
}

// ownerAlive reports whether the process recorded in the lock file still
// runs. Owners on another host cannot be checked and count as gone.
func ownerAlive(path string) bool {
	owner, ok := readOwner(path)
	if !ok || owner.host != currentOwner().host {
		return false
	}
	return processAlive(owner.pid)
}

func createLockFile(path string) error {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			me := currentOwner()
			fmt.Fprintf(f, "%d %s %s\n", me.pid, me.host, time.Now().UTC().Format(time.RFC3339))
			return f.Close()
		}
		if !errors.Is(err, os.ErrExist) {
			return &IndexError{Kind: KindIO, Path: path, Err: err}
		}
		info, statErr := os.Stat(path)
		if statErr != nil || time.Since(info.ModTime()) < lockStaleAfter || ownerAlive(path) {
			return &IndexError{Kind: KindConcurrentWrite, Path: path, Err: errors.New("lock held by another process")}
		}
		// Stale lock from a crashed run.
		os.Remove(path)
	}
	return &IndexError{Kind: KindConcurrentWrite, Path: path, Err: errors.New("could not acquire lock")}
}

// heartbeat keeps the lock file's mtime fresh until release.
func (l *destLock) heartbeat(every time.Duration) {
	defer close(l.done)
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-l.stop:
			return
		case now := <-t.C:
			os.Chtimes(l.file, now, now)
		}
	}
}

func (l *destLock) release() {
	close(l.stop)
	<-l.done

	heldMu.Lock()
	defer heldMu.Unlock()
	os.Remove(l.file)
	delete(held, l.key)
}
