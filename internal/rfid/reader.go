// Package rfid reads card uids from an RFID reader attached over a serial
// line, or from an in-memory queue standing in for one.
package rfid

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// uidPrefix marks the reader's output lines that carry a card uid.
const uidPrefix = "Card UID:"

// ErrReaderStopped is returned once the serial line was closed or failed.
var ErrReaderStopped = errors.New("rfid reader stopped")

// Reader hands out the most recent card tap. Latest never blocks and
// returns "" when no card was tapped since the last call.
type Reader interface {
	Latest(ctx context.Context) (string, error)
}

// ParseLine extracts the uid from a reader line such as
// "Card UID: 67 AE 7B B4". Other lines are ignored.
func ParseLine(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, uidPrefix) {
		return "", false
	}
	uid := strings.TrimSpace(strings.TrimPrefix(line, uidPrefix))
	return uid, uid != ""
}

// SerialReader consumes the text stream of a serial RFID reader and keeps
// the last uid seen.
type SerialReader struct {
	src io.Reader
	log *zap.Logger

	mu     sync.Mutex
	latest string
	err    error
}

// NewSerialReader wraps src. Call Run to start consuming it.
func NewSerialReader(src io.Reader, log *zap.Logger) *SerialReader {
	if log == nil {
		log = zap.NewNop()
	}
	return &SerialReader{src: src, log: log.Named("rfid")}
}

// OpenSerial opens the device at path and starts reading it in the
// background. The line must already be configured (baud rate etc.); close
// the returned file to stop.
func OpenSerial(path string, log *zap.Logger) (*SerialReader, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("open rfid device: %w", err)
	}
	r := NewSerialReader(f, log)
	go r.Run()
	return r, f, nil
}

// Run reads lines until the source ends or fails.
func (r *SerialReader) Run() {
	sc := bufio.NewScanner(r.src)
	for sc.Scan() {
		uid, ok := ParseLine(sc.Text())
		if !ok {
			continue
		}
		r.log.Debug("card scanned", zap.String("uid", uid))
		r.mu.Lock()
		r.latest = uid
		r.mu.Unlock()
	}

	err := ErrReaderStopped
	if scanErr := sc.Err(); scanErr != nil {
		err = fmt.Errorf("%w: %v", ErrReaderStopped, scanErr)
	}
	r.log.Warn("rfid reader stopped", zap.Error(err))

	r.mu.Lock()
	r.err = err
	r.mu.Unlock()
}

// Latest returns and clears the last uid read. Once the line is closed it
// still hands out a pending uid, then reports the failure.
func (r *SerialReader) Latest(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	uid := r.latest
	r.latest = ""
	if uid == "" && r.err != nil {
		return "", r.err
	}
	return uid, nil
}

// QueueReader is a simulated reader fed through Push.
type QueueReader struct {
	mu    sync.Mutex
	queue []string
	max   int
}

// NewQueueReader returns an empty queue holding at most max taps; older
// taps are dropped first.
func NewQueueReader(max int) *QueueReader {
	if max <= 0 {
		max = 16
	}
	return &QueueReader{max: max}
}

// Push records a simulated tap.
func (q *QueueReader) Push(uid string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queue = append(q.queue, uid)
	if len(q.queue) > q.max {
		q.queue = q.queue[len(q.queue)-q.max:]
	}
}

// Latest pops the oldest pending tap.
func (q *QueueReader) Latest(ctx context.Context) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.queue) == 0 {
		return "", nil
	}
	uid := q.queue[0]
	q.queue = q.queue[1:]
	return uid, nil
}
