package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	// DefaultPoll is how often Follow re-reads the file.
	DefaultPoll = 250 * time.Millisecond
)

// Last returns the final n lines of path together with the byte offset
// just past them. A missing file yields no lines at offset zero; n <= 0 skips
// straight to the end of the file.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if n <= 0 {
		return nil, info.Size(), nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	ring := make([]string, n)
	count, next := 0, 0
	for scanner.Scan() {
		ring[next] = scanner.Text()
		next = (next + 1) % n
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	if count > n {
		count = n
	}
	lines := make([]string, 0, count)
	start := (next - count + n) % n
	for i := range count {
		lines = append(lines, ring[(start+i)%n])
	}
	return lines, info.Size(), nil
}

// Follow calls emit for every complete line appended to path after offset
// until ctx ends. When path is replaced (a new daemon run moves the log
// pointer) or truncated, reading restarts at the top of the new file.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string)) error {
	if poll <= 0 {
		poll = DefaultPoll
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	var current os.FileInfo
	var partial []byte
	for {
		info, err := os.Stat(path)
		switch {
		case err == nil:
			if current != nil && !os.SameFile(current, info) || info.Size() < offset {
				offset = 0
				partial = partial[:0]
			}
			current = info
			if info.Size() > offset {
				offset, partial, err = readAppended(path, offset, partial, emit)
				if err != nil {
					return err
				}
			}
		case !errors.Is(err, os.ErrNotExist):
			return fmt.Errorf("stat log file: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readAppended emits complete lines after offset and carries an unterminated
// tail over to the next call.
func readAppended(path string, offset int64, partial []byte, emit func(string)) (int64, []byte, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return offset, partial, nil
		}
		return offset, partial, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, partial, fmt.Errorf("seek log file: %w", err)
	}
	chunk, err := io.ReadAll(file)
	if err != nil {
		return offset, partial, fmt.Errorf("read log file: %w", err)
	}
	offset += int64(len(chunk))
	buf := append(partial, chunk...)
	for {
		idx := bytes.IndexByte(buf, '\n')
		if idx < 0 {
			break
		}
		emit(string(bytes.TrimRight(buf[:idx], "\r")))
		buf = buf[idx+1:]
	}
	if len(buf) > maxLineBytes {
		emit(string(buf))
		buf = buf[:0]
	}
	return offset, append([]byte(nil), buf...), nil
}
