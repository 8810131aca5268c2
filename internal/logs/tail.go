package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	// pollInterval paces follow-mode re-reads while waiting for new lines.
	pollInterval = 200 * time.Millisecond
	// maxLineBytes bounds a single log line during scans.
	maxLineBytes = 1024 * 1024
)

// TailOptions controls a single Tail call.
type TailOptions struct {
	// Offset is the byte position to read from. Negative means "return the
	// last Limit lines" and reports the end-of-file offset for follow-ups.
	Offset int64
	// Limit bounds the number of lines returned when Offset is negative.
	Limit int
	// Follow keeps polling until Wait elapses when the read comes back empty.
	Follow bool
	Wait   time.Duration
}

// TailResult carries the lines read and the offset to resume from.
type TailResult struct {
	Lines  []string
	Offset int64
}

// Tail reads the daemon log at path according to opts. A missing file is not
// an error: the result is empty with offset 0 so callers can retry once the
// daemon starts writing.
func Tail(ctx context.Context, path string, opts TailOptions) (TailResult, error) {
	result := TailResult{Offset: opts.Offset}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			result.Offset = 0
			return result, nil
		}
		return result, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return result, fmt.Errorf("log path %q is a directory", path)
	}

	offset := opts.Offset
	if offset < 0 {
		lines, end, err := tailLast(path, opts.Limit)
		if err != nil {
			return result, err
		}
		result.Lines = lines
		result.Offset = end
		if len(lines) > 0 || !opts.Follow {
			return result, nil
		}
		offset = end
	}
	if offset > info.Size() {
		// Truncated or rotated underneath us: skip to the current end
		// rather than replaying the whole file.
		offset = info.Size()
	}

	lines, next, err := readAppended(path, offset)
	if err != nil {
		return result, err
	}
	result.Lines = lines
	result.Offset = next
	if len(lines) > 0 || !opts.Follow || opts.Wait <= 0 {
		return result, nil
	}

	deadline := time.NewTimer(opts.Wait)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-deadline.C:
			return result, nil
		case <-ticker.C:
		}
		lines, next, err = readAppended(path, result.Offset)
		if err != nil {
			return result, err
		}
		result.Offset = next
		if len(lines) > 0 {
			result.Lines = lines
			return result, nil
		}
	}
}

// readAppended returns the complete lines written after offset. A partial
// trailing line stays in the file for the next read, so a line is never split
// across two results.
func readAppended(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, 0, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	var lines []string
	next := offset
	for {
		line, err := reader.ReadString('\n')
		switch {
		case err == nil:
			next += int64(len(line))
			lines = append(lines, strings.TrimRight(line, "\r\n"))
		case errors.Is(err, io.EOF):
			return lines, next, nil
		default:
			return lines, next, fmt.Errorf("read log file: %w", err)
		}
	}
}

// tailLast returns up to limit trailing lines and the end-of-file offset.
func tailLast(path string, limit int) ([]string, int64, error) {
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
	if limit <= 0 {
		return nil, info.Size(), nil
	}

	ring := make([]string, limit)
	count, idx := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % limit
		if count < limit {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	if count < limit {
		return append([]string(nil), ring[:count]...), info.Size(), nil
	}
	// Full ring: the oldest retained line sits at idx.
	lines := make([]string, 0, limit)
	lines = append(lines, ring[idx:]...)
	lines = append(lines, ring[:idx]...)
	return lines, info.Size(), nil
}
