package logtail

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
)

// Ring keeps the most recent lines. It is safe for concurrent use.
type Ring struct {
	mu    sync.Mutex
	lines []string
	idx   int
	count int
}

// NewRing returns a ring holding at most size lines (minimum 1).
func NewRing(size int) *Ring {
	return &Ring{lines: make([]string, max(size, 1))}
}

// Add appends line, evicting the oldest when full.
func (r *Ring) Add(line string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lines[r.idx] = line
	r.idx = (r.idx + 1) % len(r.lines)
	if r.count < len(r.lines) {
		r.count++
	}
}

// Lines returns the held lines oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, r.count)
	if r.count == len(r.lines) {
		for i := 0; i < r.count; i++ {
			out[i] = r.lines[(r.idx+i)%len(r.lines)]
		}
	} else {
		copy(out, r.lines[:r.count])
	}
	return out
}

// Len returns the number of held lines.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

// ReadFrom scans r line by line into ring.
func ReadFrom(r io.Reader, ring *Ring) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		ring.Add(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log: %w", err)
	}
	return nil
}

// Read returns at most maxLines from the end of the file at path. A
// non-positive maxLines returns every line; a missing file returns nothing.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	if maxLines <= 0 {
		var lines []string
		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			lines = append(lines, scanner.Text())
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("read log: %w", err)
		}
		return lines, nil
	}

	ring := NewRing(maxLines)
	if err := ReadFrom(file, ring); err != nil {
		return nil, err
	}
	return ring.Lines(), nil
}

// Level guesses the severity word of a log line: ERROR, WARN, INFO, DEBUG,
// or "" when none is present.
func Level(line string) string {
	upper := strings.ToUpper(line)
	for _, level := range []string{"ERROR", "WARN", "INFO", "DEBUG"} {
		if strings.Contains(upper, " "+level+" ") || strings.HasPrefix(upper, level+" ") ||
			strings.Contains(upper, "LEVEL="+level) || strings.Contains(upper, "["+level+"]") {
			return level
		}
	}
	return ""
}
