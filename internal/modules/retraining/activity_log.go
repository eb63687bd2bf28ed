package retraining

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	activityTimeLayout = "2006-01-02 15:04:05"
	// NeverRetrained is reported when the activity log does not exist yet
	NeverRetrained = "Never"
	// tailBytes bounds how much of the log is read to find the last entry
	tailBytes = 64 * 1024
	// maxEntryLength keeps engine output from flooding a single log line
	maxEntryLength = 2000
)

// ActivityLog is the human-readable retraining history: one "[YYYY-MM-DD HH:MM:SS] message"
// line per event, appended to a file that the dashboard reads back.
type ActivityLog struct {
	path string
	now  func() time.Time
	mu   sync.Mutex
}

// NewActivityLog creates an activity log at path. The file is created on first write.
func NewActivityLog(path string) *ActivityLog {
	return &ActivityLog{path: path, now: time.Now}
}

// Path returns the log file location
func (a *ActivityLog) Path() string {
	return a.path
}

// Append writes one entry. Newlines in msg are flattened so every entry stays one line.
func (a *ActivityLog) Append(msg string) error {
	msg = strings.Join(strings.Fields(msg), " ")
	if len(msg) > maxEntryLength {
		msg = msg[:maxEntryLength] + "..."
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0755); err != nil {
		return fmt.Errorf("failed to create activity log directory: %w", err)
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "[%s] %s\n", a.now().Format(activityTimeLayout), msg); err != nil {
		return fmt.Errorf("failed to write activity log: %w", err)
	}
	return nil
}

// Info summarises the log for GET /api/retrain
type Info struct {
	LastRetrain  string `json:"last_retrain"`
	LastLogEntry string `json:"last_log_entry,omitempty"`
	Status       string `json:"status,omitempty"`
}

// Info returns the log's modification time and last entry. A missing log means
// retraining never ran.
func (a *ActivityLog) Info() (Info, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.Open(a.path)
	if errors.Is(err, os.ErrNotExist) {
		return Info{LastRetrain: NeverRetrained, Status: "No training history"}, nil
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to open activity log: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return Info{}, fmt.Errorf("failed to stat activity log: %w", err)
	}
	if stat.Size() > tailBytes {
		if _, err := f.Seek(-tailBytes, io.SeekEnd); err != nil {
			return Info{}, fmt.Errorf("failed to seek activity log: %w", err)
		}
	}

	var last string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 4096), tailBytes)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			last = line
		}
	}
	if err := scanner.Err(); err != nil {
		return Info{}, fmt.Errorf("failed to read activity log: %w", err)
	}

	return Info{
		LastRetrain:  stat.ModTime().Format(activityTimeLayout),
		LastLogEntry: last,
	}, nil
}
