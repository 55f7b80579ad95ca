package publish

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Fire-Hyun/naverPost-sub000/internal/editor"
	"github.com/Fire-Hyun/naverPost-sub000/internal/failure"
	"gopkg.in/natefinch/lumberjack.v2"
)

// AttemptRecord is one attempt outcome persisted to the attempt log.
type AttemptRecord struct {
	Timestamp   time.Time               `json:"timestamp"`
	OperationID string                  `json:"operation_id"`
	Attempt     int                     `json:"attempt"`
	Title       string                  `json:"title"`
	Images      int                     `json:"images"`
	Success     bool                    `json:"success"`
	VerifiedVia editor.VerifiedVia      `json:"verified_via,omitempty"`
	Category    failure.AttemptCategory `json:"failure_category,omitempty"`
	DurationMS  int64                   `json:"duration_ms"`
	StageMS     map[string]int64        `json:"stage_durations_ms,omitempty"`
	Retried     bool                    `json:"retried"`
	Error       string                  `json:"error,omitempty"`
}

// AttemptLog persists attempt records as JSON lines in date-organized,
// size-rotated files, and keeps a bounded in-memory window for the API.
// Writes are async and never block the publishing loop; a full buffer drops
// the record with a warning.
type AttemptLog struct {
	baseDir     string
	writeCh     chan AttemptRecord
	done        chan struct{}
	wg          sync.WaitGroup
	currentDate string
	logger      *lumberjack.Logger
	mu          sync.Mutex

	recentMu sync.Mutex
	recent   []AttemptRecord
	keep     int
}

// NewAttemptLog creates an attempt log rooted at baseDir.
func NewAttemptLog(baseDir string) *AttemptLog {
	l := &AttemptLog{
		baseDir: baseDir,
		writeCh: make(chan AttemptRecord, 64),
		done:    make(chan struct{}),
		keep:    100,
	}
	l.wg.Add(1)
	go l.writeLoop()
	return l
}

// Append queues a record.
func (l *AttemptLog) Append(rec AttemptRecord) {
	l.recentMu.Lock()
	l.recent = append(l.recent, rec)
	if len(l.recent) > l.keep {
		l.recent = l.recent[len(l.recent)-l.keep:]
	}
	l.recentMu.Unlock()

	select {
	case l.writeCh <- rec:
	case <-l.done:
	default:
		slog.Warn("attempt log buffer full, dropping record",
			"operation_id", rec.OperationID)
	}
}

// Recent returns up to n most recent records, newest first.
func (l *AttemptLog) Recent(n int) []AttemptRecord {
	l.recentMu.Lock()
	defer l.recentMu.Unlock()
	if n <= 0 || n > len(l.recent) {
		n = len(l.recent)
	}
	out := make([]AttemptRecord, 0, n)
	for i := len(l.recent) - 1; i >= len(l.recent)-n; i-- {
		out = append(out, l.recent[i])
	}
	return out
}

// Close flushes pending records and closes the file.
func (l *AttemptLog) Close() error {
	close(l.done)

	timeout := time.After(5 * time.Second)
	for {
		select {
		case rec := <-l.writeCh:
			l.writeRecord(rec)
		case <-timeout:
			slog.Warn("attempt log close timeout, some records may be lost")
			goto done
		default:
			goto done
		}
	}

done:
	l.wg.Wait()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.logger != nil {
		return l.logger.Close()
	}
	return nil
}

func (l *AttemptLog) writeLoop() {
	defer l.wg.Done()
	for {
		select {
		case rec := <-l.writeCh:
			l.writeRecord(rec)
		case <-l.done:
			return
		}
	}
}

func (l *AttemptLog) writeRecord(rec AttemptRecord) {
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Error("failed to marshal attempt record", "error", err)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	currentDate := time.Now().UTC().Format("2006-01-02")
	if l.logger == nil || currentDate != l.currentDate {
		l.rotateForDate(currentDate)
	}
	if l.logger == nil {
		return
	}
	if _, err := l.logger.Write(append(data, '\n')); err != nil {
		slog.Error("failed to write attempt record", "error", err)
	}
}

func (l *AttemptLog) rotateForDate(date string) {
	if l.logger != nil {
		l.logger.Close()
	}

	dir := filepath.Join(l.baseDir, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		slog.Error("failed to create attempt log directory", "error", err, "dir", dir)
		l.logger = nil
		return
	}

	l.logger = &lumberjack.Logger{
		Filename:   filepath.Join(dir, fmt.Sprintf("attempts_%d.jsonl", time.Now().Unix())),
		MaxSize:    50,
		MaxBackups: 100,
		MaxAge:     30,
		Compress:   false,
		LocalTime:  false,
	}
	l.currentDate = date
	slog.Info("opened new attempt log file", "dir", dir)
}
