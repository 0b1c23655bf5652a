package log

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"
)

const (
	filePrefix = "superset-import-"
	fileSuffix = ".jsonl"
	dateLayout = "2006-01-02"
)

// FileWriter appends JSON log lines to dir/superset-import-YYYY-MM-DD.jsonl,
// switching files when the date changes. dir/latest points at the current file.
type FileWriter struct {
	dir      string
	mu       sync.Mutex
	file     *os.File
	currDate string
}

// NewFileWriter creates dir if needed and opens today's file.
func NewFileWriter(dir string) (*FileWriter, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating debug log dir: %w", err)
	}

	fw := &FileWriter{dir: dir}
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if err := fw.openLocked(time.Now()); err != nil {
		return nil, err
	}
	return fw, nil
}

// Write implements io.Writer.
func (fw *FileWriter) Write(p []byte) (int, error) {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	now := time.Now()
	if now.Format(dateLayout) != fw.currDate {
		if err := fw.openLocked(now); err != nil {
			return 0, err
		}
	}
	return fw.file.Write(p)
}

// Close closes the current file.
func (fw *FileWriter) Close() error {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	if fw.file == nil {
		return nil
	}
	err := fw.file.Close()
	fw.file = nil
	return err
}

// Path returns the file currently written to.
func (fw *FileWriter) Path() string {
	fw.mu.Lock()
	defer fw.mu.Unlock()
	return filepath.Join(fw.dir, fileName(fw.currDate))
}

func (fw *FileWriter) openLocked(now time.Time) error {
	if fw.file != nil {
		fw.file.Close()
		fw.file = nil
	}

	date := now.Format(dateLayout)
	name := fileName(date)

	// Debug logs carry hostnames and usernames; keep them private.
	f, err := os.OpenFile(filepath.Join(fw.dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("opening log file: %w", err)
	}
	fw.file = f
	fw.currDate = date

	fw.linkLatest(name)
	return nil
}

// linkLatest repoints dir/latest at name. Failures are ignored.
func (fw *FileWriter) linkLatest(name string) {
	link := filepath.Join(fw.dir, "latest")
	tmp := link + ".tmp"

	_ = os.Remove(tmp)
	if err := os.Symlink(name, tmp); err != nil {
		return
	}
	_ = os.Rename(tmp, link)
}

func fileName(date string) string {
	return filePrefix + date + fileSuffix
}

var logFilePattern = regexp.MustCompile(`^` + regexp.QuoteMeta(filePrefix) + `\d{4}-\d{2}-\d{2}` + regexp.QuoteMeta(fileSuffix) + `$`)

// Cleanup deletes debug log files in dir dated more than retentionDays ago.
// Other files are left alone.
func Cleanup(dir string, retentionDays int) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !logFilePattern.MatchString(name) {
			continue
		}

		date := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		fileDate, err := time.Parse(dateLayout, date)
		if err != nil {
			continue
		}
		if fileDate.Before(cutoff) {
			_ = os.Remove(filepath.Join(dir, name))
		}
	}
}
