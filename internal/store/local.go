package store

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"

	"github.com/Skufu/GoTriage/internal/models"
)

// maxLineBytes bounds a single record line. Append refuses larger records and
// LoadAll skips longer lines.
const maxLineBytes = 8 << 20

var ErrRecordTooLarge = errors.New("record exceeds local log line limit")

// LocalStore is an append-only JSON-lines log of patient records, used when
// the remote database is unreachable or not configured.
type LocalStore struct {
	path    string
	maxLine int
	mu      sync.Mutex
}

func NewLocalStore(path string) *LocalStore {
	return &LocalStore{path: path, maxLine: maxLineBytes}
}

func (s *LocalStore) Path() string {
	return s.path
}

// Append writes the record as one line. The whole line goes out in a single
// write on an O_APPEND descriptor.
func (s *LocalStore) Append(record models.PatientRecord) error {
	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if len(line) > s.maxLine {
		return fmt.Errorf("%w: %d bytes", ErrRecordTooLarge, len(line))
	}
	line = append(line, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open local records: %w", err)
	}
	if _, err := f.Write(line); err != nil {
		f.Close()
		return fmt.Errorf("append local record: %w", err)
	}
	return f.Close()
}

// LoadAll returns every readable record in file order. Blank and malformed
// lines are skipped; a missing file is an empty log.
func (s *LocalStore) LoadAll() ([]models.PatientRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.PatientRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open local records: %w", err)
	}
	defer f.Close()

	records := []models.PatientRecord{}
	reader := bufio.NewReaderSize(f, 64*1024)
	for {
		line, skipped, err := readLine(reader, s.maxLine)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return records, fmt.Errorf("read local records: %w", err)
		}
		line = bytes.TrimSpace(line)
		if skipped || len(line) == 0 {
			continue
		}
		var rec models.PatientRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// readLine returns the next line without its terminator. A line longer than
// limit is drained and reported as skipped so reading can continue after it.
func readLine(r *bufio.Reader, limit int) ([]byte, bool, error) {
	var line []byte
	skipped := false
	for {
		chunk, isPrefix, err := r.ReadLine()
		if err != nil {
			return line, skipped, err
		}
		if !skipped {
			if len(line)+len(chunk) > limit {
				skipped, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if !isPrefix {
			return line, skipped, nil
		}
	}
}

// FindByID scans the log for the first record whose string-normalised id
// matches.
func (s *LocalStore) FindByID(id string) (models.PatientRecord, bool, error) {
	if id == "" {
		return models.PatientRecord{}, false, nil
	}
	records, err := s.LoadAll()
	for _, rec := range records {
		if rec.ID.String() == id {
			return rec, true, nil
		}
	}
	return models.PatientRecord{}, false, err
}

// Repository adapts the log to the Repository interface used by the chain.
func (s *LocalStore) Repository() Repository {
	return localRepository{store: s}
}

type localRepository struct {
	store *LocalStore
}

func (r localRepository) Name() string { return "local" }

func (r localRepository) Insert(_ context.Context, record models.PatientRecord) (models.PatientRecord, error) {
	if record.ID == "" {
		return models.PatientRecord{}, errors.New("local insert requires an id")
	}
	if err := r.store.Append(record); err != nil {
		return models.PatientRecord{}, err
	}
	return record, nil
}

func (r localRepository) FindByID(_ context.Context, id string) (models.PatientRecord, error) {
	rec, ok, err := r.store.FindByID(id)
	if err != nil {
		return models.PatientRecord{}, err
	}
	if !ok {
		return models.PatientRecord{}, ErrRecordNotFound
	}
	return rec, nil
}

func (r localRepository) List(_ context.Context) ([]models.PatientRecord, error) {
	return r.store.LoadAll()
}
