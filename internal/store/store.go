package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
)

var (
	// ErrMissingRecord indicates the record file does not exist yet.
	ErrMissingRecord = errors.New("publish record not found")
	// ErrCorruptRecord indicates the record file exists but cannot be
	// parsed into the expected shape.
	ErrCorruptRecord = errors.New("publish record is corrupt")
	// ErrNotADirectory indicates the configured path is not a directory.
	ErrNotADirectory = errors.New("not a directory")
)

// timestampLayout is the local date-time format recorded for each version.
const timestampLayout = "2006-01-02 15:04:05"

// Version is a single recorded publication. Immutable once appended.
type Version struct {
	DateTime string `json:"date_time"`
	Hash     string `json:"hash"`
}

// Record is the persisted publish record: the published directory plus
// the chronological, append-only list of its published versions.
type Record struct {
	Directory string    `json:"directory"`
	Versions  []Version `json:"versions"`
}

// Latest returns the most recently appended version.
func (r *Record) Latest() (Version, bool) {
	if len(r.Versions) == 0 {
		return Version{}, false
	}
	return r.Versions[len(r.Versions)-1], true
}

// Append adds a new version entry for hash, timestamped at now.
// Existing entries are never reordered or mutated.
func (r *Record) Append(hash string, now time.Time) {
	r.Versions = append(r.Versions, Version{
		DateTime: now.Format(timestampLayout),
		Hash:     hash,
	})
}

// Store reads and writes the publish record at a fixed path.
type Store struct {
	path string
}

// New creates a store backed by the record file at path.
func New(path string) *Store {
	return &Store{path: path}
}

// Path returns the record file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the record file is present.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// Init creates a fresh record for directory with an empty version list,
// fully overwriting any existing record file. Nothing is written when
// directory does not exist as a directory.
func (s *Store) Init(directory string) (*Record, error) {
	info, err := os.Stat(directory)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, directory)
	}

	rec := &Record{
		Directory: directory,
		Versions:  []Version{},
	}
	if err := s.Save(rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Load reads the record file from disk.
func (s *Store) Load() (*Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrMissingRecord, s.path)
		}
		return nil, fmt.Errorf("failed to read record file: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptRecord, err)
	}
	// Both fields are always present in a well-formed record; a file
	// missing either was not written by this tool.
	if rec.Directory == "" || rec.Versions == nil {
		return nil, fmt.Errorf("%w: missing directory or versions field", ErrCorruptRecord)
	}

	return &rec, nil
}

// Save serializes the record deterministically and replaces the record
// file atomically (temp file in the same directory + rename), so a crash
// mid-write never leaves a truncated record behind.
func (s *Store) Save(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmpFile, err := os.CreateTemp(dir, ".ipfs-publish-tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp record file: %w", err)
	}
	tmpPath := tmpFile.Name()
	defer func() {
		_ = os.Remove(tmpPath)
	}() // cleanup on error

	if _, err := tmpFile.Write(data); err != nil {
		_ = tmpFile.Close()
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := tmpFile.Chmod(0644); err != nil {
		_ = tmpFile.Close()
		return err
	}
	if err := tmpFile.Close(); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("failed to replace record file: %w", err)
	}

	return nil
}

// Lock takes an advisory lock guarding the load-modify-save cycle, so
// two concurrent publish invocations cannot lose an update. The returned
// function releases the lock.
func (s *Store) Lock() (func(), error) {
	fl := flock.New(s.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("failed to lock record file: %w", err)
	}
	return func() {
		_ = fl.Unlock()
	}, nil
}
