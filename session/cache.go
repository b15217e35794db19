package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	cverrors "github.com/jrsteele09/go-classeviva/internal/errors"
	"github.com/pkg/errors"
)

const cacheFileName = "classeviva-session.json"

// Record is the durable snapshot of a successful login response. The field
// names mirror the wire format so the response can be persisted verbatim.
type Record struct {
	Token     string    `json:"token"`
	Expire    time.Time `json:"expire"` // ISO 8601 with offset on the wire
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Ident     string    `json:"ident"`
}

// FileCache persists the last successful login response as a single JSON
// file. It is read at most once per login attempt and overwritten in full on
// every successful network login. Concurrent processes pointed at the same
// path are not coordinated.
type FileCache struct {
	path string
}

// NewFileCache returns a cache rooted at dir.
func NewFileCache(dir string) *FileCache {
	return &FileCache{path: filepath.Join(dir, cacheFileName)}
}

// Path returns the location of the cache file.
func (c *FileCache) Path() string {
	return c.path
}

// Load returns the cached record when one exists and its expiry is strictly
// later than now. A missing, unreadable, malformed or expired record is
// reported as ErrNoCache; the file itself is left untouched.
func (c *FileCache) Load(now time.Time) (*Record, error) {
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, cverrors.ErrNoCache
	}
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, cverrors.ErrNoCache
	}
	if rec.Token == "" || !rec.Expire.After(now) {
		return nil, cverrors.ErrNoCache
	}
	return &rec, nil
}

// Store overwrites the cache file with rec, creating the directory if needed.
func (c *FileCache) Store(rec *Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileCache.Store] marshal record")
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		return errors.Wrap(err, "[FileCache.Store] create cache dir")
	}
	if err := os.WriteFile(c.path, data, 0o600); err != nil {
		return errors.Wrap(err, "[FileCache.Store] write cache file")
	}
	return nil
}
