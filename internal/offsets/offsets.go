// Package offsets remembers the sync offset chosen for each track. Only the
// offset is stored, never lyric text.
package offsets

import (
	"bytes"
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"go.etcd.io/bbolt"

	"karolbroda.com/lyricsync/internal/track"
)

const entryVersion = 1

var offsetsBucket = []byte("offsets")

var (
	ErrNotFound = errors.New("no offset stored")
	ErrCorrupt  = errors.New("offset entry corrupt")
)

type Entry struct {
	Version   uint8
	Artist    string
	Title     string
	Offset    float64
	CreatedAt int64
	UpdatedAt int64
}

func (e *Entry) Updated() time.Time {
	return time.Unix(e.UpdatedAt, 0)
}

type Store struct {
	db  *bbolt.DB
	now func() time.Time
}

func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("could not create data directory: %w", err)
	}

	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("could not open offsets database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(offsetsBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("could not create offsets bucket: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func generateKey(artist, title string) []byte {
	normalized := strings.ToLower(strings.TrimSpace(artist)) + "|" + strings.ToLower(strings.TrimSpace(title))
	hash := sha256.Sum256([]byte(normalized))
	return []byte(hex.EncodeToString(hash[:12]))
}

func (s *Store) Get(artist, title string) (*Entry, error) {
	if artist == "" || title == "" {
		return nil, ErrNotFound
	}

	var entry *Entry
	err := s.db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(offsetsBucket).Get(generateKey(artist, title))
		if raw == nil {
			return ErrNotFound
		}
		decoded, err := decodeEntry(raw)
		if err != nil {
			return err
		}
		entry = decoded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *Store) Set(artist, title string, offset float64) error {
	if artist == "" || title == "" {
		return errors.New("invalid artist or title")
	}

	key := generateKey(artist, title)
	now := s.now().Unix()

	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(offsetsBucket)

		entry := &Entry{CreatedAt: now}
		if raw := b.Get(key); raw != nil {
			if existing, err := decodeEntry(raw); err == nil {
				entry.CreatedAt = existing.CreatedAt
			}
		}

		entry.Version = entryVersion
		entry.Artist = artist
		entry.Title = title
		entry.Offset = offset
		entry.UpdatedAt = now

		value, err := encodeEntry(entry)
		if err != nil {
			return fmt.Errorf("error serializing offset entry: %w", err)
		}
		return b.Put(key, value)
	})
}

func (s *Store) Delete(artist, title string) error {
	if artist == "" || title == "" {
		return errors.New("invalid artist or title")
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(offsetsBucket).Delete(generateKey(artist, title))
	})
}

// List returns every readable entry, most recently updated first. Corrupt
// entries are skipped.
func (s *Store) List() ([]*Entry, error) {
	var entries []*Entry

	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(offsetsBucket).ForEach(func(k, v []byte) error {
			entry, err := decodeEntry(v)
			if err != nil {
				log.Debug().Str("component", "offsets").Str("key", string(k)).Err(err).Msg("skipping entry")
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].UpdatedAt > entries[j].UpdatedAt
	})
	return entries, nil
}

// Clear removes all entries and reports how many there were.
func (s *Store) Clear() (int, error) {
	count := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(offsetsBucket).ForEach(func(_, _ []byte) error {
			count++
			return nil
		}); err != nil {
			return err
		}
		if err := tx.DeleteBucket(offsetsBucket); err != nil {
			return err
		}
		_, err := tx.CreateBucket(offsetsBucket)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// Lookup reports the remembered offset for trk. Read errors are logged and
// treated as "none".
func (s *Store) Lookup(trk *track.Info) (float64, bool) {
	if !trk.IsValid() {
		return 0, false
	}

	entry, err := s.Get(trk.Artist, trk.Title)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			log.Warn().Str("component", "offsets").Str("track", trk.String()).Err(err).Msg("could not read offset")
		}
		return 0, false
	}
	return entry.Offset, true
}

func (s *Store) Remember(trk *track.Info, offset float64) error {
	if !trk.IsValid() {
		return errors.New("track has no title or artist")
	}
	return s.Set(trk.Artist, trk.Title, offset)
}

func encodeEntry(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeEntry(raw []byte) (*Entry, error) {
	var entry Entry
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry); err != nil {
		return nil, ErrCorrupt
	}
	// version mismatch means stale format
	if entry.Version != entryVersion {
		return nil, ErrCorrupt
	}
	return &entry, nil
}
