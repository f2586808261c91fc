// Package archive provides cold storage for posts that have left the live
// feed. Archived posts are serialized to JSON, compressed with zstd, and
// written to a BoltDB (bbolt) file keyed by post ID.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	bolt "go.etcd.io/bbolt"

	"kapitbahay/internal/models"
)

// BucketPosts stores compressed post records keyed by post ID.
var BucketPosts = []byte("archived_posts")

// Store wraps a BoltDB database holding archived posts.
type Store struct {
	db      *bolt.DB
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Options configures the archive store.
type Options struct {
	// Path to the database file. Parent directories will be created if needed.
	Path string

	// Timeout for obtaining a file lock on the database.
	// If zero, a default of 5 seconds is used.
	Timeout time.Duration

	// FileMode for creating the database file.
	// If zero, 0600 is used.
	FileMode os.FileMode
}

// DefaultOptions returns sensible defaults for development.
func DefaultOptions() Options {
	return Options{
		Path:     "kapitbahay-archive.db",
		Timeout:  5 * time.Second,
		FileMode: 0600,
	}
}

// Open creates or opens the archive database at the specified path.
func Open(opts Options) (*Store, error) {
	if opts.Path == "" {
		opts.Path = "kapitbahay-archive.db"
	}
	if opts.Timeout == 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.FileMode == 0 {
		opts.FileMode = 0600
	}

	dir := filepath.Dir(opts.Path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	db, err := bolt.Open(opts.Path, opts.FileMode, &bolt.Options{
		Timeout: opts.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open archive database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(BucketPosts)
		if err != nil {
			return fmt.Errorf("failed to create bucket %s: %w", BucketPosts, err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	encoder, err := zstd.NewWriter(nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	return &Store{db: db, encoder: encoder, decoder: decoder}, nil
}

// Close closes the database and releases the compression state.
func (s *Store) Close() error {
	s.encoder.Close()
	s.decoder.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Put writes a batch of posts to the archive in a single transaction.
// Writing a post that is already archived overwrites it.
func (s *Store) Put(posts []models.Post) error {
	if len(posts) == 0 {
		return nil
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(BucketPosts)
		for i := range posts {
			raw, err := json.Marshal(&posts[i])
			if err != nil {
				return fmt.Errorf("failed to marshal post %s: %w", posts[i].ID, err)
			}
			compressed := s.encoder.EncodeAll(raw, nil)
			if err := bucket.Put([]byte(posts[i].ID), compressed); err != nil {
				return fmt.Errorf("failed to write post %s: %w", posts[i].ID, err)
			}
		}
		return nil
	})
}

// Get retrieves an archived post by ID. Returns (nil, nil) if not archived.
func (s *Store) Get(id string) (*models.Post, error) {
	var post *models.Post
	err := s.db.View(func(tx *bolt.Tx) error {
		compressed := tx.Bucket(BucketPosts).Get([]byte(id))
		if compressed == nil {
			return nil
		}
		raw, err := s.decoder.DecodeAll(compressed, nil)
		if err != nil {
			return fmt.Errorf("failed to decompress post %s: %w", id, err)
		}
		var p models.Post
		if err := json.Unmarshal(raw, &p); err != nil {
			return fmt.Errorf("failed to unmarshal post %s: %w", id, err)
		}
		post = &p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return post, nil
}

// Count returns the number of archived posts.
func (s *Store) Count() (int, error) {
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(BucketPosts).Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}
