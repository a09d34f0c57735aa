package host

import (
	"bytes"
	"fmt"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"
)

// Store is the shared key-value surface behind the kv callbacks. Entries are
// namespaced per plugin; a plugin can never see another plugin's keys.
type Store interface {
	Get(pluginName string, key string) (string, error)
	Set(pluginName string, key string, value string) error
	Delete(pluginName string, key string) error
	List(pluginName string, prefix string) ([]string, error)
	Count(pluginName string) (int, error)
	Close() error
}

// nsSeparator joins plugin name and key into one stored key. Plugin names are
// directory basenames, which cannot contain NUL, so namespaces cannot collide
// or be forged from Lua.
const nsSeparator = "\x00"

var kvBucket = []byte("plugin_kv")

// BoltStore keeps every entry in a single bucket under composite keys of the
// form <plugin>\x00<key>. One cursor seek serves lookups, prefix scans, and
// per-plugin counts alike.
type BoltStore struct {
	db *bbolt.DB
}

// newBoltStore opens (or creates) the store file and its bucket.
func newBoltStore(path string) (*BoltStore, error) {
	if filepath.Ext(path) == "" {
		path = path + ".db"
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open kv store: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(kvBucket)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare kv store: %w", err)
	}

	return &BoltStore{db: db}, nil
}

// nsKey builds the composite key a plugin's entry is stored under.
func nsKey(pluginName string, key string) []byte {
	return []byte(pluginName + nsSeparator + key)
}

// nsPrefix is the range every key of a plugin falls under.
func nsPrefix(pluginName string) []byte {
	return []byte(pluginName + nsSeparator)
}

// Get retrieves a value; missing keys come back as the empty string.
func (s *BoltStore) Get(pluginName string, key string) (string, error) {
	var val string

	err := s.db.View(func(tx *bbolt.Tx) error {
		if v := tx.Bucket(kvBucket).Get(nsKey(pluginName, key)); v != nil {
			val = string(v)
		}
		return nil
	})

	return val, err
}

// Set stores a value in the plugin's namespace.
func (s *BoltStore) Set(pluginName string, key string, value string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Put(nsKey(pluginName, key), []byte(value))
	})
}

// Delete removes a value. Deleting a missing key is not an error.
func (s *BoltStore) Delete(pluginName string, key string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvBucket).Delete(nsKey(pluginName, key))
	})
}

// List returns the plugin's keys starting with the given prefix, with the
// namespace stripped back off.
func (s *BoltStore) List(pluginName string, prefix string) ([]string, error) {
	var keys []string

	ns := nsPrefix(pluginName)
	scan := nsKey(pluginName, prefix)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(kvBucket).Cursor()

		for k, _ := c.Seek(scan); k != nil && bytes.HasPrefix(k, scan); k, _ = c.Next() {
			keys = append(keys, string(bytes.TrimPrefix(k, ns)))
		}

		return nil
	})

	return keys, err
}

// Count returns how many entries the plugin has stored.
func (s *BoltStore) Count(pluginName string) (int, error) {
	n := 0
	ns := nsPrefix(pluginName)

	err := s.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(kvBucket).Cursor()

		for k, _ := c.Seek(ns); k != nil && bytes.HasPrefix(k, ns); k, _ = c.Next() {
			n++
		}

		return nil
	})

	return n, err
}

// Close closes the database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}
