package boltdb

import (
	"encoding/json"
	"fmt"
	"net/url"

	"go.etcd.io/bbolt"

	"github.com/alanbriolat/bsky-video-dl/internal/address"
)

var Buckets = struct {
	Metadata []byte
	Address  []byte
}{
	Metadata: []byte("__metadata__"),
	Address:  []byte("address"),
}

var MetadataKeys = struct {
	Version []byte
}{
	Version: []byte("version"),
}

var AddressKeys = struct {
	Current []byte
}{
	Current: []byte("current"),
}

const currentVersion = 1

type Database interface {
	Close() error
	Version() (int, error)

	address.Address
}

type database struct {
	*bbolt.DB
}

func New(path string) (_ Database, err error) {
	db, err := bbolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bbolt.Tx) (err error) {
		// Ensure buckets exist
		var metadata *bbolt.Bucket
		if metadata, err = tx.CreateBucketIfNotExists(Buckets.Metadata); err != nil {
			return err
		}
		if _, err := tx.CreateBucketIfNotExists(Buckets.Address); err != nil {
			return err
		}

		var version int
		if versionBytes := metadata.Get(MetadataKeys.Version); versionBytes != nil {
			if err = json.Unmarshal(versionBytes, &version); err != nil {
				return err
			}
		}
		if version > currentVersion {
			return fmt.Errorf("database version %d is newer than supported version %d", version, currentVersion)
		}

		if versionBytes, err := json.Marshal(currentVersion); err != nil {
			return err
		} else if err = metadata.Put(MetadataKeys.Version, versionBytes); err != nil {
			return err
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return &database{db}, nil
}

func (d database) Version() (version int, err error) {
	err = d.View(func(tx *bbolt.Tx) error {
		return json.Unmarshal(tx.Bucket(Buckets.Metadata).Get(MetadataKeys.Version), &version)
	})
	return version, err
}

// Current returns the stored address, or an empty URL if nothing has been stored yet.
func (d database) Current() (u *url.URL, err error) {
	var raw string
	err = d.View(func(tx *bbolt.Tx) error {
		raw = string(tx.Bucket(Buckets.Address).Get(AddressKeys.Current))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return url.Parse(raw)
}

func (d database) Replace(u *url.URL) error {
	return d.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(Buckets.Address).Put(AddressKeys.Current, []byte(u.String()))
	})
}
