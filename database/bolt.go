package database

import (
	"log/slog"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/common"

	bolt "go.etcd.io/bbolt"
)

type BoltStore struct {
	innerDb *bolt.DB
	path    string
}

func OpenBolt(path string) (*BoltStore, error) {
	if common.ExistFile(path) {
		slog.Info("found existing snapshot database", "path", path)
	}
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(SNAPSHOT_BUCKET))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltStore{innerDb: db, path: path}, nil
}

func (s *BoltStore) Save(data *blockchain.ChainData) error {
	enc, err := common.Encode(data)
	if err != nil {
		return err
	}
	return s.innerDb.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(SNAPSHOT_BUCKET))
		err := b.Put([]byte(LATEST_TAG), enc)
		if err != nil {
			return err
		}
		return b.Put([]byte(LENGTH_TAG), encodeLength(len(data.Chain)))
	})
}

func (s *BoltStore) Load() (*blockchain.ChainData, error) {
	var enc []byte
	err := s.innerDb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(SNAPSHOT_BUCKET))
		v := b.Get([]byte(LATEST_TAG))
		if v != nil {
			// bolt values are only valid inside the transaction
			enc = append([]byte{}, v...)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if enc == nil {
		return nil, nil
	}
	return blockchain.DecodeChainData(enc)
}

func (s *BoltStore) Length() (int, error) {
	var n int
	err := s.innerDb.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(SNAPSHOT_BUCKET))
		var err error
		n, err = decodeLength(b.Get([]byte(LENGTH_TAG)))
		return err
	})
	return n, err
}

func (s *BoltStore) Backend() string {
	return BOLT_BACKEND
}

func (s *BoltStore) Path() string {
	return s.path
}

func (s *BoltStore) Close() error {
	return s.innerDb.Close()
}
