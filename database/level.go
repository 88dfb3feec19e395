package database

import (
	"errors"
	"log/slog"
	"simple-ledger-go/blockchain"
	"simple-ledger-go/common"

	"github.com/syndtr/goleveldb/leveldb"
)

type LevelStore struct {
	innerDb *leveldb.DB
	path    string
}

func OpenLevel(path string) (*LevelStore, error) {
	if common.ExistFile(path) {
		slog.Info("found existing snapshot database", "path", path)
	}
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &LevelStore{innerDb: db, path: path}, nil
}

func (s *LevelStore) Save(data *blockchain.ChainData) error {
	enc, err := common.Encode(data)
	if err != nil {
		return err
	}
	batch := new(leveldb.Batch)
	batch.Put([]byte(LATEST_TAG), enc)
	batch.Put([]byte(LENGTH_TAG), encodeLength(len(data.Chain)))
	return s.innerDb.Write(batch, nil)
}

func (s *LevelStore) Load() (*blockchain.ChainData, error) {
	enc, err := s.innerDb.Get([]byte(LATEST_TAG), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return blockchain.DecodeChainData(enc)
}

func (s *LevelStore) Length() (int, error) {
	bs, err := s.innerDb.Get([]byte(LENGTH_TAG), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return decodeLength(bs)
}

func (s *LevelStore) Backend() string {
	return LEVEL_BACKEND
}

func (s *LevelStore) Path() string {
	return s.path
}

func (s *LevelStore) Close() error {
	return s.innerDb.Close()
}
