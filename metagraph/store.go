package metagraph

import (
	"encoding/json"

	"neurond/chainclient"
	"neurond/logging"

	"github.com/syndtr/goleveldb/leveldb"
)

var snapshotKey = []byte("metagraph/latest")

// Store persists metagraph snapshots so a restarted daemon can serve
// admission decisions before its first sync completes.
type Store struct {
	db *leveldb.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Save(snapshot chainclient.MetagraphSnapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return err
	}
	return s.db.Put(snapshotKey, data, nil)
}

// Load returns the persisted snapshot, or found=false when none exists.
func (s *Store) Load() (chainclient.MetagraphSnapshot, bool, error) {
	data, err := s.db.Get(snapshotKey, nil)
	if err == leveldb.ErrNotFound {
		return chainclient.MetagraphSnapshot{}, false, nil
	}
	if err != nil {
		return chainclient.MetagraphSnapshot{}, false, err
	}
	var snapshot chainclient.MetagraphSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return chainclient.MetagraphSnapshot{}, false, err
	}
	return snapshot, true, nil
}

// LoadInto restores a persisted snapshot into the metagraph, if one exists.
func (m *Metagraph) LoadInto(store *Store) error {
	snapshot, found, err := store.Load()
	if err != nil {
		return err
	}
	if !found {
		logging.Info("no persisted metagraph snapshot", logging.Metagraph)
		return nil
	}
	m.restore(snapshot)
	logging.Info("metagraph loaded from store", logging.Metagraph,
		"block", snapshot.Block, "neurons", len(snapshot.Neurons))
	return nil
}

// SaveTo persists the current cached state.
func (m *Metagraph) SaveTo(store *Store) error {
	return store.Save(m.snapshot())
}
