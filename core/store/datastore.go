package store

import (
	"database/sql"
	"encoding/json"
	"sort"

	"github.com/fatih/color"
	"github.com/liamzebedee/pogsim/core/pog"
	"github.com/pkg/errors"
)

// DataStore is a generic interface for reading/writing persistent data to the
// database. Stores live under a unique key and are serialised using JSON.
type DataStore interface {
	PresetsStore | ExplorerStore
}

// User-defined parameter sets, in addition to the built-in presets.
type PresetsStore struct {
	Presets []pog.Preset `json:"presets"`
}

// Settings of the results explorer.
type ExplorerStore struct {
	// The run shown by default.
	PinnedRun string `json:"pinnedRun"`
}

const (
	PresetsStoreKey  = "presets"
	ExplorerStoreKey = "explorer"
)

// Load a data store from the database by key. A missing store loads empty.
func LoadDataStore[T DataStore](db *sql.DB, key string) (*T, error) {
	buf := []byte("{}")
	err := db.QueryRow("SELECT v FROM datastores WHERE k = ?", key).Scan(&buf)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}

	// Decode the data into the store.
	var store T
	err = json.Unmarshal(buf, &store)
	if err != nil {
		return nil, errors.Wrapf(err, "decoding store %s", key)
	}

	dbLog.Printf("store name=%s loaded\n", color.HiYellowString(key))
	return &store, nil
}

// Persist a data store to the database under the given key.
func SaveDataStore[T DataStore](db *sql.DB, key string, value T) error {
	// Encode the store into a byte slice.
	buf, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encoding store %s", key)
	}

	// Perform an upsert (insert or update) operation.
	_, err = db.Exec("INSERT INTO datastores (k, v) VALUES (?, ?) ON CONFLICT(k) DO UPDATE SET v = excluded.v", key, buf)
	if err != nil {
		return err
	}

	dbLog.Printf("store name=%s saved\n", color.HiYellowString(key))
	return nil
}

// SavePreset adds or replaces a user preset.
func SavePreset(db *sql.DB, preset pog.Preset) error {
	if err := preset.Config.Validate(); err != nil {
		return err
	}
	store, err := LoadDataStore[PresetsStore](db, PresetsStoreKey)
	if err != nil {
		return err
	}

	replaced := false
	for i, p := range store.Presets {
		if p.Name == preset.Name {
			store.Presets[i] = preset
			replaced = true
		}
	}
	if !replaced {
		store.Presets = append(store.Presets, preset)
	}
	sort.Slice(store.Presets, func(i, j int) bool {
		return store.Presets[i].Name < store.Presets[j].Name
	})

	return SaveDataStore(db, PresetsStoreKey, *store)
}

// GetPresets returns the built-in presets merged with the user's. A user
// preset shadows a built-in one of the same name.
func GetPresets(db *sql.DB) (map[string]pog.Preset, error) {
	presets := pog.GetPresets()
	store, err := LoadDataStore[PresetsStore](db, PresetsStoreKey)
	if err != nil {
		return nil, err
	}
	for _, p := range store.Presets {
		presets[p.Name] = p
	}
	return presets, nil
}
