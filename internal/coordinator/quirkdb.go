package coordinator

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"fp300-bridge/internal/zcl"
)

// Quirk adapts a device model whose attributes do not map one to one onto
// the cache, typically because it packs several values into one
// manufacturer attribute.
type Quirk interface {
	Manufacturer() string
	Model() string

	// Clusters returns the cluster definitions the quirk needs registered.
	Clusters() []zcl.ClusterDef

	// TranslateReport turns one received value into ordered cache updates.
	TranslateReport(clusterID, attrID uint16, value any) []zcl.AttributeUpdate

	// TranslateWrite splits a write on clusterID into updates applied to the
	// cache right away and updates sent to the device. current is the cached
	// state of clusterID before the write.
	TranslateWrite(clusterID uint16, values []zcl.AttributeUpdate, current map[uint16]any) (local, remote []zcl.AttributeUpdate)
}

// QuirkDB holds quirks keyed by manufacturer+model.
type QuirkDB struct {
	mu     sync.RWMutex
	quirks map[string]Quirk
}

func quirkKey(manufacturer, model string) string {
	return manufacturer + "\x00" + model
}

// NewQuirkDB creates an empty quirk database.
func NewQuirkDB() *QuirkDB {
	return &QuirkDB{quirks: make(map[string]Quirk)}
}

// Add registers a quirk for its own identity and for any extra manufacturer
// names the same model reports under.
func (db *QuirkDB) Add(q Quirk, aliases ...string) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.quirks[quirkKey(q.Manufacturer(), q.Model())] = q
	for _, m := range aliases {
		db.quirks[quirkKey(m, q.Model())] = q
	}
}

// Lookup finds the quirk for a manufacturer and model, or nil.
func (db *QuirkDB) Lookup(manufacturer, model string) Quirk {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.quirks[quirkKey(manufacturer, model)]
}

// ByModel returns a quirk registered for model under any manufacturer, or nil.
func (db *QuirkDB) ByModel(model string) Quirk {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, q := range db.quirks {
		if q.Model() == model {
			return q
		}
	}
	return nil
}

// Len returns the number of registered identities.
func (db *QuirkDB) Len() int {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return len(db.quirks)
}

// RegisterClusters adds the cluster definitions of every quirk to a registry.
func (db *QuirkDB) RegisterClusters(registry *zcl.Registry) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	seen := make(map[Quirk]bool)
	for _, q := range db.quirks {
		if seen[q] {
			continue
		}
		seen[q] = true
		for _, c := range q.Clusters() {
			registry.Register(c)
		}
	}
}

// Alias maps another manufacturer string onto the quirk for a model.
type Alias struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
}

// definitionFile is the JSON structure for files in the definitions directory.
type definitionFile struct {
	Clusters []zcl.ClusterDef `json:"clusters,omitempty"`
	Aliases  []Alias          `json:"aliases,omitempty"`
}

// LoadDefinitionDir reads all *.json files from a directory, registering
// extra clusters into the registry and quirk aliases into db. A missing or
// empty directory is not an error.
func LoadDefinitionDir(dir string, registry *zcl.Registry, db *QuirkDB, logger *slog.Logger) error {
	matches, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return fmt.Errorf("glob definitions dir: %w", err)
	}
	if len(matches) == 0 {
		logger.Info("no definition files found", "dir", dir)
		return nil
	}

	for _, path := range matches {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		var df definitionFile
		if err := json.Unmarshal(data, &df); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}

		for _, c := range df.Clusters {
			registry.Register(c)
		}
		for _, a := range df.Aliases {
			q := db.ByModel(a.Model)
			if q == nil {
				logger.Warn("alias for model without quirk", "path", filepath.Base(path), "model", a.Model)
				continue
			}
			db.Add(q, a.Manufacturer)
		}
		logger.Info("loaded definition file", "path", filepath.Base(path),
			"clusters", len(df.Clusters), "aliases", len(df.Aliases))
	}
	return nil
}
