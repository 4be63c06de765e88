package service

import (
	"encoding/json"
	"fmt"

	lru "github.com/hashicorp/golang-lru"

	"sqlinsight/internal/core"
)

// SchemaCache keeps parsed snapshots keyed by database id and last update,
// so a credentials update naturally invalidates the entry.
type SchemaCache struct {
	cache *lru.Cache
}

func NewSchemaCache(size int) (*SchemaCache, error) {
	if size <= 0 {
		size = 64
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, err
	}
	return &SchemaCache{cache: c}, nil
}

func (c *SchemaCache) Snapshot(db *core.DatabaseConnection) (core.SchemaSnapshot, error) {
	key := fmt.Sprintf("%d:%d", db.ID, db.UpdatedAt.UnixNano())
	if v, ok := c.cache.Get(key); ok {
		return v.(core.SchemaSnapshot), nil
	}

	snapshot := core.SchemaSnapshot{}
	if db.SchemaJSON != "" {
		if err := json.Unmarshal([]byte(db.SchemaJSON), &snapshot); err != nil {
			return nil, fmt.Errorf("stored schema of database %d is corrupt: %w", db.ID, err)
		}
	}
	c.cache.Add(key, snapshot)
	return snapshot, nil
}
