// Package measurementdb provides the opaque measurement-persistence
// handle spec §6.2/§6.4 name (measurement_db configuration, the
// measurements.db campaign artifact) without specifying any content
// semantics beyond "predictor outputs, opaque to core" (spec §5). DB is
// the narrow interface the discovery loop holds; FileDB is a JSON-lines
// reference implementation good enough to make a campaign runnable
// end-to-end.
package measurementdb

import (
	"encoding/json"
	"os"
	"sync"

	"anica/internal/predmanager"
)

// Record is one persisted (block, predictor, reading) triple. The core
// treats the database as opaque beyond appending and flushing it — no
// query surface is specified, so none is implemented beyond what a
// campaign needs to reopen and inspect its own measurements.db.
type Record struct {
	PredictorKey string              `json:"predictor_key"`
	SchemeIDs    []string            `json:"scheme_ids"`
	Reading      predmanager.Reading `json:"reading"`
}

// DB is the handle the discovery loop is given (spec §5: "the measurement
// database is assumed transactional at the granularity of one batch
// evaluation").
type DB interface {
	// RecordBatch appends one record per block in a single evaluate call,
	// atomically with respect to other RecordBatch calls on the same DB.
	RecordBatch(predictorKey string, blockSchemeIDs [][]string, readings []predmanager.Reading) error
	Close() error
}

// FileDB is a JSON-lines-backed DB: one Record per line, appended under a
// single mutex to honor the batch-atomicity assumption spec §5 states.
type FileDB struct {
	mu sync.Mutex
	f  *os.File
}

// Open creates (or appends to) the measurements.db file at path.
func Open(path string) (*FileDB, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &FileDB{f: f}, nil
}

func (db *FileDB) RecordBatch(predictorKey string, blockSchemeIDs [][]string, readings []predmanager.Reading) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	enc := json.NewEncoder(db.f)
	for i, reading := range readings {
		rec := Record{PredictorKey: predictorKey, SchemeIDs: blockSchemeIDs[i], Reading: reading}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return nil
}

func (db *FileDB) Close() error {
	return db.f.Close()
}

// NullDB discards every record, used when measurement_db is configured as
// null (spec §6.2: "object or null").
type NullDB struct{}

func (NullDB) RecordBatch(string, [][]string, []predmanager.Reading) error { return nil }
func (NullDB) Close() error                                                { return nil }
