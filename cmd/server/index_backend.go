package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"eventengine.ai/internal/catalogs"
	"eventengine.ai/internal/engine"
	"eventengine.ai/internal/engine/driver"
	"eventengine.ai/internal/persistence/indexdb"
	"eventengine.ai/internal/tuning"
)

type runtimeIndex interface {
	driver.RoundSink
	engine.FaultSink
	Close() error
	UpsertCatalogs(cat *catalogs.EventCatalog, tune tuning.Tuning) error
	Recent(ctx context.Context, limit int) ([]driver.RoundRecord, error)
}

func openRuntimeIndex(dataDir, backend string, disableDB bool) (runtimeIndex, error) {
	if disableDB {
		return nil, nil
	}
	backend = strings.ToLower(strings.TrimSpace(backend))
	if backend == "" {
		backend = "sqlite"
	}

	switch backend {
	case "none", "off", "disabled":
		return nil, nil
	case "sqlite":
		return indexdb.OpenSQLite(filepath.Join(dataDir, "index", "rounds.sqlite"))
	default:
		return nil, fmt.Errorf("unsupported EE_INDEX_BACKEND: %s", backend)
	}
}

// faultSinks writes each fault to every sink; one failing sink does not
// starve the others.
type faultSinks []engine.FaultSink

func (s faultSinks) WriteFault(entry engine.FaultEntry) error {
	var first error
	for _, sink := range s {
		if err := sink.WriteFault(entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
