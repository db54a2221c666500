package store

import (
	"fmt"

	"dialogue/internal/domain"
)

// CurrentSchemaVersion is the current schema version.
// Increment this when making breaking changes to the storage format.
const CurrentSchemaVersion = 1

// MigrationResult describes the result of a migration check.
type MigrationResult struct {
	NeedsInit    bool
	NeedsReembed bool
	Current      domain.StoreInfo
	Wanted       domain.StoreInfo
	Reason       string
}

// CheckMigration compares the embedding space recorded in a store with the
// one the configured encoder produces. Stored vectors from a different model
// or dimension cannot be compared with new queries.
func CheckMigration(current, wanted domain.StoreInfo) *MigrationResult {
	wanted.SchemaVersion = CurrentSchemaVersion
	result := &MigrationResult{Current: current, Wanted: wanted}

	switch {
	case current.SchemaVersion > CurrentSchemaVersion:
		result.NeedsReembed = true
		result.Reason = fmt.Sprintf("store created by newer version (v%d > v%d)", current.SchemaVersion, CurrentSchemaVersion)
	case current.Dimension == 0 && current.Model == "":
		result.NeedsInit = true
		result.Reason = "initializing store info"
	case current.Dimension != 0 && current.Dimension != wanted.Dimension:
		result.NeedsReembed = true
		result.Reason = fmt.Sprintf("embedding dimension changed (%d -> %d)", current.Dimension, wanted.Dimension)
	case current.Model != "" && current.Model != wanted.Model:
		result.NeedsReembed = true
		result.Reason = fmt.Sprintf("embedding model changed (%s -> %s)", current.Model, wanted.Model)
	case current.Model == "" || current.SchemaVersion < CurrentSchemaVersion:
		// vectors are compatible, only the recorded info is incomplete
		result.NeedsInit = true
		result.Reason = "recording embedding model"
	}

	return result
}
