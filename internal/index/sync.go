package index

import (
	"log/slog"

	"github.com/starford/daybook/internal/checksum"
	"github.com/starford/daybook/internal/journal"
)

// Sync brings the index up to date with a journal snapshot:
//   - new/changed entries are upserted
//   - entries gone from the journal are deleted from the index
func Sync(db *DB, snap *journal.Snapshot, logger *slog.Logger) error {
	checksums, err := db.AllChecksums()
	if err != nil {
		return err
	}

	present := make(map[string]struct{}, snap.Len())
	for _, e := range snap.Entries() {
		present[e.Date] = struct{}{}

		cs := checksum.SumString(e.Content)
		if checksums[e.Date] == cs {
			continue
		}
		if err := db.UpsertEntry(e.Date, cs, e.Content); err != nil {
			logger.Warn("sync: index failed", slog.String("date", e.Date), slog.String("error", err.Error()))
		} else {
			logger.Debug("sync: indexed", slog.String("date", e.Date))
		}
	}

	// Remove stale rows.
	for d := range checksums {
		if _, ok := present[d]; !ok {
			if err := db.DeleteEntry(d); err != nil {
				logger.Warn("sync: delete failed", slog.String("date", d), slog.String("error", err.Error()))
			} else {
				logger.Debug("sync: removed stale", slog.String("date", d))
			}
		}
	}

	return nil
}
