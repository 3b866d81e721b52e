package eventlog

import (
	"fmt"
	"os"
	"path/filepath"
)

// journalFileName is the fixed name of the append-only event journal
// within the configured data directory.
const journalFileName = "events.jsonl"

// OpenJournal opens (creating if necessary) the event journal file
// under dataDir in append mode. The caller owns the returned file and
// is responsible for closing it on shutdown.
func OpenJournal(dataDir string) (*os.File, error) {
	path := filepath.Join(dataDir, journalFileName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open journal %q: %w", path, err)
	}
	return f, nil
}
