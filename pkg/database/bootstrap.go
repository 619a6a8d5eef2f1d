package database

import (
	"fmt"
	"io/fs"
	"sort"

	schemasql "herald/pkg/database/sql"
	"herald/pkg/logging"
)

// Bootstrap applies the embedded schema files in lexical order. Statements use
// IF NOT EXISTS guards, so running it on every startup is safe.
func Bootstrap(db PostgresConn, logger logging.Logger) error {
	entries, err := fs.Glob(schemasql.Content, "schema/*.sql")
	if err != nil {
		return fmt.Errorf("failed to list schema files: %w", err)
	}
	sort.Strings(entries)

	for _, name := range entries {
		contents, err := fs.ReadFile(schemasql.Content, name)
		if err != nil {
			return fmt.Errorf("failed to read schema file %s: %w", name, err)
		}
		if _, err := db.Exec(string(contents)); err != nil {
			return fmt.Errorf("failed to apply schema file %s: %w", name, err)
		}
		logger.WithField("file", name).Debug("Applied schema file")
	}

	return nil
}
