// Package cmd provides the shared wiring helpers used by the gateflow
// binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/gateflow/gateflow/pkg/persistence"
	"github.com/gateflow/gateflow/pkg/persistence/file"
	"github.com/gateflow/gateflow/pkg/persistence/postgresql"
)

// NewPersistence creates a persistence layer from a database URL. The scheme
// selects the implementation; anything unrecognized falls back to file
// storage rooted at the URL path.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch parseScheme(databaseURL) {
	case "postgres", "postgresql":
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}

func parseScheme(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return ""
	}

	return scheme
}
