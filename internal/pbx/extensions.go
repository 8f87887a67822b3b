package pbx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/prober"
)

// ListExtensions projects (source-id, extension-number, first-name,
// last-name) from the users view joined to the users table, falling back to
// the dn table filtered to voice-capable rows when the users view is absent.
func ListExtensions(ctx context.Context, pool *pgxpool.Pool, schema prober.Schema, batchSize int) ([]Extension, error) {
	if schema.HasUsersView {
		return queryExtensionsFromUsersView(ctx, pool, batchSize)
	}
	if schema.HasDN {
		return queryExtensionsFromDN(ctx, pool, batchSize)
	}
	return nil, nil
}

func queryExtensionsFromUsersView(ctx context.Context, pool *pgxpool.Pool, batchSize int) ([]Extension, error) {
	rows, err := pool.Query(ctx, `
		SELECT u.id, uv.extension_number, uv.first_name, uv.last_name
		FROM users_view uv
		JOIN users u ON u.id = uv.user_id
		ORDER BY uv.extension_number
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query extensions (users_view): %w", err)
	}
	defer rows.Close()
	return scanExtensions(rows)
}

func queryExtensionsFromDN(ctx context.Context, pool *pgxpool.Pool, batchSize int) ([]Extension, error) {
	rows, err := pool.Query(ctx, `
		SELECT id, number, first_name, last_name
		FROM dn
		WHERE voice_capable = true
		ORDER BY number
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query extensions (dn): %w", err)
	}
	defer rows.Close()
	return scanExtensions(rows)
}

type rowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanExtensions(rows rowScanner) ([]Extension, error) {
	var out []Extension
	for rows.Next() {
		var e Extension
		if err := rows.Scan(&e.SourceID, &e.Number, &e.FirstName, &e.LastName); err != nil {
			return nil, fmt.Errorf("scan extension row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
