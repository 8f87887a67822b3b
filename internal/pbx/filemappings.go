package pbx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ListFileMappings returns (message-id, internal-filename, public-filename,
// file-info) for a set of message ids, from the per-message attachment
// table. Internal filename is the hashed on-disk name; public filename is
// the original name.
func ListFileMappings(ctx context.Context, pool *pgxpool.Pool, messageIDs []string) ([]FileMapping, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}

	rows, err := pool.Query(ctx, `
		SELECT message_id, internal_filename, public_filename, file_info
		FROM message_attachments
		WHERE message_id = ANY($1)`, messageIDs)
	if err != nil {
		return nil, fmt.Errorf("query file mappings: %w", err)
	}
	defer rows.Close()

	var out []FileMapping
	for rows.Next() {
		var fm FileMapping
		var rawInfo []byte
		if err := rows.Scan(&fm.MessageID, &fm.InternalFilename, &fm.PublicFilename, &rawInfo); err != nil {
			return nil, fmt.Errorf("scan file mapping row: %w", err)
		}
		if len(rawInfo) > 0 {
			if err := json.Unmarshal(rawInfo, &fm.FileInfo); err != nil {
				return nil, fmt.Errorf("decode file_info for message %s: %w", fm.MessageID, err)
			}
		}
		out = append(out, fm)
	}
	return out, rows.Err()
}
