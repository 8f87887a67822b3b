package pbx

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/prober"
)

// ListMessages reads history-messages and active-messages views (whichever
// exist) combined with set-union, deduplicated by message-id, ordered by
// time-sent ascending, limited to batchSize. If since is non-nil, only rows
// with time-sent after it are returned.
func ListMessages(ctx context.Context, pool *pgxpool.Pool, schema prober.Schema, batchSize int, since *time.Time) ([]Message, error) {
	sources := messageSourceUnion(schema)
	if sources == "" {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT message_id, conversation_id, is_external,
		       queue_number, sender_id, sender_name, body, time_sent
		FROM (
			SELECT DISTINCT ON (message_id) message_id, conversation_id, is_external,
			       queue_number, sender_id, sender_name, body, time_sent
			FROM (%s) combined
			WHERE ($1::timestamptz IS NULL OR time_sent > $1)
			ORDER BY message_id, time_sent ASC
		) deduped
		ORDER BY time_sent ASC
		LIMIT $2`, sources)

	rows, err := pool.Query(ctx, query, since, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.SourceID, &m.ConversationID, &m.External, &m.QueueNumber,
			&m.SenderID, &m.SenderName, &m.Body, &m.TimeSent); err != nil {
			return nil, fmt.Errorf("scan message row: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func messageSourceUnion(schema prober.Schema) string {
	const selectCols = `message_id, conversation_id, is_external, queue_number, sender_id, sender_name, body, time_sent`
	switch {
	case schema.HasHistoryMessages && schema.HasActiveMessages:
		return fmt.Sprintf("SELECT %s FROM history_messages UNION SELECT %s FROM active_messages", selectCols, selectCols)
	case schema.HasHistoryMessages:
		return fmt.Sprintf("SELECT %s FROM history_messages", selectCols)
	case schema.HasActiveMessages:
		return fmt.Sprintf("SELECT %s FROM active_messages", selectCols)
	default:
		return ""
	}
}
