package pbx

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/timeshareflow/pbxsync/internal/prober"
)

// ListConversations fetches metadata for a set of observed conversation ids
// from history-chat and/or active-chat views, deduplicated by conversation
// id taking the most recent row.
func ListConversations(ctx context.Context, pool *pgxpool.Pool, schema prober.Schema, conversationIDs []string) ([]Conversation, error) {
	sources := chatSourceUnion(schema)
	if sources == "" || len(conversationIDs) == 0 {
		return nil, nil
	}

	query := fmt.Sprintf(`
		SELECT DISTINCT ON (conversation_id) conversation_id,
		       COALESCE(public_name, generated_name) AS chat_name,
		       is_external, participant_count
		FROM (%s) combined
		WHERE conversation_id = ANY($1)
		ORDER BY conversation_id, updated_at DESC`, sources)

	rows, err := pool.Query(ctx, query, conversationIDs)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		var participantCount int
		if err := rows.Scan(&c.SourceID, &c.ChatName, &c.External, &participantCount); err != nil {
			return nil, fmt.Errorf("scan conversation row: %w", err)
		}
		c.IsGroupChat = participantCount > 2
		out = append(out, c)
	}
	return out, rows.Err()
}

func chatSourceUnion(schema prober.Schema) string {
	const selectCols = `conversation_id, public_name, generated_name, is_external, participant_count, updated_at`
	switch {
	case schema.HasHistoryChat && schema.HasActiveChat:
		return fmt.Sprintf("SELECT %s FROM history_chat UNION SELECT %s FROM active_chat", selectCols, selectCols)
	case schema.HasHistoryChat:
		return fmt.Sprintf("SELECT %s FROM history_chat", selectCols)
	case schema.HasActiveChat:
		return fmt.Sprintf("SELECT %s FROM active_chat", selectCols)
	default:
		return ""
	}
}

// ListAllLiveConversations returns every conversation, including ones with
// no messages yet, via a LEFT JOIN of the conversation table to messages.
// Group detection is public_name IS NOT NULL OR participant-array-length > 2.
func ListAllLiveConversations(ctx context.Context, pool *pgxpool.Pool, batchSize int) ([]Conversation, error) {
	rows, err := pool.Query(ctx, `
		SELECT c.id,
		       COALESCE(c.public_name, c.generated_name, '') AS chat_name,
		       c.is_external,
		       COUNT(m.id) AS message_count,
		       (c.public_name IS NOT NULL OR array_length(c.participant_ids, 1) > 2) AS is_group_chat
		FROM conversations c
		LEFT JOIN messages m ON m.conversation_id = c.id
		GROUP BY c.id, c.public_name, c.generated_name, c.is_external, c.participant_ids
		ORDER BY c.id
		LIMIT $1`, batchSize)
	if err != nil {
		return nil, fmt.Errorf("query live conversations: %w", err)
	}
	defer rows.Close()

	var out []Conversation
	for rows.Next() {
		var c Conversation
		if err := rows.Scan(&c.SourceID, &c.ChatName, &c.External, &c.MessageCount, &c.IsGroupChat); err != nil {
			return nil, fmt.Errorf("scan live conversation row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
