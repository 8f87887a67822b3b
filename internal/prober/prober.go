package prober

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// The candidate lists below name every view/table the prober checks for in
// one round trip, one list per logical source.
var (
	chatViewCandidates       = []string{"active_chat", "history_chat"}
	messageViewCandidates    = []string{"active_messages", "history_messages"}
	callLogCandidates        = []string{"myphone_callhistory_v14", "cl", "callhistory3", "cdr", "callhistory", "call_history"}
	recordingsTable          = "recordings"
	voicemailTable           = "s_voicemail"
	usersViewCandidate       = "users_view"
	dnTableCandidate         = "dn"
)

// Schema records which PBX-schema variants exist for a tenant, as probed via
// information_schema. A zero-value field means the stage has nothing to
// read from and must return items-synced=0 with a diagnostic note.
type Schema struct {
	HasActiveChat      bool
	HasHistoryChat     bool
	HasActiveMessages  bool
	HasHistoryMessages bool
	CallLogSource      string // highest-priority callLogCandidates entry present, or ""
	HasRecordings      bool
	HasVoicemail       bool
	HasUsersView       bool
	HasDN              bool
}

// AnyChatSource reports whether either chat view exists.
func (s Schema) AnyChatSource() bool { return s.HasActiveChat || s.HasHistoryChat }

// AnyMessageSource reports whether either messages view exists.
func (s Schema) AnyMessageSource() bool { return s.HasActiveMessages || s.HasHistoryMessages }

// Prober inspects a tenant's tunneled Postgres connection for the known
// candidate set of PBX schema objects.
type Prober struct{}

// New constructs a Prober. It holds no state; the scheduler probes once per
// tick, before that tick's stages run, rather than caching results across ticks, since
// a PBX upgrade can change the schema between runs.
func New() *Prober {
	return &Prober{}
}

// Probe queries information_schema.views and information_schema.tables for
// every known candidate name and resolves the Schema for this tenant.
func (p *Prober) Probe(ctx context.Context, pool *pgxpool.Pool) (Schema, error) {
	viewNames, err := existingRelations(ctx, pool, "information_schema.views")
	if err != nil {
		return Schema{}, fmt.Errorf("probe views: %w", err)
	}
	tableNames, err := existingRelations(ctx, pool, "information_schema.tables")
	if err != nil {
		return Schema{}, fmt.Errorf("probe tables: %w", err)
	}

	all := make(map[string]bool, len(viewNames)+len(tableNames))
	for _, n := range viewNames {
		all[n] = true
	}
	for _, n := range tableNames {
		all[n] = true
	}

	var schema Schema
	schema.HasActiveChat = all[chatViewCandidates[0]]
	schema.HasHistoryChat = all[chatViewCandidates[1]]
	schema.HasActiveMessages = all[messageViewCandidates[0]]
	schema.HasHistoryMessages = all[messageViewCandidates[1]]
	schema.HasRecordings = all[recordingsTable]
	schema.HasVoicemail = all[voicemailTable]
	schema.HasUsersView = all[usersViewCandidate]
	schema.HasDN = all[dnTableCandidate]

	for _, candidate := range callLogCandidates {
		if all[candidate] {
			schema.CallLogSource = candidate
			break
		}
	}

	return schema, nil
}

func existingRelations(ctx context.Context, pool *pgxpool.Pool, informationSchemaTable string) ([]string, error) {
	candidates := allCandidateNames()
	rows, err := pool.Query(ctx, fmt.Sprintf(
		`SELECT table_name FROM %s WHERE table_schema = current_schema() AND table_name = ANY($1)`,
		informationSchemaTable), candidates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, rows.Err()
}

func allCandidateNames() []string {
	out := make([]string, 0, len(chatViewCandidates)+len(messageViewCandidates)+len(callLogCandidates)+4)
	out = append(out, chatViewCandidates...)
	out = append(out, messageViewCandidates...)
	out = append(out, callLogCandidates...)
	out = append(out, recordingsTable, voicemailTable, usersViewCandidate, dnTableCandidate)
	return out
}
