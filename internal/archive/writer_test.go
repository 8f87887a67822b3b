package archive

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/timeshareflow/pbxsync/internal/pbx"
	"github.com/timeshareflow/pbxsync/internal/pbxsyncerr"
)

type fakeExecer struct {
	err error
}

func (f *fakeExecer) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, f.err
}

func (f *fakeExecer) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func TestUpsertExtension_SuccessIsUpserted(t *testing.T) {
	w := &Writer{pool: &fakeExecer{}}
	outcome, err := w.UpsertExtension(context.Background(), "tenant-a", pbx.Extension{SourceID: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeUpserted, outcome)
}

func TestUpsertExtension_UniqueViolationIsSkipped(t *testing.T) {
	w := &Writer{pool: &fakeExecer{err: &pgconn.PgError{Code: pgUniqueViolation}}}
	outcome, err := w.UpsertExtension(context.Background(), "tenant-a", pbx.Extension{SourceID: "1"})
	require.NoError(t, err)
	require.Equal(t, OutcomeSkipped, outcome)
}

func TestUpsertMessage_ForeignKeyViolationIsRecordError(t *testing.T) {
	w := &Writer{pool: &fakeExecer{err: &pgconn.PgError{Code: pgForeignKeyViolation}}}
	outcome, err := w.UpsertMessage(context.Background(), "tenant-a", pbx.Message{SourceID: "m1"})
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
	require.True(t, pbxsyncerr.Is(err, pbxsyncerr.KindRecord))
}

func TestUpsertCallLog_OtherErrorIsTransient(t *testing.T) {
	w := &Writer{pool: &fakeExecer{err: errors.New("connection reset")}}
	outcome, err := w.UpsertCallLog(context.Background(), "tenant-a", pbx.CallLogRecord{SourceID: "c1"})
	require.Error(t, err)
	require.Equal(t, OutcomeFailed, outcome)
	require.True(t, pbxsyncerr.Is(err, pbxsyncerr.KindTransient))
}
