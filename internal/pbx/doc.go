// Package pbx queries a tenant's tunneled PBX Postgres database for the
// normalized record shapes each sync stage consumes, per spec §4.5. The
// watermarked list functions accept the tenant's pool, a batch size, and an
// optional since cursor; the extension, conversation and file-mapping
// queries take no cursor, and ListMeetingsOrFaxes reads an SFTP session
// instead of the pool. All return typed records and never partially commit.
package pbx
