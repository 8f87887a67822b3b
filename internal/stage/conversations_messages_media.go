package stage

import (
	"context"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/timeshareflow/pbxsync/internal/archive"
	"github.com/timeshareflow/pbxsync/internal/objectstore"
	"github.com/timeshareflow/pbxsync/internal/pbx"
	"github.com/timeshareflow/pbxsync/internal/sftp"
	"github.com/timeshareflow/pbxsync/internal/transcode"
)

// RunConversationsMessagesMedia reads new messages past the stored
// watermark, upserts their conversations and bodies, and for each
// attachment locates, downloads, optionally transcodes, and uploads the
// file before linking a media row to its message. All three entities share
// one watermark on time-sent.
func RunConversationsMessagesMedia(ctx context.Context, d Deps) (Result, error) {
	var result Result

	since, err := d.Archive.GetWatermark(ctx, d.TenantID, string(NameConversationsMessages))
	if err != nil {
		return result, fmt.Errorf("read watermark: %w", err)
	}

	messages, err := pbx.ListMessages(ctx, d.Pool, d.Schema, d.Options.BatchSize, since)
	if err != nil {
		return result, fmt.Errorf("list messages: %w", err)
	}
	if len(messages) == 0 {
		return result, nil
	}

	if err := upsertConversationsForMessages(ctx, d, messages, &result); err != nil {
		return result, err
	}

	// Messages come back ordered oldest-first (see pbx.ListMessages), so
	// advanceTo only tracks the latest time_sent reached before the first
	// failure: a message that fails to upsert must still be retried on
	// the next tick, so the watermark must never pass it even if later
	// messages in the batch succeed.
	messageIDs := make([]string, 0, len(messages))
	var advanceTo time.Time
	var sawFailure bool
	for _, m := range messages {
		outcome, err := d.Archive.UpsertMessage(ctx, d.TenantID, m)
		switch {
		case err != nil:
			result.addError(m.SourceID, err)
			sawFailure = true
			continue
		case outcome == archive.OutcomeSkipped:
			result.Skipped++
		default:
			result.Synced++
		}
		messageIDs = append(messageIDs, m.SourceID)
		if !sawFailure {
			advanceTo = m.TimeSent
		}
	}

	if err := syncMediaForMessages(ctx, d, messageIDs, &result); err != nil {
		return result, err
	}

	if !advanceTo.IsZero() {
		if err := d.Archive.AdvanceWatermark(ctx, d.TenantID, string(NameConversationsMessages), advanceTo); err != nil {
			return result, fmt.Errorf("advance watermark: %w", err)
		}
	}
	return result, nil
}

func upsertConversationsForMessages(ctx context.Context, d Deps, messages []pbx.Message, result *Result) error {
	seen := make(map[string]bool)
	var ids []string
	for _, m := range messages {
		if !seen[m.ConversationID] {
			seen[m.ConversationID] = true
			ids = append(ids, m.ConversationID)
		}
	}

	conversations, err := pbx.ListConversations(ctx, d.Pool, d.Schema, ids)
	if err != nil {
		return fmt.Errorf("list conversations: %w", err)
	}
	for _, c := range conversations {
		if _, err := d.Archive.UpsertConversation(ctx, d.TenantID, c); err != nil {
			result.addError(c.SourceID, err)
		}
	}
	return nil
}

func syncMediaForMessages(ctx context.Context, d Deps, messageIDs []string, result *Result) error {
	if d.SFTP == nil || len(messageIDs) == 0 {
		return nil
	}

	mappings, err := pbx.ListFileMappings(ctx, d.Pool, messageIDs)
	if err != nil {
		return fmt.Errorf("list file mappings: %w", err)
	}

	for _, fm := range mappings {
		if err := syncOneAttachment(ctx, d, fm); err != nil {
			result.addError(fm.MessageID, err)
			continue
		}
		result.Synced++
	}
	return nil
}

func syncOneAttachment(ctx context.Context, d Deps, fm pbx.FileMapping) error {
	remotePath, err := locateChatFile(d.SFTP, d.MediaRoots.ChatFiles, fm.InternalFilename, d.Options.ChatMediaSubfolders)
	if err != nil {
		return err
	}

	size, err := d.SFTP.Stat(remotePath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", remotePath, err)
	}
	if size > d.Options.StreamedMaxBytes {
		return fmt.Errorf("file %s (%d bytes) exceeds streamed max bytes, skipped", remotePath, size)
	}

	data, mimeType, ext, err := downloadAttachment(ctx, d, remotePath, size, fm.PublicFilename)
	if err != nil {
		return err
	}

	key := objectstore.BuildKey(d.TenantID, objectstore.CategoryChatMedia, time.Now(), fm.PublicFilename, ext)
	if err := d.Objects.PutBuffer(ctx, key, data, mimeType); err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	if _, err := d.Archive.UpsertMediaFile(ctx, d.TenantID, fm.MessageID, key, mimeType, int64(len(data))); err != nil {
		return fmt.Errorf("upsert media file for message %s: %w", fm.MessageID, err)
	}
	return nil
}

func downloadAttachment(ctx context.Context, d Deps, remotePath string, size int64, publicFilename string) (data []byte, mimeType, ext string, err error) {
	if size <= d.Options.BufferedMaxBytes {
		data, err = d.SFTP.DownloadBuffer(ctx, remotePath, d.Options.FileTimeout)
	} else {
		var reader io.ReadCloser
		reader, err = d.SFTP.DownloadStream(remotePath)
		if err == nil {
			defer reader.Close()
			data, err = io.ReadAll(reader)
		}
	}
	if err != nil {
		return nil, "", "", fmt.Errorf("download %s: %w", remotePath, err)
	}

	head := data
	if len(head) > 12 {
		head = head[:12]
	}
	detectedMIME, detectedExt := objectstore.DetectMIME(publicFilename, head)

	fileType := classifyFileType(detectedMIME)
	transcoded, terr := transcode.Transcode(fileType, detectedExt, detectedMIME, data)
	if terr != nil {
		return nil, "", "", fmt.Errorf("transcode %s: %w", remotePath, terr)
	}
	return transcoded.Bytes, transcoded.MIME, transcoded.Ext, nil
}

func classifyFileType(mimeType string) string {
	switch {
	case len(mimeType) >= 5 && mimeType[:5] == "audio":
		return "audio"
	case len(mimeType) >= 5 && mimeType[:5] == "image":
		return "image"
	default:
		return "other"
	}
}

// locateChatFile probes the internal-filename directly under the chat-files
// base, then each configured nested subfolder, returning the first path
// that exists.
func locateChatFile(session *sftp.Session, chatFilesBase, internalFilename string, subfolders []string) (string, error) {
	candidates := []string{path.Join(chatFilesBase, internalFilename)}
	for _, sub := range subfolders {
		candidates = append(candidates, path.Join(chatFilesBase, sub, internalFilename))
	}

	for _, candidate := range candidates {
		exists, err := session.Exists(candidate)
		if err != nil {
			return "", fmt.Errorf("probe %s: %w", candidate, err)
		}
		if exists {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("attachment %s not found under %s (tried %d candidate paths)", internalFilename, chatFilesBase, len(candidates))
}
