package logstore

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mokumoku-dev/vctracker/internal/attendance"
	"github.com/mokumoku-dev/vctracker/internal/calendar"
	"github.com/mokumoku-dev/vctracker/internal/setup/config"
	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

const folderMimeType = "application/vnd.google-apps.folder"

/// Timestamp layouts match the historical log format: non-padded date parts,
// padded clock.
const (
	dateLayout      = "2006/1/2"
	timestampLayout = "2006/1/2 15:04"
)

// Client stores and retrieves per-channel attendance logs as CSV files on
// Google Drive. One folder per channel under the configured base path, one
// log file per environment inside each channel folder.
type Client struct {
	svc    *drive.Service
	cfg    *config.GoogleDrive
	logger *zap.Logger

	mu        sync.Mutex
	folderIDs map[string]string
}

// NewClient authenticates with the configured service account and returns a
// log store client.
func NewClient(ctx context.Context, cfg *config.GoogleDrive, logger *zap.Logger) (*Client, error) {
	svc, err := drive.NewService(ctx,
		option.WithCredentialsFile(cfg.ServiceAccountFile),
		option.WithScopes(drive.DriveScope),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}

	logger.Info("Connected to Google Drive",
		zap.String("base_folder", cfg.BaseFolder),
		zap.String("shared_drive_id", cfg.SharedDriveID))

	return &Client{
		svc:       svc,
		cfg:       cfg,
		logger:    logger.Named("logstore"),
		folderIDs: make(map[string]string),
	}, nil
}

// logFileName returns the per-environment log file name inside a channel
// folder.
func (c *Client) logFileName() string {
	return c.cfg.EnvSuffix + ".csv"
}

// escapeQuery escapes a name for embedding in a Drive search query.
func escapeQuery(name string) string {
	return strings.ReplaceAll(name, "'", `\'`)
}

// sanitizeChannelName maps a channel name to a safe folder name.
func sanitizeChannelName(channel string) string {
	channel = strings.ReplaceAll(channel, "/", "_")
	return strings.ReplaceAll(channel, `\`, "_")
}

// listCall applies the shared-drive options every search needs.
func (c *Client) listCall(ctx context.Context, query string) *drive.FilesListCall {
	call := c.svc.Files.List().
		Context(ctx).
		Q(query).
		Fields("files(id, name)").
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true)

	if c.cfg.SharedDriveID != "" {
		call = call.DriveId(c.cfg.SharedDriveID).Corpora("drive")
	}

	return call
}

// findFolder looks up a folder by name under a parent. An empty parent
// searches the drive root (or shared drive root). Returns "" when absent.
func (c *Client) findFolder(ctx context.Context, name, parentID string) (string, error) {
	query := fmt.Sprintf("name='%s' and mimeType='%s' and trashed=false", escapeQuery(name), folderMimeType)

	switch {
	case parentID != "":
		query += fmt.Sprintf(" and '%s' in parents", parentID)
	case c.cfg.SharedDriveID != "":
		query += fmt.Sprintf(" and '%s' in parents", c.cfg.SharedDriveID)
	}

	result, err := c.listCall(ctx, query).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for folder %q: %w", name, err)
	}

	if len(result.Files) == 0 {
		return "", nil
	}

	return result.Files[0].Id, nil
}

// createFolder creates a folder under a parent and returns its ID.
func (c *Client) createFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drive.File{
		Name:     name,
		MimeType: folderMimeType,
	}

	switch {
	case parentID != "":
		meta.Parents = []string{parentID}
	case c.cfg.SharedDriveID != "":
		meta.Parents = []string{c.cfg.SharedDriveID}
	}

	folder, err := c.svc.Files.Create(meta).
		Context(ctx).
		Fields("id").
		SupportsAllDrives(true).
		Do()
	if err != nil {
		return "", fmt.Errorf("failed to create folder %q: %w", name, err)
	}

	c.logger.Info("Created Drive folder", zap.String("name", name), zap.String("id", folder.Id))

	return folder.Id, nil
}

// baseFolderID resolves the configured base path segment by segment, caching
// the result. With create=false a missing segment resolves to "".
func (c *Client) baseFolderID(ctx context.Context, create bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id, ok := c.folderIDs[c.cfg.BaseFolder]; ok {
		return id, nil
	}

	parentID := ""

	for _, segment := range strings.Split(c.cfg.BaseFolder, "/") {
		if segment == "" {
			continue
		}

		id, err := c.findFolder(ctx, segment, parentID)
		if err != nil {
			return "", err
		}

		if id == "" {
			if !create {
				return "", nil
			}

			id, err = c.createFolder(ctx, segment, parentID)
			if err != nil {
				return "", err
			}
		}

		parentID = id
	}

	c.folderIDs[c.cfg.BaseFolder] = parentID

	return parentID, nil
}

// channelFolderID resolves (optionally creating) the folder for one channel.
func (c *Client) channelFolderID(ctx context.Context, channel string, create bool) (string, error) {
	baseID, err := c.baseFolderID(ctx, create)
	if err != nil {
		return "", err
	}

	if baseID == "" {
		return "", nil
	}

	name := sanitizeChannelName(channel)

	c.mu.Lock()
	if id, ok := c.folderIDs[name]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	id, err := c.findFolder(ctx, name, baseID)
	if err != nil {
		return "", err
	}

	if id == "" {
		if !create {
			return "", nil
		}

		id, err = c.createFolder(ctx, name, baseID)
		if err != nil {
			return "", err
		}
	}

	c.mu.Lock()
	c.folderIDs[name] = id
	c.mu.Unlock()

	return id, nil
}

// findLogFile locates the environment log file inside a channel folder.
// Returns "" when the file does not exist yet.
func (c *Client) findLogFile(ctx context.Context, folderID string) (string, error) {
	query := fmt.Sprintf("name='%s' and '%s' in parents and trashed=false",
		escapeQuery(c.logFileName()), folderID)

	result, err := c.listCall(ctx, query).Do()
	if err != nil {
		return "", fmt.Errorf("failed to search for log file: %w", err)
	}

	if len(result.Files) == 0 {
		return "", nil
	}

	return result.Files[0].Id, nil
}

// ListChannelLogs discovers every channel that has a log file for this
// environment. Channel folders without one are skipped with a warning; a
// missing base folder yields an empty list.
func (c *Client) ListChannelLogs(ctx context.Context) ([]attendance.ChannelLog, error) {
	baseID, err := c.baseFolderID(ctx, false)
	if err != nil {
		return nil, err
	}

	if baseID == "" {
		c.logger.Warn("Base folder not found on Drive", zap.String("base_folder", c.cfg.BaseFolder))
		return nil, nil
	}

	query := fmt.Sprintf("mimeType='%s' and '%s' in parents and trashed=false", folderMimeType, baseID)

	result, err := c.listCall(ctx, query).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to list channel folders: %w", err)
	}

	logs := make([]attendance.ChannelLog, 0, len(result.Files))

	for _, folder := range result.Files {
		fileID, err := c.findLogFile(ctx, folder.Id)
		if err != nil {
			return nil, err
		}

		if fileID == "" {
			c.logger.Warn("Channel folder has no log file for this environment",
				zap.String("channel", folder.Name),
				zap.String("file", c.logFileName()))

			continue
		}

		logs = append(logs, attendance.ChannelLog{
			ChannelName: folder.Name,
			FileID:      fileID,
		})
	}

	c.logger.Debug("Listed channel logs", zap.Int("count", len(logs)))

	return logs, nil
}

// ReadLog downloads and parses one channel log.
func (c *Client) ReadLog(ctx context.Context, log attendance.ChannelLog) ([]attendance.RawRow, error) {
	resp, err := c.svc.Files.Get(log.FileID).
		Context(ctx).
		SupportsAllDrives(true).
		Download()
	if err != nil {
		return nil, fmt.Errorf("failed to download log for channel %q: %w", log.ChannelName, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read log for channel %q: %w", log.ChannelName, err)
	}

	rows, err := parseRows(data)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("Read channel log",
		zap.String("channel", log.ChannelName),
		zap.Int("rows", len(rows)))

	return rows, nil
}

// AppendPresence records one poll's worth of presence events for a single
// channel, keeping only the first observation per user per day. Returns how
// many rows were appended; zero appends skip the re-upload entirely.
func (c *Client) AppendPresence(
	ctx context.Context, channel string, events []attendance.PresenceEvent, now time.Time,
) (int, error) {
	now = now.In(calendar.JST)

	folderID, err := c.channelFolderID(ctx, channel, true)
	if err != nil {
		return 0, err
	}

	fileID, err := c.findLogFile(ctx, folderID)
	if err != nil {
		return 0, err
	}

	var existing []attendance.RawRow

	if fileID != "" {
		existing, err = c.ReadLog(ctx, attendance.ChannelLog{ChannelName: channel, FileID: fileID})
		if err != nil {
			return 0, err
		}
	}

	incoming := make([]attendance.RawRow, 0, len(events))

	for _, event := range events {
		name := event.DisplayName
		if name == "" {
			name = event.UserName
		}

		incoming = append(incoming, attendance.RawRow{
			attendance.FieldTimestamp: now.Format(timestampLayout),
			attendance.FieldUserID:    event.UserID,
			attendance.FieldUserName:  name,
		})
	}

	merged, added := mergeSameDay(existing, incoming, now.Format(dateLayout))
	if added == 0 {
		c.logger.Debug("No new presence rows to append", zap.String("channel", channel))
		return 0, nil
	}

	data, err := renderRows(merged)
	if err != nil {
		return 0, err
	}

	if fileID == "" {
		meta := &drive.File{
			Name:    c.logFileName(),
			Parents: []string{folderID},
		}

		created, err := c.svc.Files.Create(meta).
			Context(ctx).
			Fields("id").
			SupportsAllDrives(true).
			Media(bytes.NewReader(data)).
			Do()
		if err != nil {
			return 0, fmt.Errorf("failed to create log for channel %q: %w", channel, err)
		}

		c.logger.Info("Created channel log",
			zap.String("channel", channel),
			zap.String("file_id", created.Id),
			zap.Int("appended", added))

		return added, nil
	}

	_, err = c.svc.Files.Update(fileID, &drive.File{}).
		Context(ctx).
		SupportsAllDrives(true).
		Media(bytes.NewReader(data)).
		Do()
	if err != nil {
		return 0, fmt.Errorf("failed to update log for channel %q: %w", channel, err)
	}

	c.logger.Info("Appended presence rows",
		zap.String("channel", channel),
		zap.Int("appended", added),
		zap.Int("total_rows", len(merged)))

	return added, nil
}
