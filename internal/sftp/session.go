package sftp

import (
	"context"
	"fmt"
	"io"
	"net"
	"path"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/time/rate"

	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/pbxsyncerr"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

const (
	readyTimeout         = 10 * time.Second
	maxReconnectAttempts = 2
	defaultFileTimeout   = 120 * time.Second

	// BufferedMaxBytes is the upper bound for in-memory buffered downloads.
	BufferedMaxBytes = 25 << 20
	// StreamedMaxBytes is the upper bound for streamed downloads; anything
	// larger is skipped.
	StreamedMaxBytes = 500 << 20
)

// Entry describes one child of a directory listing.
type Entry struct {
	Name string
	Dir  bool
	Size int64
}

// RecursiveEntry describes a file discovered under a recursive walk.
type RecursiveEntry struct {
	Filename     string
	RelativePath string
	AbsolutePath string
	Size         int64
}

// Session wraps one SSH connection and SFTP channel, closed at the end of a
// sync pass for a tenant.
type Session struct {
	sshClient  *ssh.Client
	sftpClient *sftp.Client
	limiter    *rate.Limiter
	closed     bool
}

// Open establishes the SSH connection and SFTP channel for a tenant, with a
// 10s ready-timeout and up to two reconnect attempts.
func Open(ctx context.Context, cfg tenant.SftpConfig) (*Session, error) {
	var lastErr error
	for attempt := 0; attempt <= maxReconnectAttempts; attempt++ {
		sess, err := dial(cfg)
		if err == nil {
			return sess, nil
		}
		lastErr = err
		logging.Ctx(ctx).Warn().Str("host", cfg.Host).Int("attempt", attempt+1).Err(err).Msg("sftp connect attempt failed")
	}
	return nil, pbxsyncerr.New(pbxsyncerr.KindTransient, "", "", "sftp.open", fmt.Errorf("%w: %v", pbxsyncerr.ErrTunnelUnavailable, lastErr))
}

func dial(cfg tenant.SftpConfig) (*Session, error) {
	sshCfg := &ssh.ClientConfig{
		User:            cfg.User,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.Password)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // tenant-supplied hosts, no known_hosts distribution
		Timeout:         readyTimeout,
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	sshClient, err := ssh.Dial("tcp", addr, sshCfg)
	if err != nil {
		return nil, fmt.Errorf("ssh dial: %w", err)
	}

	sftpClient, err := sftp.NewClient(sshClient, sftp.UseConcurrentWrites(false))
	if err != nil {
		_ = sshClient.Close()
		return nil, fmt.Errorf("sftp channel: %w", err)
	}

	return &Session{
		sshClient:  sshClient,
		sftpClient: sftpClient,
		limiter:    rate.NewLimiter(rate.Inf, 0),
	}, nil
}

// WithRateLimit caps streamed-download throughput in bytes per second; zero
// or negative disables throttling.
func (s *Session) WithRateLimit(bytesPerSecond int) {
	if bytesPerSecond <= 0 {
		s.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	s.limiter = rate.NewLimiter(rate.Limit(bytesPerSecond), bytesPerSecond)
}

// Exists reports whether path exists on the remote host.
func (s *Session) Exists(remotePath string) (bool, error) {
	_, err := s.sftpClient.Stat(remotePath)
	if err == nil {
		return true, nil
	}
	if sftp.IsNotExist(err) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", remotePath, err)
}

// Stat returns the size in bytes of a remote file.
func (s *Session) Stat(remotePath string) (int64, error) {
	info, err := s.sftpClient.Stat(remotePath)
	if err != nil {
		return 0, fmt.Errorf("stat %s: %w", remotePath, err)
	}
	return info.Size(), nil
}

// List returns the immediate children of a directory.
func (s *Session) List(dir string) ([]Entry, error) {
	infos, err := s.sftpClient.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("readdir %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(infos))
	for _, info := range infos {
		out = append(out, Entry{Name: info.Name(), Dir: info.IsDir(), Size: info.Size()})
	}
	return out, nil
}

// ListRecursive walks a directory tree and returns every regular file found.
func (s *Session) ListRecursive(root string) ([]RecursiveEntry, error) {
	var out []RecursiveEntry
	walker := s.sftpClient.Walk(root)
	for walker.Step() {
		if err := walker.Err(); err != nil {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
		info := walker.Stat()
		if info.IsDir() {
			continue
		}
		abs := walker.Path()
		rel := strings.TrimPrefix(strings.TrimPrefix(abs, root), "/")
		out = append(out, RecursiveEntry{
			Filename:     path.Base(abs),
			RelativePath: rel,
			AbsolutePath: abs,
			Size:         info.Size(),
		})
	}
	return out, nil
}

// DownloadBuffer reads an entire remote file into memory within
// perFileTimeout (default 120s if zero). Callers must reject files above
// BufferedMaxBytes before calling this.
func (s *Session) DownloadBuffer(ctx context.Context, remotePath string, perFileTimeout time.Duration) ([]byte, error) {
	if perFileTimeout <= 0 {
		perFileTimeout = defaultFileTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, perFileTimeout)
	defer cancel()

	f, err := s.sftpClient.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	defer f.Close()

	done := make(chan struct{})
	var buf []byte
	var readErr error
	go func() {
		defer close(done)
		buf, readErr = io.ReadAll(f)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("download %s: %w", remotePath, ctx.Err())
	case <-done:
		if readErr != nil {
			return nil, fmt.Errorf("read %s: %w", remotePath, readErr)
		}
		return buf, nil
	}
}

// DownloadStream opens a remote file for streaming and returns a
// rate-limited ReadCloser suitable for piping directly into a multipart
// object-store upload. Callers must reject files above StreamedMaxBytes.
func (s *Session) DownloadStream(remotePath string) (io.ReadCloser, error) {
	f, err := s.sftpClient.Open(remotePath)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", remotePath, err)
	}
	return &throttledReader{f: f, limiter: s.limiter}, nil
}

// Close ends the SFTP channel and SSH connection gracefully and returns any
// error from closing them. Nothing logs it: the scheduler and CLI callers
// defer Close and discard the error.
func (s *Session) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	sftpErr := s.sftpClient.Close()
	sshErr := s.sshClient.Close()
	if sftpErr != nil {
		return fmt.Errorf("close sftp client: %w", sftpErr)
	}
	if sshErr != nil {
		return fmt.Errorf("close ssh client: %w", sshErr)
	}
	return nil
}

type throttledReader struct {
	f       *sftp.File
	limiter *rate.Limiter
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.f.Read(p)
	if n > 0 {
		_ = t.limiter.WaitN(context.Background(), n)
	}
	return n, err
}

func (t *throttledReader) Close() error {
	return t.f.Close()
}
