package tunnel

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/crypto/ssh"

	"github.com/timeshareflow/pbxsync/internal/logging"
	"github.com/timeshareflow/pbxsync/internal/pbxsyncerr"
	"github.com/timeshareflow/pbxsync/internal/tenant"
)

const (
	maxPoolConnections = 5
	idleTimeout        = 30 * time.Second
	connectTimeout     = 10 * time.Second
)

type cachedPool struct {
	pool   *pgxpool.Pool
	client *ssh.Client
}

// Manager caches one SSH-tunneled Postgres pool per tenant across scheduler
// ticks, per spec §4.2.
type Manager struct {
	mu    sync.Mutex
	pools map[string]*cachedPool
}

// NewManager constructs an empty tunnel manager.
func NewManager() *Manager {
	return &Manager{pools: make(map[string]*cachedPool)}
}

// AcquirePool returns the cached pool for this tenant, opening a new SSH
// tunnel and pool if none exists yet.
func (m *Manager) AcquirePool(ctx context.Context, tenantID string, cfg tenant.DbConfig) (*pgxpool.Pool, error) {
	m.mu.Lock()
	if cached, ok := m.pools[tenantID]; ok {
		m.mu.Unlock()
		return cached.pool, nil
	}
	m.mu.Unlock()

	client, err := dialSSH(cfg)
	if err != nil {
		return nil, pbxsyncerr.New(pbxsyncerr.KindTransient, tenantID, "", "tunnel.dial_ssh", fmt.Errorf("%w: %v", pbxsyncerr.ErrTunnelUnavailable, err))
	}

	poolCfg, err := pgxpool.ParseConfig(fmt.Sprintf(
		"postgres://%s:%s@127.0.0.1:5432/%s?sslmode=disable&connect_timeout=%d",
		cfg.DBUser, cfg.DBPass, cfg.DBName, int(connectTimeout.Seconds())))
	if err != nil {
		_ = client.Close()
		return nil, pbxsyncerr.Fatal(tenantID, "", "tunnel.parse_config", err)
	}
	poolCfg.MaxConns = maxPoolConnections
	poolCfg.MaxConnIdleTime = idleTimeout
	poolCfg.DialFunc = func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := client.Dial("tcp", "127.0.0.1:5432")
		if err != nil {
			return nil, err
		}
		return conn, nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		_ = client.Close()
		return nil, pbxsyncerr.New(pbxsyncerr.KindTransient, tenantID, "", "tunnel.new_pool", fmt.Errorf("%w: %v", pbxsyncerr.ErrDBUnavailable, err))
	}

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		_ = client.Close()
		return nil, pbxsyncerr.New(pbxsyncerr.KindTransient, tenantID, "", "tunnel.ping", fmt.Errorf("%w: %v", pbxsyncerr.ErrDBUnavailable, err))
	}

	m.mu.Lock()
	m.pools[tenantID] = &cachedPool{pool: pool, client: client}
	m.mu.Unlock()

	logging.Info().Str("tenant", tenantID).Str("host", cfg.Host).Msg("tunnel established")
	return pool, nil
}

func dialSSH(cfg tenant.DbConfig) (*ssh.Client, error) {
	sshCfg := &ssh.ClientConfig{
		User:            cfg.SSHUser,
		Auth:            []ssh.AuthMethod{ssh.Password(cfg.SSHPass)},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(), //nolint:gosec // tenant-supplied hosts, no known_hosts distribution
		Timeout:         connectTimeout,
	}
	addr := net.JoinHostPort(cfg.Host, fmt.Sprintf("%d", cfg.Port))
	return ssh.Dial("tcp", addr, sshCfg)
}

// CloseTenant closes and evicts the cached pool for a single tenant, used on
// tenant deactivation.
func (m *Manager) CloseTenant(tenantID string) {
	m.mu.Lock()
	cached, ok := m.pools[tenantID]
	if ok {
		delete(m.pools, tenantID)
	}
	m.mu.Unlock()
	if !ok {
		return
	}
	cached.pool.Close()
	_ = cached.client.Close()
}

// CloseAll closes every cached pool, used on scheduler shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	pools := m.pools
	m.pools = make(map[string]*cachedPool)
	m.mu.Unlock()

	for tenantID, cached := range pools {
		cached.pool.Close()
		_ = cached.client.Close()
		logging.Info().Str("tenant", tenantID).Msg("tunnel closed")
	}
}
