package tenant

import "time"

// MediaRoots are the five configurable base paths the SFTP layer walks.
type MediaRoots struct {
	ChatFiles  string `validate:"omitempty,min=1"`
	Recordings string `validate:"omitempty,min=1"`
	Voicemails string `validate:"omitempty,min=1"`
	Faxes      string `validate:"omitempty,min=1"`
	Meetings   string `validate:"omitempty,min=1"`
}

// BackupToggles controls which sync stages are enabled for a tenant. There
// are eight toggles for the seven stages: Conversations and Media both enable
// the combined conversations/messages/media stage.
type BackupToggles struct {
	Extensions    bool `koanf:"extensions"`
	Conversations bool `koanf:"conversations"`
	Media         bool `koanf:"media"`
	Recordings    bool `koanf:"recordings"`
	Voicemails    bool `koanf:"voicemails"`
	Faxes         bool `koanf:"faxes"`
	CallLogs      bool `koanf:"call_logs"`
	Meetings      bool `koanf:"meetings"`
}

// Tenant is the read-only, dashboard-owned configuration entity (spec §3).
type Tenant struct {
	ID             string `validate:"required,uuid4"`
	PBXHost        string `validate:"required,hostname_rfc1123|ip"`
	SSHPort        int    `validate:"gte=1,lte=65535"`
	SSHUser        string `validate:"omitempty,min=1,max=64"`
	SSHPassword    string `validate:"omitempty,min=1"`
	DBPassword     string `validate:"omitempty,min=1"`
	MediaRoots     MediaRoots
	Backup         BackupToggles
	SyncIntervalS  int `validate:"gte=10"`
	FeatureFlags   map[string]bool
	LastSyncAt     time.Time
}

// HasSSHCredentials reports whether the tenant has enough SSH config to open
// a tunnel. A missing user or password disables media-requiring stages.
func (t Tenant) HasSSHCredentials() bool {
	return t.SSHUser != "" && t.SSHPassword != ""
}

// SftpConfig is the resolved connection configuration for the SFTP session
// manager, or nil if the tenant lacks SSH credentials.
type SftpConfig struct {
	Host       string
	Port       int
	User       string
	Password   string
	MediaRoots MediaRoots
}

// DbConfig is the resolved connection configuration for the tunnel+pool
// manager, or nil if the tenant lacks SSH or DB credentials.
type DbConfig struct {
	Host     string
	Port     int
	SSHUser  string
	SSHPass  string
	DBUser   string
	DBPass   string
	DBName   string
}

// fixedDBRole is the fixed PostgreSQL role the core connects as on the PBX
// side, per spec §4.2 and §6.
const fixedDBRole = "phonesystem"

// DefaultSSHPort is used when a tenant row does not specify one.
const DefaultSSHPort = 22
