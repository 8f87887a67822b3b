// Package tenant loads and resolves per-tenant configuration: PBX host, SSH
// credentials, database password, media base paths, backup toggles, and sync
// interval. The Tenant type has a FeatureFlags field, but ListActiveTenants
// does not load it, so it is always nil. Tenant rows are read-only to the core; they
// are created and destroyed by the external dashboard (out of scope here).
package tenant
