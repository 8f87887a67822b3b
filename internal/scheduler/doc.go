// Package scheduler runs one independent ticking loop per tenant inside a
// suture supervisor tree: a root supervisor restarts a tenant's ticker on
// panic or fatal error, a shared semaphore bounds global concurrency, and
// a per-(tenant,stage) circuit breaker opens after repeated stage failures
// so one unreachable PBX can't starve the others.
package scheduler
