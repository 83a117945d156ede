package domain

// NoTenant marks a store event raised without tenant context.
const NoTenant int64 = -1

// NoRepository marks a maintenance call that must not touch the indexing job.
const NoRepository int64 = 0

// StoreEvent describes the store mutation that triggered a job state check.
type StoreEvent struct {
	TenantID     int64
	RepositoryID int64
	Path         Path
}

// NewStoreEvent creates an event for a mutation of p.
func NewStoreEvent(tenantID, repositoryID int64, p Path) StoreEvent {
	return StoreEvent{TenantID: tenantID, RepositoryID: repositoryID, Path: p}
}

// RootPath is the content namespace root of the event's repository.
func (e StoreEvent) RootPath() Path {
	return DirPath(e.TenantID, e.RepositoryID, "")
}

// HasRepository reports whether the event carries document context.
func (e StoreEvent) HasRepository() bool {
	return e.RepositoryID != NoRepository
}
