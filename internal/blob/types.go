// Package blob is the entry point for blob storage. Callers depend on Store
// and open a backend with Open; the implementations live under
// internal/infra/blob.
package blob

import "farmgraph/internal/blob/core"

type (
	// Driver names a blob backend.
	Driver = core.Driver
	// PutOptions configures a write.
	PutOptions = core.PutOptions
	// Info describes a stored blob.
	Info = core.Info
	// Store is the create-only blob store contract.
	Store = core.Store
)

const (
	DriverFilesystem = core.DriverFilesystem
	DriverS3         = core.DriverS3
	DriverMemory     = core.DriverMemory
)

var (
	ErrNotFound   = core.ErrNotFound
	ErrExists     = core.ErrExists
	ErrInvalidKey = core.ErrInvalidKey
)
