// Package driver wraps the container runtime behind a small lifecycle
// interface so the judge engine can provision, exercise and tear down
// per-run containers without touching the Docker SDK directly.
package driver

import (
	"context"
	"time"
)

// Limits caps the resources of one judge container.
type Limits struct {
	// CPU is the core budget. 1.0 grants a full core of quota.
	CPU float64
	// Memory is a docker-style quantity such as "128m" or "1g".
	// Empty leaves the container unbounded.
	Memory string
}

// ExecResult is the outcome of one command run inside a container.
type ExecResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	// Wall is the observed duration of the whole exec round trip.
	Wall time.Duration
}

// Driver manages the lifecycle of judge containers. Implementations
// bound every call with a deadline so a stuck runtime can never hang
// the engine; exceeding one surfaces as a DeadlineExceeded error.
type Driver interface {
	// Create provisions a stopped container from image with limits
	// applied and networking disabled. It returns the container ID.
	Create(ctx context.Context, image string, limits Limits) (string, error)

	// Start brings a created or stopped container up. The container
	// idles until Exec is called. Starting a running container is a
	// no-op.
	Start(ctx context.Context, id string) error

	// PutArchive unpacks a tar archive into path inside the container.
	PutArchive(ctx context.Context, id, path string, archive []byte) error

	// Exec runs cmd inside the container and captures its demuxed
	// output. A positive timeout bounds the whole call on top of ctx.
	Exec(ctx context.Context, id string, cmd []string, workdir string, timeout time.Duration) (*ExecResult, error)

	// GetArchive returns a tar archive of path from the container.
	GetArchive(ctx context.Context, id, path string) ([]byte, error)

	// Stop halts the container, escalating to SIGKILL after grace.
	// Stopping an already-gone container is not an error.
	Stop(ctx context.Context, id string, grace time.Duration) error

	// Remove force-deletes the container and its volumes. Removing an
	// already-gone container is not an error.
	Remove(ctx context.Context, id string) error

	// Ping reports whether the container runtime is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying runtime connection.
	Close() error
}
