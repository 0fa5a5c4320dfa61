package driver

import (
	"bytes"
	"context"
	"errors"
	"io"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-units"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	pkgerrors "judgemicro/pkg/errors"
)

// cpuPeriod is the CFS period the CPU quota is computed against.
const cpuPeriod = 100000

// defaultOpTimeout bounds each lifecycle API call against a stuck daemon.
const defaultOpTimeout = 60 * time.Second

// dockerAPI is the slice of the Docker SDK client the driver uses,
// narrowed so tests can substitute a fake without a daemon.
type dockerAPI interface {
	ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error
	ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error)
	ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error)
	ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error)
	CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error
	CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error)
	Ping(ctx context.Context) (types.Ping, error)
	Close() error
}

// DockerConfig configures the Docker-backed driver.
type DockerConfig struct {
	// Host overrides the daemon address. Empty uses the environment.
	Host string
	// OpTimeout bounds each lifecycle API call. Zero applies the default.
	OpTimeout time.Duration
}

// Docker implements Driver on top of the Docker Engine API.
type Docker struct {
	cli       dockerAPI
	opTimeout time.Duration
}

var _ Driver = (*Docker)(nil)

// NewDocker connects to the Docker daemon using the environment plus
// any overrides from cfg.
func NewDocker(cfg DockerConfig) (*Docker, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}
	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, pkgerrors.RuntimeUnavailable, "docker client init failed: %v", err)
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = defaultOpTimeout
	}
	return &Docker{cli: cli, opTimeout: cfg.OpTimeout}, nil
}

// Create provisions an idle container that sleeps until the engine
// execs into it. Networking is disabled and resource limits applied
// before the container ever runs user code.
func (d *Docker) Create(ctx context.Context, image string, limits Limits) (string, error) {
	resources, err := limits.resources()
	if err != nil {
		return "", err
	}

	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	created, err := d.cli.ContainerCreate(ctx,
		&container.Config{
			Image:           image,
			Cmd:             []string{"sleep", "infinity"},
			NetworkDisabled: true,
		},
		&container.HostConfig{
			NetworkMode: "none",
			Resources:   resources,
		},
		nil, nil, "")
	if err != nil {
		if client.IsErrNotFound(err) {
			return "", pkgerrors.Wrapf(err, pkgerrors.ImageMissing, "runner image not found: %s", image)
		}
		return "", translate(err, pkgerrors.ContainerCreateFailed, "create container")
	}
	return created.ID, nil
}

// Start brings the created container up.
func (d *Docker) Start(ctx context.Context, id string) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	if err := d.cli.ContainerStart(ctx, id, container.StartOptions{}); err != nil {
		return translate(err, pkgerrors.ContainerStartFailed, "start container")
	}
	return nil
}

// PutArchive unpacks a tar archive into path inside the container.
func (d *Docker) PutArchive(ctx context.Context, id, path string, archive []byte) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	err := d.cli.CopyToContainer(ctx, id, path, bytes.NewReader(archive), container.CopyToContainerOptions{})
	if err != nil {
		return translate(err, pkgerrors.ArchiveIOFailed, "copy archive into container")
	}
	return nil
}

// Exec runs cmd inside the container and waits for it to finish,
// demuxing the multiplexed output stream into stdout and stderr. A
// positive timeout bounds the whole call; on expiry the attach socket
// is torn down and a DeadlineExceeded error returned while the command
// may keep running inside the container until it is stopped.
func (d *Docker) Exec(ctx context.Context, id string, cmd []string, workdir string, timeout time.Duration) (*ExecResult, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()

	created, err := d.cli.ContainerExecCreate(ctx, id, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workdir,
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, translate(err, pkgerrors.ExecFailed, "create exec")
	}

	attach, err := d.cli.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, translate(err, pkgerrors.ExecFailed, "attach exec")
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	copied := make(chan error, 1)
	go func() {
		_, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader)
		copied <- err
	}()

	select {
	case <-ctx.Done():
		// Closing the attach socket unblocks the copier.
		attach.Close()
		<-copied
		return nil, translate(ctx.Err(), pkgerrors.ExecFailed, "exec command")
	case err := <-copied:
		if err != nil && ctx.Err() == nil {
			return nil, translate(err, pkgerrors.ExecFailed, "read exec output")
		}
	}

	inspect, err := d.cli.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return nil, translate(err, pkgerrors.ExecFailed, "inspect exec")
	}

	return &ExecResult{
		ExitCode: inspect.ExitCode,
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		Wall:     time.Since(start),
	}, nil
}

// GetArchive returns a tar archive of path from the container.
func (d *Docker) GetArchive(ctx context.Context, id, path string) ([]byte, error) {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	rc, _, err := d.cli.CopyFromContainer(ctx, id, path)
	if err != nil {
		return nil, translate(err, pkgerrors.ArchiveIOFailed, "copy archive out of container")
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, translate(err, pkgerrors.ArchiveIOFailed, "read archive stream")
	}
	return data, nil
}

// Stop halts the container, escalating to SIGKILL after grace.
func (d *Docker) Stop(ctx context.Context, id string, grace time.Duration) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	seconds := int(grace / time.Second)
	if err := d.cli.ContainerStop(ctx, id, container.StopOptions{Timeout: &seconds}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return translate(err, pkgerrors.ContainerStopFailed, "stop container")
	}
	return nil
}

// Remove force-deletes the container together with its volumes.
func (d *Docker) Remove(ctx context.Context, id string) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	err := d.cli.ContainerRemove(ctx, id, container.RemoveOptions{Force: true, RemoveVolumes: true})
	if err != nil && !client.IsErrNotFound(err) {
		return translate(err, pkgerrors.ContainerRemoveFailed, "remove container")
	}
	return nil
}

// Ping reports whether the daemon is reachable.
func (d *Docker) Ping(ctx context.Context) error {
	ctx, cancel := d.opCtx(ctx)
	defer cancel()

	if _, err := d.cli.Ping(ctx); err != nil {
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeUnavailable, "docker daemon unreachable: %v", err)
	}
	return nil
}

// Close releases the client connection.
func (d *Docker) Close() error {
	return d.cli.Close()
}

func (d *Docker) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d.opTimeout)
}

// resources maps the judge limits onto the container CFS quota and
// memory cap the same way the runner deployment documents them.
func (l Limits) resources() (container.Resources, error) {
	var res container.Resources
	if l.CPU > 0 {
		res.CPUPeriod = cpuPeriod
		res.CPUQuota = int64(cpuPeriod * l.CPU)
	}
	if l.Memory != "" {
		memBytes, err := units.RAMInBytes(l.Memory)
		if err != nil {
			return container.Resources{}, pkgerrors.Wrapf(err, pkgerrors.LimitsInvalid, "invalid memory limit %q", l.Memory)
		}
		res.Memory = memBytes
	}
	return res, nil
}

// translate folds SDK errors into the driver error taxonomy. Runtime
// connectivity and deadline failures win over the per-op fallback code.
func translate(err error, fallback pkgerrors.ErrorCode, op string) error {
	switch {
	case err == nil:
		return nil
	case client.IsErrConnectionFailed(err):
		return pkgerrors.Wrapf(err, pkgerrors.RuntimeUnavailable, "docker daemon unreachable: %v", err)
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrapf(err, pkgerrors.DeadlineExceeded, "%s: deadline exceeded", op)
	default:
		return pkgerrors.Wrapf(err, fallback, "%s: %v", op, err)
	}
}
