package driver

import (
	"bufio"
	"bytes"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	pkgerrors "judgemicro/pkg/errors"
)

// notFoundErr mimics the daemon 404 the SDK reports for missing
// images and containers.
type notFoundErr struct{}

func (notFoundErr) Error() string { return "no such object" }
func (notFoundErr) NotFound()     {}

type fakeDocker struct {
	createErr  error
	config     *container.Config
	hostConfig *container.HostConfig

	startErr error
	started  []string

	stopErr  error
	stopOpts []container.StopOptions

	removeErr  error
	removed    []string
	removeOpts []container.RemoveOptions

	execCreateErr error
	execOpts      []container.ExecOptions
	attachErr     error
	attachResp    types.HijackedResponse
	inspect       container.ExecInspect
	inspectErr    error

	putErr   error
	putPaths []string
	putData  []byte

	getErr  error
	getData []byte

	pingErr error
	closed  bool
}

func (f *fakeDocker) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.config = config
	f.hostConfig = hostConfig
	if f.createErr != nil {
		return container.CreateResponse{}, f.createErr
	}
	return container.CreateResponse{ID: "cid-1"}, nil
}

func (f *fakeDocker) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.started = append(f.started, containerID)
	return f.startErr
}

func (f *fakeDocker) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.stopOpts = append(f.stopOpts, options)
	return f.stopErr
}

func (f *fakeDocker) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.removed = append(f.removed, containerID)
	f.removeOpts = append(f.removeOpts, options)
	return f.removeErr
}

func (f *fakeDocker) ContainerExecCreate(ctx context.Context, containerID string, options container.ExecOptions) (types.IDResponse, error) {
	f.execOpts = append(f.execOpts, options)
	if f.execCreateErr != nil {
		return types.IDResponse{}, f.execCreateErr
	}
	return types.IDResponse{ID: "exec-1"}, nil
}

func (f *fakeDocker) ContainerExecAttach(ctx context.Context, execID string, options container.ExecAttachOptions) (types.HijackedResponse, error) {
	if f.attachErr != nil {
		return types.HijackedResponse{}, f.attachErr
	}
	return f.attachResp, nil
}

func (f *fakeDocker) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	return f.inspect, f.inspectErr
}

func (f *fakeDocker) CopyToContainer(ctx context.Context, containerID, dstPath string, content io.Reader, options container.CopyToContainerOptions) error {
	f.putPaths = append(f.putPaths, dstPath)
	data, _ := io.ReadAll(content)
	f.putData = data
	return f.putErr
}

func (f *fakeDocker) CopyFromContainer(ctx context.Context, containerID, srcPath string) (io.ReadCloser, container.PathStat, error) {
	if f.getErr != nil {
		return nil, container.PathStat{}, f.getErr
	}
	return io.NopCloser(bytes.NewReader(f.getData)), container.PathStat{}, nil
}

func (f *fakeDocker) Ping(ctx context.Context) (types.Ping, error) {
	return types.Ping{}, f.pingErr
}

func (f *fakeDocker) Close() error {
	f.closed = true
	return nil
}

func newTestDriver(fake *fakeDocker) *Docker {
	return &Docker{cli: fake, opTimeout: 5 * time.Second}
}

// framedStream builds a hijacked response whose reader carries
// stdcopy-multiplexed stdout and stderr frames.
func framedStream(t *testing.T, stdout, stderr string) types.HijackedResponse {
	t.Helper()
	var buf bytes.Buffer
	if stdout != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout)); err != nil {
			t.Fatalf("frame stdout: %v", err)
		}
	}
	if stderr != "" {
		if _, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr)); err != nil {
			t.Fatalf("frame stderr: %v", err)
		}
	}
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	return types.HijackedResponse{Conn: c1, Reader: bufio.NewReader(&buf)}
}

func TestDockerCreateAppliesLimits(t *testing.T) {
	fake := &fakeDocker{}
	d := newTestDriver(fake)

	id, err := d.Create(context.Background(), "runner:c", Limits{CPU: 1.5, Memory: "128m"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id != "cid-1" {
		t.Fatalf("expected container id cid-1, got %q", id)
	}
	if !fake.config.NetworkDisabled {
		t.Fatalf("expected networking disabled")
	}
	if got := fake.config.Cmd; len(got) != 2 || got[0] != "sleep" || got[1] != "infinity" {
		t.Fatalf("expected idle sleep command, got %v", got)
	}
	if fake.hostConfig.NetworkMode != "none" {
		t.Fatalf("expected network mode none, got %q", fake.hostConfig.NetworkMode)
	}
	res := fake.hostConfig.Resources
	if res.CPUPeriod != 100000 || res.CPUQuota != 150000 {
		t.Fatalf("expected cpu period 100000 quota 150000, got %d/%d", res.CPUPeriod, res.CPUQuota)
	}
	if res.Memory != 128*1024*1024 {
		t.Fatalf("expected 128MiB memory limit, got %d", res.Memory)
	}
}

func TestDockerCreateImageMissing(t *testing.T) {
	fake := &fakeDocker{createErr: notFoundErr{}}
	d := newTestDriver(fake)

	_, err := d.Create(context.Background(), "runner:gone", Limits{CPU: 1})
	if !pkgerrors.Is(err, pkgerrors.ImageMissing) {
		t.Fatalf("expected ImageMissing, got %v", err)
	}
}

func TestDockerCreateRejectsBadMemory(t *testing.T) {
	fake := &fakeDocker{}
	d := newTestDriver(fake)

	_, err := d.Create(context.Background(), "runner:c", Limits{Memory: "lots"})
	if !pkgerrors.Is(err, pkgerrors.LimitsInvalid) {
		t.Fatalf("expected LimitsInvalid, got %v", err)
	}
	if fake.config != nil {
		t.Fatalf("expected no create call for invalid limits")
	}
}

func TestDockerExecCapturesOutput(t *testing.T) {
	fake := &fakeDocker{
		attachResp: framedStream(t, "make: ok\n", "warning: x\n"),
		inspect:    container.ExecInspect{ExitCode: 3},
	}
	d := newTestDriver(fake)

	res, err := d.Exec(context.Background(), "cid-1", []string{"bash", "-c", "make test"}, "/app", 2*time.Second)
	if err != nil {
		t.Fatalf("exec: %v", err)
	}
	if res.ExitCode != 3 {
		t.Fatalf("expected exit code 3, got %d", res.ExitCode)
	}
	if string(res.Stdout) != "make: ok\n" {
		t.Fatalf("unexpected stdout %q", res.Stdout)
	}
	if string(res.Stderr) != "warning: x\n" {
		t.Fatalf("unexpected stderr %q", res.Stderr)
	}
	if res.Wall <= 0 {
		t.Fatalf("expected positive wall time")
	}
	opts := fake.execOpts[0]
	if opts.WorkingDir != "/app" || !opts.AttachStdout || !opts.AttachStderr {
		t.Fatalf("unexpected exec options %+v", opts)
	}
}

func TestDockerExecDeadline(t *testing.T) {
	c1, c2 := net.Pipe()
	t.Cleanup(func() {
		c1.Close()
		c2.Close()
	})
	fake := &fakeDocker{
		// The reader never produces data, so only the deadline can
		// finish the call.
		attachResp: types.HijackedResponse{Conn: c1, Reader: bufio.NewReader(c1)},
	}
	d := newTestDriver(fake)

	_, err := d.Exec(context.Background(), "cid-1", []string{"sleep", "60"}, "/app", 30*time.Millisecond)
	if !pkgerrors.Is(err, pkgerrors.DeadlineExceeded) {
		t.Fatalf("expected DeadlineExceeded, got %v", err)
	}
}

func TestDockerStopGraceAndMissingContainer(t *testing.T) {
	fake := &fakeDocker{}
	d := newTestDriver(fake)

	if err := d.Stop(context.Background(), "cid-1", time.Second); err != nil {
		t.Fatalf("stop: %v", err)
	}
	if got := fake.stopOpts[0].Timeout; got == nil || *got != 1 {
		t.Fatalf("expected 1s grace, got %v", got)
	}

	fake.stopErr = notFoundErr{}
	if err := d.Stop(context.Background(), "cid-gone", time.Second); err != nil {
		t.Fatalf("expected stop of missing container to succeed, got %v", err)
	}
}

func TestDockerRemoveIdempotent(t *testing.T) {
	fake := &fakeDocker{removeErr: notFoundErr{}}
	d := newTestDriver(fake)

	if err := d.Remove(context.Background(), "cid-gone"); err != nil {
		t.Fatalf("expected remove of missing container to succeed, got %v", err)
	}
	if opts := fake.removeOpts[0]; !opts.Force || !opts.RemoveVolumes {
		t.Fatalf("expected forced remove with volumes, got %+v", opts)
	}
}

func TestDockerDaemonUnreachable(t *testing.T) {
	fake := &fakeDocker{startErr: client.ErrorConnectionFailed("unix:///var/run/docker.sock")}
	d := newTestDriver(fake)

	err := d.Start(context.Background(), "cid-1")
	if !pkgerrors.Is(err, pkgerrors.RuntimeUnavailable) {
		t.Fatalf("expected RuntimeUnavailable, got %v", err)
	}
}

func TestDockerArchiveRoundTrip(t *testing.T) {
	fake := &fakeDocker{getData: []byte("tar-bytes")}
	d := newTestDriver(fake)

	if err := d.PutArchive(context.Background(), "cid-1", "/app", []byte("payload")); err != nil {
		t.Fatalf("put archive: %v", err)
	}
	if fake.putPaths[0] != "/app" || string(fake.putData) != "payload" {
		t.Fatalf("unexpected put %q %q", fake.putPaths[0], fake.putData)
	}

	data, err := d.GetArchive(context.Background(), "cid-1", "/app/result.json")
	if err != nil {
		t.Fatalf("get archive: %v", err)
	}
	if string(data) != "tar-bytes" {
		t.Fatalf("unexpected archive payload %q", data)
	}

	fake.getErr = io.ErrUnexpectedEOF
	if _, err := d.GetArchive(context.Background(), "cid-1", "/app/result.json"); !pkgerrors.Is(err, pkgerrors.ArchiveIOFailed) {
		t.Fatalf("expected ArchiveIOFailed, got %v", err)
	}
}
