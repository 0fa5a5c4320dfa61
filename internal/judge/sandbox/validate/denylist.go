package validate

// Pattern is one denied code fragment, matched as a plain substring
// against the submission source.
type Pattern struct {
	Token  string
	Reason string
}

// Denylist is the full table of rejected code fragments. Matching is
// case-sensitive substring matching, no regular expressions, so the
// table stays auditable line by line.
var Denylist = []Pattern{
	// Shell and process spawning. The runner contract is a single
	// solve function, no submission needs to start processes.
	{Token: `system(`, Reason: "shell command execution"},
	{Token: `popen(`, Reason: "shell command execution"},
	{Token: `execve(`, Reason: "process replacement"},
	{Token: `execvp(`, Reason: "process replacement"},
	{Token: `execlp(`, Reason: "process replacement"},
	{Token: `execl(`, Reason: "process replacement"},
	{Token: `fork(`, Reason: "process spawning"},
	{Token: `subprocess`, Reason: "process spawning"},

	// Destructive filesystem operations.
	{Token: `rm -rf`, Reason: "recursive delete"},
	{Token: `mkfs`, Reason: "filesystem format"},
	{Token: `shutil.rmtree`, Reason: "recursive delete"},

	// Raw device access.
	{Token: `/dev/sd`, Reason: "raw disk device access"},
	{Token: `/dev/nvme`, Reason: "raw disk device access"},
	{Token: `/dev/mem`, Reason: "physical memory access"},
	{Token: `/dev/kmsg`, Reason: "kernel log access"},

	// Fork bombs.
	{Token: `:(){ :|:& };:`, Reason: "fork bomb"},

	// Sandbox escape probes.
	{Token: `/proc/self/mem`, Reason: "process memory tampering"},
	{Token: `/proc/sysrq-trigger`, Reason: "kernel trigger access"},
	{Token: `ptrace(`, Reason: "process tracing"},
	{Token: `mount(`, Reason: "filesystem mount"},
	{Token: `chroot(`, Reason: "root directory change"},
	{Token: `reboot(`, Reason: "system reboot call"},
}
