//go:build linux && amd64

package ptrace_test

import (
	"context"
	"testing"

	"github.com/ashgrove/nativedbg/procctl"
	"github.com/ashgrove/nativedbg/procctl/ptrace"
	"github.com/stretchr/testify/require"
)

// TestSpawnRunsToCompletion exercises the full Spawn/Continue/WaitForStop
// lifecycle against /bin/true. It is skipped where ptrace is unavailable
// (containers without CAP_SYS_PTRACE, some CI sandboxes).
func TestSpawnRunsToCompletion(t *testing.T) {
	b := ptrace.New()
	ctx := context.Background()

	if err := b.Spawn(ctx, "/bin/true", nil); err != nil {
		t.Skipf("ptrace unavailable in this environment: %v", err)
	}

	pid, running := b.GetPid()
	require.True(t, running)
	require.Greater(t, pid, 0)

	require.NoError(t, b.Continue(ctx))

	ev, err := b.WaitForStop(ctx)
	require.NoError(t, err)
	require.Equal(t, procctl.StopExited, ev.Reason)
}

func TestReadRegistersAfterExecStop(t *testing.T) {
	b := ptrace.New()
	ctx := context.Background()

	if err := b.Spawn(ctx, "/bin/true", nil); err != nil {
		t.Skipf("ptrace unavailable in this environment: %v", err)
	}
	defer b.Kill(ctx)

	regs, err := b.ReadRegisters(ctx)
	require.NoError(t, err)
	require.NotZero(t, regs[16]) // RIP should be non-zero at the exec stop
}
