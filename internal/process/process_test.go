package process

import (
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/wasmrun/internal/foundation/errors"
)

func skipWithoutShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
}

func TestGuardWaitSuccess(t *testing.T) {
	skipWithoutShell(t)

	g, err := Start("ok", exec.Command("sh", "-c", "exit 0"))
	require.NoError(t, err)
	require.NoError(t, g.WaitSuccess())
}

func TestGuardWaitSuccessReportsExitCode(t *testing.T) {
	skipWithoutShell(t)

	g, err := Start("fail", exec.Command("sh", "-c", "exit 3"))
	require.NoError(t, err)

	err = g.WaitSuccess()
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryProcess))
	assert.Contains(t, err.Error(), "exit code 3")

	status, ok := StatusOf(g.Wait())
	require.True(t, ok)
	assert.Equal(t, 3, status.Code)
	assert.False(t, status.Signaled())
}

func TestGuardCloseKillsAndReaps(t *testing.T) {
	skipWithoutShell(t)

	g, err := Start("sleeper", exec.Command("sh", "-c", "sleep 30"))
	require.NoError(t, err)
	require.Positive(t, g.PID())

	require.NoError(t, g.Close())
	select {
	case <-g.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child was not reaped")
	}

	status, ok := StatusOf(g.Wait())
	require.True(t, ok)
	assert.True(t, status.Signaled())
	assert.Equal(t, -1, status.Code)

	// idempotent
	require.NoError(t, g.Close())
}

func TestStartMissingBinary(t *testing.T) {
	_, err := Start("missing", exec.Command("wasmrun-definitely-not-a-binary"))
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryProcess))
}

func TestStatusOfNonExitError(t *testing.T) {
	_, ok := StatusOf(nil)
	assert.False(t, ok)
	_, ok = StatusOf(assert.AnError)
	assert.False(t, ok)
}

func TestGroupCloseAll(t *testing.T) {
	skipWithoutShell(t)

	gr := NewGroup()
	a, err := gr.Start("a", exec.Command("sh", "-c", "sleep 30"))
	require.NoError(t, err)
	b, err := gr.Start("b", exec.Command("sh", "-c", "sleep 30"))
	require.NoError(t, err)
	assert.Equal(t, 2, gr.Len())

	gr.CloseAll()
	assert.Equal(t, 0, gr.Len())
	for _, g := range []*Guard{a, b} {
		select {
		case <-g.Done():
		default:
			t.Fatalf("guard %s still running", g.Name)
		}
	}
}

func TestSlotReplaceStopsPrevious(t *testing.T) {
	skipWithoutShell(t)

	var slot Slot
	first, err := slot.Replace(func() (*Guard, error) {
		return Start("first", exec.Command("sh", "-c", "sleep 30"))
	})
	require.NoError(t, err)

	second, err := slot.Replace(func() (*Guard, error) {
		select {
		case <-first.Done():
		default:
			t.Error("previous child still running when the replacement started")
		}
		return Start("second", exec.Command("sh", "-c", "sleep 30"))
	})
	require.NoError(t, err)
	assert.Same(t, second, slot.Current())

	slot.Release()
	assert.Nil(t, slot.Current())
	<-second.Done()
}
