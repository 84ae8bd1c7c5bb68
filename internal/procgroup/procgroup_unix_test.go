// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

//go:build unix

package procgroup

import (
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSetCreatesGroupLeader(t *testing.T) {
	cmd := exec.Command("sleep", "5")
	Set(cmd)
	require.NoError(t, cmd.Start())
	t.Cleanup(func() { _ = cmd.Process.Kill(); _ = cmd.Wait() })

	pgid, err := syscall.Getpgid(cmd.Process.Pid)
	require.NoError(t, err)
	require.Equal(t, cmd.Process.Pid, pgid)
}

func TestTerminate_GracefulExit(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	start := time.Now()
	err := Terminate(cmd, waitCh, 5*time.Second)
	require.Error(t, err, "sleep killed by SIGTERM must report a non-zero exit")
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestTerminate_ForcesKillAfterGrace(t *testing.T) {
	// The shell ignores SIGTERM, so only SIGKILL ends it.
	cmd := exec.Command("sh", "-c", "trap '' TERM; sleep 30")
	Set(cmd)
	require.NoError(t, cmd.Start())

	waitCh := make(chan error, 1)
	go func() { waitCh <- cmd.Wait() }()

	// Give the shell a moment to install the trap.
	time.Sleep(100 * time.Millisecond)
	err := Terminate(cmd, waitCh, 200*time.Millisecond)
	require.Error(t, err)
}

func TestKill_NilSafe(t *testing.T) {
	require.NoError(t, Kill(nil, syscall.SIGTERM))
	require.NoError(t, Kill(&exec.Cmd{}, syscall.SIGTERM))
	require.NoError(t, Terminate(nil, nil, time.Second))
}
