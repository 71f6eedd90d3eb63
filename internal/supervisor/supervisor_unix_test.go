//go:build unix

package supervisor

import (
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/spreadarb/internal/domain"
)

func TestSupervisor_ChildRunsInOwnProcessGroup(t *testing.T) {
	s := newSupervisor(t, "sleep", "30")

	ok, err := s.Start()
	require.NoError(t, err)
	require.True(t, ok)

	pid := s.Stats().PID
	childPgid, err := syscall.Getpgid(pid)
	require.NoError(t, err)
	assert.NotEqual(t, syscall.Getpgrp(), childPgid)
	assert.Equal(t, pid, childPgid)

	assert.True(t, s.Stop(time.Second))
	assert.Equal(t, domain.ProcessStopped, s.State())
	assert.Zero(t, s.Stats().CrashCount)
}
