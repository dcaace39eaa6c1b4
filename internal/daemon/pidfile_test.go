package daemon

import (
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stalePID is above the default pid_max on Linux and macOS.
const stalePID = 4194304

func writePID(t *testing.T, content string) *PIDFile {
	t.Helper()
	path := filepath.Join(t.TempDir(), "daemon.pid")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return NewPIDFile(path)
}

func TestPIDFile_WriteRead(t *testing.T) {
	// Given a PID file in a directory that does not exist yet
	pf := NewPIDFile(filepath.Join(t.TempDir(), "nested", "daemon.pid"))

	// When the current PID is written
	require.NoError(t, pf.Write())

	// Then it reads back
	pid, err := pf.Read()
	require.NoError(t, err)
	assert.Equal(t, os.Getpid(), pid)
}

func TestPIDFile_Read(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{"plain", "12345", 12345, false},
		{"trailing newline", "12345\n", 12345, false},
		{"garbage", "not-a-number", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pid, err := writePID(t, tt.content).Read()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, pid)
		})
	}
}

func TestPIDFile_ReadMissing(t *testing.T) {
	_, err := NewPIDFile(filepath.Join(t.TempDir(), "missing.pid")).Read()
	assert.ErrorIs(t, err, ErrPIDFileNotFound)
}

func TestPIDFile_Remove(t *testing.T) {
	pf := writePID(t, "12345")

	require.NoError(t, pf.Remove())
	require.NoError(t, pf.Remove())

	_, err := os.Stat(pf.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFile_IsRunning(t *testing.T) {
	assert.True(t, writePID(t, strconv.Itoa(os.Getpid())).IsRunning())
	assert.False(t, writePID(t, strconv.Itoa(stalePID)).IsRunning())
	assert.False(t, NewPIDFile(filepath.Join(t.TempDir(), "none.pid")).IsRunning())
}

func TestPIDFile_Signal(t *testing.T) {
	require.NoError(t, writePID(t, strconv.Itoa(os.Getpid())).Signal(syscall.Signal(0)))
	require.Error(t, writePID(t, strconv.Itoa(stalePID)).Signal(syscall.Signal(0)))
}

func TestPIDFile_Acquire(t *testing.T) {
	t.Run("replaces stale file", func(t *testing.T) {
		pf := writePID(t, strconv.Itoa(stalePID))

		require.NoError(t, pf.Acquire())

		pid, err := pf.Read()
		require.NoError(t, err)
		assert.Equal(t, os.Getpid(), pid)
	})

	t.Run("refuses live owner", func(t *testing.T) {
		// The test runner's parent outlives the test.
		pf := writePID(t, strconv.Itoa(os.Getppid()))

		err := pf.Acquire()

		assert.ErrorIs(t, err, ErrAlreadyRunning)
	})
}
