package httpapi

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortfileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "corpus.db")
	path := PortfilePath(dbPath)
	assert.Equal(t, filepath.Join(dir, PortfileName), path)

	pf := Portfile{
		Host: "127.0.0.1", Port: 4242, PID: 123,
		StartedAt: "2026-08-06T10:00:00Z", DBPath: dbPath, Token: "secret",
	}
	require.NoError(t, WritePortfile(path, pf))

	loaded, err := ReadPortfile(path)
	require.NoError(t, err)
	assert.Equal(t, pf, *loaded)

	require.NoError(t, RemovePortfile(path))
	_, err = ReadPortfile(path)
	assert.True(t, os.IsNotExist(err))

	// Removing an absent portfile is fine.
	require.NoError(t, RemovePortfile(path))
}

func TestInspectState_Missing(t *testing.T) {
	state := InspectState(filepath.Join(t.TempDir(), "corpus.db"))
	assert.Equal(t, "missing", state.State)
}

func TestInspectState_StaleDeadPID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	// A PID far beyond pid_max and a port nobody listens on.
	require.NoError(t, WritePortfile(PortfilePath(dbPath), Portfile{
		Host: "127.0.0.1", Port: 1, PID: 1 << 30, DBPath: dbPath,
	}))

	state := InspectState(dbPath)
	assert.Equal(t, "stale", state.State)
	assert.Equal(t, "unreachable_or_dead", state.Reason)
}

func TestInspectState_InvalidJSON(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	require.NoError(t, os.WriteFile(PortfilePath(dbPath), []byte("{not json"), 0o600))

	state := InspectState(dbPath)
	assert.Equal(t, "stale", state.State)
	assert.Equal(t, "invalid_portfile", state.Reason)
}

func TestInspectState_InvalidPort(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "corpus.db")
	require.NoError(t, WritePortfile(PortfilePath(dbPath), Portfile{
		Host: "127.0.0.1", Port: -1, PID: os.Getpid(), DBPath: dbPath,
	}))

	state := InspectState(dbPath)
	assert.Equal(t, "stale", state.State)
	assert.Equal(t, "invalid_port", state.Reason)
}
