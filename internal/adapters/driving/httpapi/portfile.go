package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// PortfileName is the discovery file written next to the database.
const PortfileName = ".agrafes_sidecar.json"

// healthProbeTimeout is the per-request client deadline of the liveness
// probe.
const healthProbeTimeout = time.Second

// Portfile is the on-disk discovery record advertising a running sidecar.
type Portfile struct {
	Host      string `json:"host"`
	Port      int    `json:"port"`
	PID       int    `json:"pid"`
	StartedAt string `json:"started_at"`
	DBPath    string `json:"db_path"`
	Token     string `json:"token,omitempty"`
}

// PortfilePath returns the discovery file path for a database path.
func PortfilePath(dbPath string) string {
	abs, err := filepath.Abs(dbPath)
	if err != nil {
		abs = dbPath
	}
	return filepath.Join(filepath.Dir(abs), PortfileName)
}

// WritePortfile persists the discovery record.
func WritePortfile(path string, pf Portfile) error {
	data, err := json.MarshalIndent(pf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshalling portfile: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing portfile: %w", err)
	}
	return nil
}

// ReadPortfile loads a discovery record. Returns os.ErrNotExist when absent.
func ReadPortfile(path string) (*Portfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var pf Portfile
	if err := json.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parsing portfile: %w", err)
	}
	return &pf, nil
}

// RemovePortfile deletes the discovery file, tolerating its absence.
func RemovePortfile(path string) error {
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// pidAlive reports whether a process with the given PID exists.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Signal 0 probes existence without touching the process.
	err = proc.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	return err == syscall.EPERM
}

// healthOK probes GET /health on the recorded endpoint with a short
// deadline.
func healthOK(host string, port int) bool {
	client := &http.Client{Timeout: healthProbeTimeout}
	resp, err := client.Get(fmt.Sprintf("http://%s:%d/health", host, port))
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false
	}
	var payload struct {
		OK     bool   `json:"ok"`
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false
	}
	return payload.OK && payload.Status == "ok"
}

// SidecarState is the result of inspecting a database's discovery file.
type SidecarState struct {
	State    string    `json:"state"` // missing | running | stale
	Portfile string    `json:"portfile"`
	Record   *Portfile `json:"record,omitempty"`
	Reason   string    `json:"reason,omitempty"`
}

// InspectState applies the two-gate liveness check: a sidecar is running
// only when the recorded PID is alive AND /health answers on the recorded
// endpoint. Anything else is missing or stale.
func InspectState(dbPath string) SidecarState {
	path := PortfilePath(dbPath)
	state := SidecarState{State: "missing", Portfile: path}

	pf, err := ReadPortfile(path)
	if os.IsNotExist(err) {
		return state
	}
	if err != nil {
		state.State = "stale"
		state.Reason = "invalid_portfile"
		return state
	}

	state.Record = pf
	if pf.Port <= 0 || pf.Port > 65535 {
		state.State = "stale"
		state.Reason = "invalid_port"
		return state
	}

	host := pf.Host
	if host == "" {
		host = "127.0.0.1"
	}

	if pidAlive(pf.PID) && healthOK(host, pf.Port) {
		state.State = "running"
		return state
	}

	state.State = "stale"
	state.Reason = "unreachable_or_dead"
	return state
}
