package domain

import "time"

// ProcessState is the supervisor's view of the engine process.
type ProcessState string

const (
	ProcessStopped  ProcessState = "STOPPED"
	ProcessStarting ProcessState = "STARTING"
	ProcessRunning  ProcessState = "RUNNING"
	ProcessStopping ProcessState = "STOPPING"
	ProcessFailed   ProcessState = "FAILED"
	ProcessCrashed  ProcessState = "CRASHED"
)

// ProcessStats is returned by the supervisor's Stats.
type ProcessStats struct {
	Status        ProcessState `json:"status"`
	PID           int          `json:"pid"`
	Running       bool         `json:"running"`
	StartTime     *time.Time   `json:"start_time,omitempty"`
	StopTime      *time.Time   `json:"stop_time,omitempty"`
	UptimeSeconds float64      `json:"uptime_seconds"`
	RestartCount  int          `json:"restart_count"`
	CrashCount    int          `json:"crash_count"`
	LastError     string       `json:"last_error,omitempty"`
}
