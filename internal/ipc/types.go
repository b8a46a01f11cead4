package ipc

// StatusRequest fetches node status.
type StatusRequest struct{}

// StatusResponse represents combined controller, sensor and catalog state.
type StatusResponse struct {
	Running          bool     `json:"running"`
	Master           bool     `json:"master"`
	State            string   `json:"state"`
	ActionID         int      `json:"action_id"`
	PersonID         int      `json:"person_id"`
	ShotID           int      `json:"shot_id"`
	PendingSaves     int      `json:"pending_saves"`
	RGBDPending      int      `json:"rgbd_pending"`
	EventPending     int      `json:"event_pending"`
	FramesAcquired   uint64   `json:"frames_acquired"`
	QueueSize        int      `json:"queue_size"`
	ColorFrames      uint64   `json:"color_frames"`
	EventFrames      uint64   `json:"event_frames"`
	UIPublished      uint64   `json:"ui_published"`
	UIDropped        uint64   `json:"ui_dropped"`
	Alerts           []string `json:"alerts,omitempty"`
	SessionsTotal    int      `json:"sessions_total"`
	SessionsFailed   int      `json:"sessions_failed"`
	SessionsFailsafe int      `json:"sessions_failsafe"`
	DataDir          string   `json:"data_dir"`
	CatalogPath      string   `json:"catalog_path"`
	LockPath         string   `json:"lock_path"`
	PID              int      `json:"pid"`
}

// RecordRequest starts a session.
type RecordRequest struct{}

// RecordResponse reports whether a new session started.
type RecordResponse struct {
	Started bool `json:"started"`
}

// StopRequest ends the current session and queues it for writing.
type StopRequest struct{}

// StopResponse reports whether a session was recording.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// CancelRequest discards the current session.
type CancelRequest struct{}

// CancelResponse reports whether a session was discarded.
type CancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// StepRequest moves the action or person id by Delta.
type StepRequest struct {
	Delta int `json:"delta"`
}

// StepResponse reports whether the id moved and the resulting identity.
type StepResponse struct {
	Changed  bool `json:"changed"`
	ActionID int  `json:"action_id"`
	PersonID int  `json:"person_id"`
}

// SetShotRequest sets the shot id.
type SetShotRequest struct {
	Shot int `json:"shot"`
}

// SetShotResponse echoes the applied shot id.
type SetShotResponse struct {
	ShotID int `json:"shot_id"`
}

// SessionsRequest filters the session catalog.
type SessionsRequest struct {
	ActionID *int `json:"action_id,omitempty"`
	PersonID *int `json:"person_id,omitempty"`
	Limit    int  `json:"limit"`
}

// SessionSummary is the wire form of a catalogued session.
type SessionSummary struct {
	ID         string         `json:"id"`
	ActionID   int            `json:"action_id"`
	PersonID   int            `json:"person_id"`
	ShotID     int            `json:"shot_id"`
	Sequence   int            `json:"sequence"`
	Path       string         `json:"path"`
	Failsafe   bool           `json:"failsafe"`
	Items      map[string]int `json:"items"`
	Failed     []string       `json:"failed,omitempty"`
	StartedAt  string         `json:"started_at"`
	FinishedAt string         `json:"finished_at"`
}

// SessionsResponse lists catalogued sessions, newest first.
type SessionsResponse struct {
	Sessions []SessionSummary `json:"sessions"`
}

// SnapshotRequest asks for the latest preview of Kind ("color" or "event").
type SnapshotRequest struct {
	Kind string `json:"kind"`
}

// SnapshotResponse carries the preview encoded as PNG.
type SnapshotResponse struct {
	PNG []byte `json:"png"`
}
