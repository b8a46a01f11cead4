package capture

// Modality names used as payload tags and session subfolder names.
const (
	ModalityColor       = "color"
	ModalityDepth       = "depth"
	ModalityEventStream = "event_stream"
)

// Failsafe ids stamp jobs that were flushed because a reader stopped
// mid-session instead of receiving NotifySave.
const (
	FailsafeActionID = -1
	FailsafePersonID = -1
)

// Callback receives session boundary notifications from the controller.
type Callback interface {
	NotifyRecord()
	NotifySave(actionID, personID int)
	NotifyCancel()
}

// Readable exposes a reader's completed jobs. Poll and Read never block;
// callers must Poll before Read.
type Readable interface {
	Poll() bool
	Read() []Payload
}

// SaveFunc persists one modality's data into dir, which already exists.
type SaveFunc func(dir string, data any) error

// Payload is one modality of a completed job.
type Payload struct {
	Modality string
	Save     SaveFunc
	Data     any
}

// Identity is the session identity owned by the controller.
type Identity struct {
	ActionID int `json:"aid"`
	PersonID int `json:"pid"`
	ShotID   int `json:"sid"`
}

// Stamp is the (action, person) snapshot taken when a session stops.
type Stamp struct {
	ActionID int
	PersonID int
}

// FailsafeStamp returns the stamp used for jobs flushed during shutdown.
func FailsafeStamp() Stamp {
	return Stamp{ActionID: FailsafeActionID, PersonID: FailsafePersonID}
}

// IsFailsafe reports whether s is the shutdown failsafe stamp.
func (s Stamp) IsFailsafe() bool {
	return s == FailsafeStamp()
}
