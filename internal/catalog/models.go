package catalog

import "time"

// Modality is the outcome of saving one modality of a session.
type Modality struct {
	Name  string
	Items int
	Error string
}

// Failed reports whether the save function returned an error.
func (m Modality) Failed() bool { return m.Error != "" }

// Session is one written session folder.
type Session struct {
	ID         string
	ActionID   int
	PersonID   int
	ShotID     int
	Sequence   int
	Path       string
	Failsafe   bool
	Modalities []Modality
	StartedAt  time.Time
	FinishedAt time.Time
}

// FailedModalities lists the names of modalities whose save failed.
func (s *Session) FailedModalities() []string {
	var names []string
	for _, m := range s.Modalities {
		if m.Failed() {
			names = append(names, m.Name)
		}
	}
	return names
}

// Duration returns how long the write cycle took.
func (s *Session) Duration() time.Duration {
	if s.StartedAt.IsZero() || s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// Summary aggregates catalog contents.
type Summary struct {
	Sessions int
	Failed   int
	Failsafe int
}
