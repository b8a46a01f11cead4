package daemon

import (
	"context"
	"errors"
	"fmt"

	"dsrec/internal/catalog"
	"dsrec/internal/controller"
	"dsrec/internal/logging"
	"dsrec/internal/ui"
)

// Status reports the node's runtime state. Catalog failures are logged and
// leave the summary empty.
func (d *Daemon) Status(ctx context.Context) Status {
	d.mu.Lock()
	ctrl := d.controller
	w := d.writer
	rgbdReader := d.rgbdReader
	eventReader := d.eventReader
	d.mu.Unlock()

	status := Status{
		Running:      d.running.Load(),
		Master:       d.cfg.Node.Master,
		State:        controller.Idle.String(),
		UI:           d.state.Snapshot(),
		DataDir:      d.cfg.Paths.DataDir,
		LockFilePath: d.lockPath,
	}
	if ctrl != nil {
		status.State = ctrl.State().String()
		status.Identity = ctrl.Identity()
	}
	if w != nil {
		status.PendingSaves = w.Pending()
	}
	if rgbdReader != nil {
		status.RGBDPending = rgbdReader.Pending()
		status.FramesAcquired = rgbdReader.Acquired()
	}
	if eventReader != nil {
		status.EventPending = eventReader.Pending()
	}
	if d.catalog != nil {
		status.CatalogPath = d.catalog.Path()
		summary, err := d.catalog.Summary(ctx)
		if err != nil {
			d.logger.Warn("catalog summary failed", logging.Error(err))
		} else {
			status.Catalog = summary
		}
	}
	return status
}

// activeController returns the controller when the daemon is up.
func (d *Daemon) activeController() (*controller.Controller, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() || d.controller == nil {
		return nil, ErrNotRunning
	}
	return d.controller, nil
}

func (d *Daemon) masterController() (*controller.Controller, error) {
	ctrl, err := d.activeController()
	if err != nil {
		return nil, err
	}
	if !ctrl.IsMaster() {
		return nil, ErrNotMaster
	}
	return ctrl, nil
}

// Record starts a session. It reports whether the node was idle.
func (d *Daemon) Record() (bool, error) {
	ctrl, err := d.masterController()
	if err != nil {
		return false, err
	}
	if ctrl.IsRecording() {
		return false, nil
	}
	ctrl.SetRecord()
	return true, nil
}

// StopSession ends the current session and queues it for writing. It reports
// whether a session was recording.
func (d *Daemon) StopSession() (bool, error) {
	ctrl, err := d.masterController()
	if err != nil {
		return false, err
	}
	if !ctrl.IsRecording() {
		return false, nil
	}
	ctrl.SetStop()
	return true, nil
}

// Cancel discards the current session.
func (d *Daemon) Cancel() (bool, error) {
	ctrl, err := d.masterController()
	if err != nil {
		return false, err
	}
	if !ctrl.IsRecording() {
		return false, nil
	}
	ctrl.SetCancel()
	return true, nil
}

// StepAction moves the action id by delta. Steps are ignored while recording
// and never go below zero.
func (d *Daemon) StepAction(delta int) (bool, error) {
	ctrl, err := d.masterController()
	if err != nil {
		return false, err
	}
	return ctrl.StepAction(delta), nil
}

// StepPerson moves the person id by delta.
func (d *Daemon) StepPerson(delta int) (bool, error) {
	ctrl, err := d.masterController()
	if err != nil {
		return false, err
	}
	return ctrl.StepPerson(delta), nil
}

// SetShot sets the shot id.
func (d *Daemon) SetShot(shot int) error {
	ctrl, err := d.masterController()
	if err != nil {
		return err
	}
	if shot < 0 {
		return fmt.Errorf("shot id must be >= 0, got %d", shot)
	}
	ctrl.SetShotID(shot)
	return nil
}

// Sessions lists recorded sessions from the catalog, newest first.
func (d *Daemon) Sessions(ctx context.Context, filter catalog.Filter) ([]*catalog.Session, error) {
	if d.catalog == nil {
		return nil, errors.New("session catalog unavailable")
	}
	return d.catalog.List(ctx, filter)
}

// Snapshot returns the latest preview of kind encoded as PNG.
func (d *Daemon) Snapshot(kind ui.Kind) ([]byte, error) {
	return d.state.FramePNG(kind)
}
