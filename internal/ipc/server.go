package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"log/slog"

	"dsrec/internal/catalog"
	"dsrec/internal/daemon"
	"dsrec/internal/logging"
	"dsrec/internal/ui"
)

// ServiceName is the RPC receiver name clients address.
const ServiceName = "Dsrec"

// Recorder is the command surface the server exposes. *daemon.Daemon
// satisfies it.
type Recorder interface {
	Status(ctx context.Context) daemon.Status
	Record() (bool, error)
	StopSession() (bool, error)
	Cancel() (bool, error)
	StepAction(delta int) (bool, error)
	StepPerson(delta int) (bool, error)
	SetShot(shot int) error
	Sessions(ctx context.Context, filter catalog.Filter) ([]*catalog.Session, error)
	Snapshot(kind ui.Kind) ([]byte, error)
}

// Server exposes recorder control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, rec Recorder, logger *slog.Logger) (*Server, error) {
	if rec == nil {
		return nil, errors.New("ipc server requires a recorder")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "ipc")

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{recorder: rec, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName(ServiceName, srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				logging.WarnWithContext(s.logger, "accept failed", "ipc_accept_failed",
					logging.Error(err),
					logging.String(logging.FieldImpact, "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "check socket permissions and restart dsrec if needed"),
				)
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		logging.WarnWithContext(s.logger, "failed to remove socket", "ipc_socket_cleanup_failed",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldImpact, "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "remove the socket file manually"),
		)
	}
}

type service struct {
	recorder Recorder
	logger   *slog.Logger
	ctx      context.Context
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.recorder.Status(s.ctx)
	resp.Running = status.Running
	resp.Master = status.Master
	resp.State = status.State
	resp.ActionID = status.Identity.ActionID
	resp.PersonID = status.Identity.PersonID
	resp.ShotID = status.Identity.ShotID
	resp.PendingSaves = status.PendingSaves
	resp.RGBDPending = status.RGBDPending
	resp.EventPending = status.EventPending
	resp.FramesAcquired = status.FramesAcquired
	resp.QueueSize = status.UI.QueueSize
	resp.ColorFrames = status.UI.ColorFrames
	resp.EventFrames = status.UI.EventFrames
	resp.UIPublished = status.UI.Published
	resp.UIDropped = status.UI.Dropped
	for _, alert := range status.UI.Alerts {
		resp.Alerts = append(resp.Alerts, alert.At.Format(time.TimeOnly)+" "+alert.Message)
	}
	resp.SessionsTotal = status.Catalog.Sessions
	resp.SessionsFailed = status.Catalog.Failed
	resp.SessionsFailsafe = status.Catalog.Failsafe
	resp.DataDir = status.DataDir
	resp.CatalogPath = status.CatalogPath
	resp.LockPath = status.LockFilePath
	resp.PID = os.Getpid()
	return nil
}

func (s *service) Record(_ RecordRequest, resp *RecordResponse) error {
	started, err := s.recorder.Record()
	if err != nil {
		return err
	}
	resp.Started = started
	s.logger.Debug("record requested via IPC", logging.Bool("started", started))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	stopped, err := s.recorder.StopSession()
	if err != nil {
		return err
	}
	resp.Stopped = stopped
	s.logger.Debug("stop requested via IPC", logging.Bool("stopped", stopped))
	return nil
}

func (s *service) Cancel(_ CancelRequest, resp *CancelResponse) error {
	cancelled, err := s.recorder.Cancel()
	if err != nil {
		return err
	}
	resp.Cancelled = cancelled
	s.logger.Debug("cancel requested via IPC", logging.Bool("cancelled", cancelled))
	return nil
}

func (s *service) StepAction(req StepRequest, resp *StepResponse) error {
	return s.step(req, resp, s.recorder.StepAction)
}

func (s *service) StepPerson(req StepRequest, resp *StepResponse) error {
	return s.step(req, resp, s.recorder.StepPerson)
}

func (s *service) step(req StepRequest, resp *StepResponse, apply func(int) (bool, error)) error {
	if req.Delta == 0 {
		return errors.New("step delta must be non-zero")
	}
	changed, err := apply(req.Delta)
	if err != nil {
		return err
	}
	id := s.recorder.Status(s.ctx).Identity
	resp.Changed = changed
	resp.ActionID = id.ActionID
	resp.PersonID = id.PersonID
	return nil
}

func (s *service) SetShot(req SetShotRequest, resp *SetShotResponse) error {
	if err := s.recorder.SetShot(req.Shot); err != nil {
		return err
	}
	resp.ShotID = req.Shot
	return nil
}

func (s *service) Sessions(req SessionsRequest, resp *SessionsResponse) error {
	sessions, err := s.recorder.Sessions(s.ctx, catalog.Filter{
		ActionID: req.ActionID,
		PersonID: req.PersonID,
		Limit:    req.Limit,
	})
	if err != nil {
		return err
	}
	resp.Sessions = make([]SessionSummary, 0, len(sessions))
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionSummary(session))
	}
	return nil
}

func (s *service) Snapshot(req SnapshotRequest, resp *SnapshotResponse) error {
	kind, err := ParseSnapshotKind(req.Kind)
	if err != nil {
		return err
	}
	data, err := s.recorder.Snapshot(kind)
	if err != nil {
		return err
	}
	resp.PNG = data
	return nil
}

// ParseSnapshotKind maps "color" or "event" to the preview kind.
func ParseSnapshotKind(value string) (ui.Kind, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "color", "rgb", "rgbd":
		return ui.KindColorFrame, nil
	case "event", "events":
		return ui.KindEventFrame, nil
	default:
		return 0, fmt.Errorf("unknown snapshot kind %q (use color or event)", value)
	}
}

func toSessionSummary(session *catalog.Session) SessionSummary {
	summary := SessionSummary{
		ID:         session.ID,
		ActionID:   session.ActionID,
		PersonID:   session.PersonID,
		ShotID:     session.ShotID,
		Sequence:   session.Sequence,
		Path:       session.Path,
		Failsafe:   session.Failsafe,
		Items:      make(map[string]int, len(session.Modalities)),
		Failed:     session.FailedModalities(),
		StartedAt:  formatTime(session.StartedAt),
		FinishedAt: formatTime(session.FinishedAt),
	}
	for _, m := range session.Modalities {
		summary.Items[m.Name] = m.Items
	}
	sort.Strings(summary.Failed)
	return summary
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
