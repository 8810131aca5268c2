package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"path/filepath"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"ffui/internal/daemon"
	"ffui/internal/engine"
	"ffui/internal/logging"
	"ffui/internal/logs"
	"ffui/internal/queue"
	"ffui/internal/services"
)

// maxEventWait caps how long a single long-poll RPC may block server-side.
const maxEventWait = 30 * time.Second

// Server answers client RPCs over a Unix domain socket using JSON-RPC.
type Server struct {
	path      string
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer binds the socket at path and registers the RPC surface backed by
// d. Call Serve to start accepting connections.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	listener, err := bindSocket(path)
	if err != nil {
		return nil, err
	}

	rpcServer := rpc.NewServer()
	if err := rpcServer.RegisterName("FFUI", &service{daemon: d, logger: logger, ctx: ctx}); err != nil {
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

// bindSocket claims the socket path, clearing any stale socket file left
// behind by a previous daemon process.
func bindSocket(path string) (net.Listener, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create socket directory: %w", err)
	}
	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}
	return listener, nil
}

// Serve begins accepting connections in the background.
func (s *Server) Serve() {
	s.logger.Debug("ipc server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go s.acceptLoop()
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.ctx.Err() != nil {
				return
			}
			s.logger.Warn("accept failed",
				logging.Error(err),
				logging.String(logging.FieldEventType, "ipc_accept_failed"),
				logging.String("impact", "clients cannot reach the daemon until accepts recover"),
				logging.String(logging.FieldErrorHint, "Check socket permissions; restart the daemon if connections keep failing"))
			continue
		}
		s.wg.Add(1)
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer s.wg.Done()
	s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(conn))
}

// Close shuts the listener down, waits for in-flight calls, and unlinks the
// socket file.
func (s *Server) Close() {
	s.cancel()
	_ = s.listener.Close()
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "a stale socket file may block the next daemon start"),
			logging.String(logging.FieldErrorHint, "Delete the socket file manually before starting the daemon again"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return logging.NewComponentLogger(s.logger, "ipc")
}

// requestScope tags one RPC call with a short correlation id so daemon log
// lines triggered by the call can be tied back to it.
func (s *service) requestScope() (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString()[:8])
	return ctx, logging.WithContext(ctx, s.log())
}

// waitWindow converts a client-supplied wait in milliseconds into the
// duration the server is willing to block for.
func waitWindow(millis int64) time.Duration {
	wait := time.Duration(millis) * time.Millisecond
	if wait < 0 {
		return 0
	}
	if wait > maxEventWait {
		return maxEventWait
	}
	return wait
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.Version = status.Version
	resp.StartedAtMs = status.StartedAtMs
	resp.QueueStats = make(map[string]int, len(status.Engine.Stats))
	for k, v := range status.Engine.Stats {
		resp.QueueStats[string(k)] = v
	}
	resp.ActiveIDs = append(resp.ActiveIDs, status.Engine.ActiveIDs...)
	resp.QueueDepth = status.Engine.QueueDepth
	resp.SnapshotRevision = status.Engine.SnapshotRevision
	resp.QueueDBPath = status.QueueDBPath
	resp.SocketPath = status.SocketPath
	resp.LockPath = status.LockPath
	resp.LogPath = status.LogPath
	return nil
}

func (s *service) QueueState(_ QueueStateRequest, resp *QueueStateResponse) error {
	resp.State = s.daemon.Engine().State()
	return nil
}

func (s *service) QueueEvents(req QueueEventsRequest, resp *QueueEventsResponse) error {
	ctx, _ := s.requestScope()
	result := s.daemon.Engine().Events(ctx, req.AfterSnapshotRevision, req.AfterDeltaRevision, waitWindow(req.WaitMillis))
	resp.Snapshot = result.Snapshot
	resp.DeltaCursor = result.DeltaCursor
	resp.Deltas = result.Deltas
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	if len(req.Paths) == 0 {
		return errors.New("submit requires at least one path")
	}
	_, logger := s.requestScope()
	result := s.daemon.Engine().Submit(req.Paths, engine.SubmitOptions{
		Source: queue.SourceManual,
		Preset: req.Preset,
	})
	resp.Accepted = result.Accepted
	resp.Skipped = result.Skipped
	logger.Info("paths submitted", logging.Args(
		logging.String(logging.FieldEventType, "ipc_submit"),
		logging.Int("accepted", len(result.Accepted)),
		logging.Int("skipped", len(result.Skipped)))...)
	return nil
}

func (s *service) Wait(req JobRequest, resp *AckResponse) error {
	resp.OK = s.daemon.Engine().Wait(req.ID)
	return nil
}

func (s *service) Resume(req JobRequest, resp *AckResponse) error {
	resp.OK = s.daemon.Engine().Resume(req.ID)
	return nil
}

func (s *service) Cancel(req JobRequest, resp *AckResponse) error {
	resp.OK = s.daemon.Engine().Cancel(req.ID)
	return nil
}

func (s *service) Restart(req JobRequest, resp *AckResponse) error {
	resp.OK = s.daemon.Engine().Restart(req.ID)
	return nil
}

func (s *service) WaitBulk(req BulkRequest, resp *BulkResponse) error {
	resp.OK = s.daemon.Engine().WaitAll(req.IDs)
	return nil
}

func (s *service) ResumeBulk(req BulkRequest, resp *BulkResponse) error {
	resp.OK = s.daemon.Engine().ResumeAll(req.IDs)
	return nil
}

func (s *service) CancelBulk(req BulkRequest, resp *BulkResponse) error {
	resp.OK = s.daemon.Engine().CancelAll(req.IDs)
	return nil
}

func (s *service) RestartBulk(req BulkRequest, resp *BulkResponse) error {
	resp.OK = s.daemon.Engine().RestartAll(req.IDs)
	return nil
}

func (s *service) Remove(req RemoveRequest, resp *RemoveResponse) error {
	_, logger := s.requestScope()
	removed, skipped := s.daemon.Engine().Remove(req.IDs)
	resp.Removed = removed
	resp.Skipped = skipped
	if len(removed) > 0 {
		logger.Info("jobs removed", logging.Args(
			logging.String(logging.FieldEventType, "ipc_remove"),
			logging.Int("removed", len(removed)),
			logging.Int("skipped", len(skipped)))...)
	}
	return nil
}

func (s *service) ClearTerminal(_ ClearTerminalRequest, resp *ClearTerminalResponse) error {
	resp.Removed = s.daemon.Engine().ClearTerminal()
	return nil
}

func (s *service) Reorder(req ReorderRequest, resp *AckResponse) error {
	resp.OK = s.daemon.Engine().Reorder(req.OrderedIDs)
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := waitWindow(req.WaitMillis)
	if wait == 0 && req.Follow {
		wait = time.Second
	}
	ctx, _ := s.requestScope()
	if req.Follow && wait > 0 {
		// Give Tail a little longer than the follow window so it returns
		// its partial result instead of being cut off mid-read.
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Info("shutdown requested", logging.Args(
		logging.String(logging.FieldEventType, "daemon_stop"))...)
	s.daemon.RequestShutdown()
	resp.Stopping = true
	return nil
}
