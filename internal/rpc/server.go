package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/state"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
)

// #region server-struct
// Loader fetches the active snapshot of an agent. *state.Store satisfies it.
type Loader interface {
	GetCurrent(agentID string) (state.Version, error)
}

type session struct {
	mem  *agent.Memory
	step int64
}

// Server keeps one path memory per agent id behind the PathMemory service.
// Calls are serialized; the memory itself is single-threaded.
type Server struct {
	mu       sync.Mutex
	cfg      agent.Config
	world    agent.World
	store    agent.Committer
	loader   Loader
	logger   *slog.Logger
	seed     uint64
	sessions map[string]*session
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithStore enables Checkpoint. If c can also load versions, memories are
// resumed from the active version on first use.
func WithStore(c agent.Committer) ServerOption {
	return func(s *Server) {
		s.store = c
		if l, ok := c.(Loader); ok {
			s.loader = l
		}
	}
}

// WithServerLogger sets the structured logger.
func WithServerLogger(l *slog.Logger) ServerOption { return func(s *Server) { s.logger = l } }

// WithSeed makes random target sampling reproducible. Each agent gets its
// own stream derived from the seed.
func WithSeed(seed uint64) ServerOption { return func(s *Server) { s.seed = seed } }

// NewServer returns a Server whose memories check perceptions against w.
func NewServer(cfg agent.Config, w agent.World, opts ...ServerOption) *Server {
	s := &Server{cfg: cfg, world: w, sessions: map[string]*session{}}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return s
}

var _ PathMemoryServer = (*Server)(nil)

// #endregion server-struct

// #region session
func (s *Server) session(agentID string) (*session, error) {
	if sess, ok := s.sessions[agentID]; ok {
		return sess, nil
	}
	rng := s.rngFor(agentID)
	sess := &session{}
	if s.loader != nil {
		v, err := s.loader.GetCurrent(agentID)
		switch {
		case err == nil:
			mem, err := agent.RestoreMemory(s.cfg, s.world, s.world.Bounds(), v.Snapshot, rng)
			if err != nil {
				return nil, status.Errorf(codes.DataLoss, "restore %s: %v", agentID, err)
			}
			sess.mem, sess.step = mem, v.Step
			s.logger.Info("memory resumed", "agent", agentID, "version", v.VersionID, "waypoints", mem.Graph().Len())
		case !errors.Is(err, state.ErrNoActiveVersion):
			return nil, status.Errorf(codes.Internal, "load %s: %v", agentID, err)
		}
	}
	if sess.mem == nil {
		sess.mem = agent.NewMemory(s.cfg, s.world, s.world.Bounds(), rng)
	}
	s.sessions[agentID] = sess
	return sess, nil
}

func (s *Server) rngFor(agentID string) *rand.Rand {
	if s.seed == 0 {
		return nil
	}
	var h uint64 = 14695981039346656037
	for i := 0; i < len(agentID); i++ {
		h ^= uint64(agentID[i])
		h *= 1099511628211
	}
	return rand.New(rand.NewPCG(s.seed, h))
}

// #endregion session

// #region handlers
// Observe records a frame and runs one decay tick.
func (s *Server) Observe(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := read(in)
	id := f.str("agent_id", true)
	frame := agent.Frame{
		Pos:       terrain.Pt(f.integer("x"), f.integer("y")),
		Perceived: terrain.Label(f.str("perceived", false)),
		Moved:     f.boolean("moved"),
	}
	if f.err != nil {
		return nil, f.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	sess.step++
	obs := sess.mem.Observe(frame)
	return newStruct(map[string]any{
		"step":         sess.step,
		"waypoint":     int64(obs.Visit.ID),
		"created":      obs.Visit.Created,
		"linked":       obs.Visit.Linked,
		"label":        string(obs.Visit.Label),
		"anchored":     obs.Visit.Anchored,
		"pruned":       obs.Visit.Pruned,
		"decay_edges":  obs.Decay.Edges,
		"decay_pruned": obs.Decay.Pruned,
	})
}

// Plan returns the next target toward goal. Exhausted sampling is reported
// with held=true rather than an error.
func (s *Server) Plan(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := read(in)
	id := f.str("agent_id", true)
	goal := terrain.Label(f.str("goal", false))
	pos := terrain.Pt(f.integer("x"), f.integer("y"))
	if f.err != nil {
		return nil, f.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	t, err := sess.mem.Plan(goal, pos)
	if err != nil && !errors.Is(err, planner.ErrNoValidTarget) {
		return nil, status.Errorf(codes.Internal, "plan: %v", err)
	}
	return newStruct(map[string]any{
		"x":      t.Pos.X,
		"y":      t.Pos.Y,
		"valid":  t.Valid,
		"source": string(t.Source),
		"held":   err != nil,
	})
}

// Arrive clears the target if pos reached it.
func (s *Server) Arrive(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := read(in)
	id := f.str("agent_id", true)
	pos := terrain.Pt(f.integer("x"), f.integer("y"))
	if f.err != nil {
		return nil, f.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"arrived": sess.mem.Planner().Arrive(pos)})
}

// Snapshot returns the agent's memory as a snapshot document.
func (s *Server) Snapshot(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := read(in)
	id := f.str("agent_id", true)
	if f.err != nil {
		return nil, f.err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	out, err := toStruct(sess.mem.Graph().Snapshot())
	if err != nil {
		return nil, status.Errorf(codes.Internal, "snapshot: %v", err)
	}
	return out, nil
}

// Checkpoint commits the agent's memory to the store.
func (s *Server) Checkpoint(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	f := read(in)
	id := f.str("agent_id", true)
	if f.err != nil {
		return nil, f.err
	}
	if s.store == nil {
		return nil, status.Error(codes.FailedPrecondition, "no snapshot store configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sess, err := s.session(id)
	if err != nil {
		return nil, err
	}
	v, err := s.store.Commit(id, sess.step, sess.mem.Graph().Snapshot(), "")
	if err != nil {
		return nil, status.Errorf(codes.Internal, "commit: %v", err)
	}
	s.logger.Info("memory committed", "agent", id, "version", v.VersionID, "step", sess.step)
	return newStruct(map[string]any{
		"version_id": v.VersionID,
		"parent_id":  v.ParentID,
		"step":       v.Step,
	})
}

// #endregion handlers

// #region interceptor
// LoggingInterceptor logs every unary call with its duration and status code.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		logger.Debug("rpc", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
		return resp, err
	}
}

// #endregion interceptor
