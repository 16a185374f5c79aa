package rpc

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/danielpatrickdp/path-memory/internal/agent"
	"github.com/danielpatrickdp/path-memory/internal/decay"
	"github.com/danielpatrickdp/path-memory/internal/planner"
	"github.com/danielpatrickdp/path-memory/internal/terrain"
	"github.com/danielpatrickdp/path-memory/internal/waypoint"
)

// #region client-struct
// Client wraps the gRPC connection to a path memory server.
type Client struct {
	conn *grpc.ClientConn
	cc   grpc.ClientConnInterface
}

// #endregion client-struct

// #region constructor
// NewClient connects to the path memory server at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, cc: conn}, nil
}

// NewClientWithConn creates a Client on an existing connection.
func NewClientWithConn(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

// #endregion constructor

// #region close
// Close shuts down the gRPC connection if the client owns it.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion close

// #region calls
func (c *Client) call(ctx context.Context, method string, req map[string]any) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", method, err)
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, fullMethod(method), in, out); err != nil {
		return nil, fmt.Errorf("%s rpc: %w", method, err)
	}
	return out, nil
}

// Observe records a frame in the agent's memory and runs one decay tick.
func (c *Client) Observe(ctx context.Context, agentID string, f agent.Frame) (agent.Observation, error) {
	out, err := c.call(ctx, methodObserve, map[string]any{
		"agent_id":  agentID,
		"x":         f.Pos.X,
		"y":         f.Pos.Y,
		"perceived": string(f.Perceived),
		"moved":     f.Moved,
	})
	if err != nil {
		return agent.Observation{}, err
	}
	r := read(out)
	obs := agent.Observation{
		Visit: waypoint.VisitResult{
			ID:       waypoint.ID(r.integer("waypoint")),
			Created:  r.boolean("created"),
			Linked:   r.boolean("linked"),
			Label:    terrain.Label(r.str("label", false)),
			Anchored: r.boolean("anchored"),
			Pruned:   r.integer("pruned"),
		},
		Decay: decay.Result{
			Edges:  r.integer("decay_edges"),
			Pruned: r.integer("decay_pruned"),
		},
	}
	if r.err != nil {
		return agent.Observation{}, fmt.Errorf("observe response: %w", r.err)
	}
	return obs, nil
}

// Plan asks for the next target toward goal. When the server had to hold
// position the returned error is planner.ErrNoValidTarget.
func (c *Client) Plan(ctx context.Context, agentID string, goal terrain.Label, pos terrain.Position) (planner.Target, error) {
	out, err := c.call(ctx, methodPlan, map[string]any{
		"agent_id": agentID,
		"goal":     string(goal),
		"x":        pos.X,
		"y":        pos.Y,
	})
	if err != nil {
		return planner.Target{}, err
	}
	r := read(out)
	t := planner.Target{
		Pos:    terrain.Pt(r.integer("x"), r.integer("y")),
		Valid:  r.boolean("valid"),
		Source: planner.Source(r.str("source", false)),
	}
	held := r.boolean("held")
	if r.err != nil {
		return planner.Target{}, fmt.Errorf("plan response: %w", r.err)
	}
	if held {
		return t, planner.ErrNoValidTarget
	}
	return t, nil
}

// Arrive reports pos to the planner and returns whether the target was reached.
func (c *Client) Arrive(ctx context.Context, agentID string, pos terrain.Position) (bool, error) {
	out, err := c.call(ctx, methodArrive, map[string]any{"agent_id": agentID, "x": pos.X, "y": pos.Y})
	if err != nil {
		return false, err
	}
	return read(out).boolean("arrived"), nil
}

// Snapshot fetches the agent's memory.
func (c *Client) Snapshot(ctx context.Context, agentID string) (waypoint.Snapshot, error) {
	out, err := c.call(ctx, methodSnapshot, map[string]any{"agent_id": agentID})
	if err != nil {
		return waypoint.Snapshot{}, err
	}
	var snap waypoint.Snapshot
	if err := fromStruct(out, &snap); err != nil {
		return waypoint.Snapshot{}, fmt.Errorf("snapshot response: %w", err)
	}
	return snap, nil
}

// Checkpoint asks the server to commit the agent's memory and returns the
// new version id.
func (c *Client) Checkpoint(ctx context.Context, agentID string) (string, error) {
	out, err := c.call(ctx, methodCheckpoint, map[string]any{"agent_id": agentID})
	if err != nil {
		return "", err
	}
	return read(out).str("version_id", true), nil
}

// #endregion calls
