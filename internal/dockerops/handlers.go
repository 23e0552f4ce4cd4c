package dockerops

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kverlaine/opsdeck/internal/gateway"
)

// lifecycleArgs are the arguments for the docker lifecycle commands.
type lifecycleArgs struct {
	Name string `json:"name"`
}

// RegisterHandlers binds the docker commands onto the local gateway.
func RegisterHandlers(g *gateway.Local, m *Manager) {
	g.Register("docker.list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return m.List(ctx)
	})

	lifecycle := func(op func(context.Context, string) error) gateway.Handler {
		return func(ctx context.Context, raw json.RawMessage) (any, error) {
			var args lifecycleArgs
			if err := json.Unmarshal(raw, &args); err != nil {
				return nil, fmt.Errorf("decode args: %w", err)
			}
			if err := op(ctx, args.Name); err != nil {
				return nil, err
			}
			return map[string]string{"name": args.Name}, nil
		}
	}

	g.Register("docker.start", lifecycle(m.Start))
	g.Register("docker.stop", lifecycle(m.Stop))
	g.Register("docker.restart", lifecycle(m.Restart))
	g.Register("docker.remove", lifecycle(m.Remove))
}
