package toolkit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kverlaine/opsdeck/internal/gateway"
)

// installArgs are the arguments for tools.install.
type installArgs struct {
	Name string `json:"name"`
}

// InstallResult is the payload returned by tools.install.
type InstallResult struct {
	Name   string `json:"name"`
	Output string `json:"output"`
}

// RegisterHandlers binds the tools commands onto the local gateway.
func RegisterHandlers(g *gateway.Local, k *Kit) {
	g.Register("tools.list", func(ctx context.Context, _ json.RawMessage) (any, error) {
		return k.Statuses(ctx), nil
	})

	g.Register("tools.install", func(ctx context.Context, raw json.RawMessage) (any, error) {
		var args installArgs
		if err := json.Unmarshal(raw, &args); err != nil {
			return nil, fmt.Errorf("decode args: %w", err)
		}
		if args.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		out, err := k.Install(ctx, args.Name)
		if err != nil {
			return nil, err
		}
		return InstallResult{Name: args.Name, Output: out}, nil
	})
}
