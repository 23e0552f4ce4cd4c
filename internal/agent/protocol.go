// Package agent runs the privileged backend as a long-lived process
// serving gateway commands over a Unix socket, so the console can run
// unprivileged and reconnect across restarts.
package agent

import (
	"github.com/kverlaine/opsdeck/internal/gateway"
)

// Request is one command invocation sent over the socket.
type Request struct {
	Command string `json:"command"`
	Args    any    `json:"args,omitempty"`
	ID      int    `json:"id,omitempty"`
}

// Response carries the gateway result back, echoing the request ID.
type Response struct {
	gateway.Result
	ID int `json:"id,omitempty"`
}

// PingResponse is the payload of the agent.ping command.
type PingResponse struct {
	Status    string   `json:"status"`
	PID       int      `json:"pid"`
	StartTime string   `json:"start_time"`
	Uptime    string   `json:"uptime"`
	Commands  []string `json:"commands"`
}
