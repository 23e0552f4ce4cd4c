package gateway

import (
	"context"
	"sync"
)

// Mock is a scripted Gateway for tests. Responses are queued per command;
// unscripted commands fail. A per-command gate channel can hold a response
// back until the test releases it, to exercise timeout and staleness paths.
type Mock struct {
	mu        sync.Mutex
	responses map[string][]Result
	gates     map[string]chan struct{}

	// Calls records every invocation in order.
	Calls []MockCall
}

// MockCall is one recorded invocation.
type MockCall struct {
	Command string
	Args    any
}

// NewMock creates an empty Mock.
func NewMock() *Mock {
	return &Mock{
		responses: make(map[string][]Result),
		gates:     make(map[string]chan struct{}),
	}
}

// Respond queues a response for a command. Multiple responses are consumed
// in FIFO order; the last one is sticky.
func (m *Mock) Respond(command string, res Result) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[command] = append(m.responses[command], res)
}

// Gate makes invocations of command block until the returned release
// function is called.
func (m *Mock) Gate(command string) (release func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch := make(chan struct{})
	m.gates[command] = ch
	var once sync.Once
	return func() { once.Do(func() { close(ch) }) }
}

// Invoke returns the next scripted response for command.
func (m *Mock) Invoke(ctx context.Context, command string, args any) Result {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Command: command, Args: args})
	gate := m.gates[command]
	m.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Fail(ctx.Err())
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	queue := m.responses[command]
	if len(queue) == 0 {
		return Failf("mock: no response scripted for %s", command)
	}
	res := queue[0]
	if len(queue) > 1 {
		m.responses[command] = queue[1:]
	}
	return res
}

// CallCount returns how many times command was invoked.
func (m *Mock) CallCount(command string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.Calls {
		if c.Command == command {
			n++
		}
	}
	return n
}
