package command

import (
	"context"
	"strings"
	"sync"
)

// Call records a single invocation made through a Fake runner.
type Call struct {
	Name string
	Args []string
}

// String renders the call the way it would be typed in a shell.
func (c Call) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

var _ Runner = &Fake{}

// Fake is a Runner for tests. It records every call and delegates to
// the optional hooks.
type Fake struct {
	mu    sync.Mutex
	Calls []Call

	RunFunc    func(ctx context.Context, name string, args ...string) error
	OutputFunc func(ctx context.Context, name string, args ...string) ([]byte, error)
}

func (f *Fake) Run(ctx context.Context, name string, args ...string) error {
	f.record(name, args)
	if f.RunFunc != nil {
		return f.RunFunc(ctx, name, args...)
	}
	return nil
}

func (f *Fake) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	f.record(name, args)
	if f.OutputFunc != nil {
		return f.OutputFunc(ctx, name, args...)
	}
	return nil, nil
}

func (f *Fake) record(name string, args []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, Call{Name: name, Args: append([]string(nil), args...)})
}
