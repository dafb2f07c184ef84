package messaging

import (
	"context"
	"errors"
)

var (
	ErrNoCommandHandler        = errors.New("no handler registered for command")
	ErrDuplicateCommandHandler = errors.New("handler already registered for command")
)

// Command represents an instruction routed to exactly one handler
type Command interface {
	CommandType() string
}

// CommandResult is the explicit two-outcome result of an asynchronous send.
// A remote handler failure arrives here as Err, never as a panic or a fault
// surfaced to the caller.
type CommandResult struct {
	Value string
	Err   error
}

// CommandHandler executes a command and returns an acknowledgment value
type CommandHandler interface {
	Handle(ctx context.Context, cmd Command) (string, error)
}

// CommandHandlerFunc adapts a function to the CommandHandler interface
type CommandHandlerFunc func(ctx context.Context, cmd Command) (string, error)

func (f CommandHandlerFunc) Handle(ctx context.Context, cmd Command) (string, error) {
	return f(ctx, cmd)
}

// CommandBus routes commands to their single registered handler
type CommandBus interface {
	// Send dispatches the command asynchronously. The returned channel
	// delivers exactly one CommandResult and is then closed.
	Send(ctx context.Context, cmd Command) <-chan CommandResult

	// SendAndWait dispatches the command and blocks until the handler
	// acknowledges or fails.
	SendAndWait(ctx context.Context, cmd Command) (string, error)
}

// CommandRegistry registers command handlers
type CommandRegistry interface {
	RegisterCommandHandler(commandType string, handler CommandHandler) error
}
