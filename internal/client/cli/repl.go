package cli

import (
	"bufio"
	"context"
	"fmt"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	SignUp(ctx context.Context) error
	SignIn(ctx context.Context) error
	Me(ctx context.Context) error
	Renew(ctx context.Context) error
	Logout(ctx context.Context) error
	LogoutAll(ctx context.Context) error
	Ping(ctx context.Context) error
}

// ErrUnknownCommand is returned by dispatch for names it does not know.
type ErrUnknownCommand string

func (e ErrUnknownCommand) Error() string {
	return "unknown command: " + string(e)
}

func help(loggedIn bool) string {
	if loggedIn {
		return "Available commands: me, renew, logout, logout-all, ping, exit"
	}
	return "Available commands: signup, signin, ping, exit"
}

// dispatch runs a single command. quit reports that the user asked to leave.
func dispatch(ctx context.Context, a execIface, cmd string) (quit bool, err error) {
	switch cmd {
	case "help":
		printlnFn(help(a.isLoggedIn()))
	case "signup", "register":
		err = a.SignUp(ctx)
	case "signin", "login":
		err = a.SignIn(ctx)
	case "me":
		err = a.Me(ctx)
	case "renew":
		err = a.Renew(ctx)
	case "logout":
		err = a.Logout(ctx)
	case "logout-all":
		err = a.LogoutAll(ctx)
	case "ping":
		err = a.Ping(ctx)
	case "exit", "quit":
		return true, nil
	default:
		err = ErrUnknownCommand(cmd)
	}
	return false, err
}

// runREPL starts a simple read–eval–print loop for the authctl CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Command errors are printed and
// the loop goes on. The loop exits on scanner EOF, on a cancelled ctx, or
// when the user types "exit" or "quit".
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("authctl %s> ", statusFn()))
		if !scanner.Scan() {
			return
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}

		quit, err := dispatch(ctx, a, parts[0])
		if quit {
			printlnFn("Bye!")
			return
		}
		if err != nil {
			printlnFn("error:", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
}
