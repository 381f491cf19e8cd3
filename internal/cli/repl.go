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
	Add(ctx context.Context) error
	Edit(ctx context.Context) error
	Attach(ctx context.Context) error
	List(ctx context.Context) error
	Show(ctx context.Context) error
	Delete(ctx context.Context) error
	Resolve(ctx context.Context) error
	Sync(ctx context.Context) error
	Status(ctx context.Context) error
	Restore(ctx context.Context) error
	Switch(ctx context.Context) error
}

// runREPL starts a simple read–eval–print loop for the PaperKeep CLI.
//
// It reads a line from the provided scanner, parses the first token as the
// command, and dispatches to methods on 'a'. Unknown commands are reported
// back to the user. The loop exits on scanner EOF or when the user types
// "exit" or "quit".
//
// Commands:
//
//   - help           — show available commands
//   - add            — add a document
//   - edit           — edit a document
//   - attach         — attach a file to a document
//   - (l)ist         — list documents
//   - show           — show a single document (interactive ID prompt)
//   - delete         — delete a document
//   - resolve        — resolve a sync conflict
//   - sync           — run a sync cycle now
//   - status         — show queue and entitlement status
//   - restore        — restore a past subscription purchase
//   - switch         — switch identity (separate local database)
//   - exit | quit    — leave the program
//
// Any errors returned by command handlers are ignored here; handlers should
// log their own errors. This keeps the REPL loop resilient and focused on I/O.
func runREPL(ctx context.Context, a execIface, statusFn func() string, scanner *bufio.Scanner) {
	for {
		printlnFn(fmt.Sprintf("pk> %s > ", statusFn()))
		if !scanner.Scan() {
			return
		}
		line := scanner.Text()
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd := parts[0]

		switch cmd {
		case "help":
			printlnFn("Available commands: add, edit, attach, (l)ist, show, delete, resolve, sync, status, restore, switch, exit")

		case "add":
			_ = a.Add(ctx)

		case "edit":
			_ = a.Edit(ctx)

		case "attach":
			_ = a.Attach(ctx)

		case "l", "list":
			_ = a.List(ctx)

		case "show":
			_ = a.Show(ctx)

		case "delete":
			_ = a.Delete(ctx)

		case "resolve":
			_ = a.Resolve(ctx)

		case "sync":
			_ = a.Sync(ctx)

		case "status":
			_ = a.Status(ctx)

		case "restore":
			_ = a.Restore(ctx)

		case "switch":
			_ = a.Switch(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}
	}
}
