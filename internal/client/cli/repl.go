package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// printlnFn is a test seam for user-facing output. In tests, replace it with a stub.
var printlnFn = fmt.Println

// execIface defines the minimal command surface the REPL needs to operate.
// The real App type satisfies this interface; tests can provide a lightweight stub.
type execIface interface {
	isLoggedIn() bool
	Login(ctx context.Context, args []string) error
	Logout(ctx context.Context) error

	ListProjects(ctx context.Context) error
	ListArchived(ctx context.Context) error
	NewProject(ctx context.Context, args []string) error
	RenameProject(ctx context.Context, args []string) error
	ArchiveProject(ctx context.Context, args []string) error
	RestoreProject(ctx context.Context, args []string) error
	PurgeProject(ctx context.Context, args []string) error

	ListFixtures(ctx context.Context, args []string) error
	AddFixture(ctx context.Context, args []string) error
	SetSerial(ctx context.Context, args []string) error
	DeleteFixture(ctx context.Context, args []string) error

	Pull(ctx context.Context) error
}

const (
	helpSignedOut = "Available commands: login [token], projects, archived, newproject, rename, archive, restore, purge, fixtures, addfixture, setserial, delfixture, exit"
	helpSignedIn  = "Available commands: projects, archived, newproject, rename, archive, restore, purge, fixtures, addfixture, setserial, delfixture, pull, logout, exit"
)

// runREPL starts a simple read–eval–print loop for the commissioning client.
//
// It reads a line from reader, parses the first token as the command and
// passes the remaining tokens to the matching method on 'a'. Unknown
// commands are reported back to the user. The loop exits on EOF or when
// the user types "exit" or "quit".
//
// Prompt & Commands
//
//	help                          show available commands
//	login [token]                 sign in with an access token
//	logout                        sign out, local data is kept
//	projects                      list active projects
//	archived                      list archived projects
//	newproject <title>            create a project
//	rename <project> <title>      change a project title
//	archive <project>             archive a project
//	restore <project>             restore an archived project
//	purge <project>               delete a project and its fixtures everywhere
//	fixtures <project>            list fixtures and select the project
//	addfixture <address> [label]  add a fixture to the selected project
//	setserial <fixture> <serial>  record the serial of a fixture
//	delfixture <fixture>          delete a fixture
//	pull                          fetch remote changes now
//	exit | quit                   leave the program
//
// A <project> or <fixture> is a full id, the number shown by the last
// listing or a unique id prefix.
//
// Handler errors are printed and the loop continues.
func runREPL(ctx context.Context, a execIface, statusFn func() string, reader *bufio.Reader) {
	for {
		printlnFn(fmt.Sprintf("cs> %s > ", statusFn()))
		line, err := reader.ReadString('\n')
		if err != nil && (!errors.Is(err, io.EOF) || line == "") {
			return
		}
		parts := strings.Fields(line)
		if len(parts) == 0 {
			continue
		}
		cmd, args := parts[0], parts[1:]

		var cmdErr error
		switch cmd {
		case "help":
			if a.isLoggedIn() {
				printlnFn(helpSignedIn)
			} else {
				printlnFn(helpSignedOut)
			}

		case "login":
			cmdErr = a.Login(ctx, args)

		case "logout":
			cmdErr = a.Logout(ctx)

		case "p", "projects":
			cmdErr = a.ListProjects(ctx)

		case "archived":
			cmdErr = a.ListArchived(ctx)

		case "newproject":
			cmdErr = a.NewProject(ctx, args)

		case "rename":
			cmdErr = a.RenameProject(ctx, args)

		case "archive":
			cmdErr = a.ArchiveProject(ctx, args)

		case "restore":
			cmdErr = a.RestoreProject(ctx, args)

		case "purge":
			cmdErr = a.PurgeProject(ctx, args)

		case "f", "fixtures":
			cmdErr = a.ListFixtures(ctx, args)

		case "addfixture":
			cmdErr = a.AddFixture(ctx, args)

		case "setserial":
			cmdErr = a.SetSerial(ctx, args)

		case "delfixture":
			cmdErr = a.DeleteFixture(ctx, args)

		case "pull":
			cmdErr = a.Pull(ctx)

		case "exit", "quit":
			printlnFn("Bye!")
			return

		default:
			printlnFn("Unknown command:", cmd)
		}

		if cmdErr != nil {
			printlnFn("error:", cmdErr)
		}
		if err != nil {
			return
		}
	}
}
