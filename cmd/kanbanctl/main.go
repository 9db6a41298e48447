// kanbanctl is a command-line client for a kanban server.
//
// It authenticates with a bearer token taken from --token or KANBAN_TOKEN.
// "kanbanctl login" prints one suitable for export.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/gosuda/kanban/internal/client"
)

// usageError is a problem with the command line rather than with the server.
type usageError struct{ msg string }

func (e *usageError) Error() string { return e.msg }

func usagef(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

func main() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Args[1:], os.Stdout); err != nil {
		var uerr *usageError
		if errors.As(err, &uerr) {
			fmt.Fprintf(os.Stderr, "error: %v\n\n", err)
			printUsage(os.Stderr)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globals holds the flags shared by every command.
type globals struct {
	server  string
	token   string
	verbose bool
}

func (g *globals) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&g.server, "server", envOr("KANBAN_SERVER", "http://localhost:8080"), "server base URL")
	fs.StringVar(&g.token, "token", os.Getenv("KANBAN_TOKEN"), "access token")
	fs.BoolVarP(&g.verbose, "verbose", "v", false, "log debug output")
}

func (g *globals) api() *client.HTTPAPI {
	api := client.NewHTTPAPI(g.server, nil)
	api.SetToken(g.token)
	return api
}

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error
}

func commands() []command {
	return []command{
		{"register", "create an account and print its tokens", runRegister},
		{"login", "print tokens for an existing account", runLogin},
		{"boards", "list boards you can see", runBoards},
		{"create-board", "create a board (admins only)", runCreateBoard},
		{"show", "print a board with its lists and tasks", runShow},
		{"add-member", "add a registered user to a board", runAddMember},
		{"create-list", "add a list to a board", runCreateList},
		{"reorder-lists", "set the order of a board's lists", runReorderLists},
		{"create-task", "add a task to a list", runCreateTask},
		{"move", "move a task to a list and position", runMove},
		{"complete", "toggle a task's completion", runComplete},
		{"activity", "print recent board activity", runActivity},
		{"watch", "print the board every time it changes", runWatch},
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	if len(args) == 0 {
		return usagef("missing command")
	}
	if args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		printUsage(out)
		return nil
	}

	for _, cmd := range commands() {
		if cmd.name != args[0] {
			continue
		}

		var g globals
		fs := pflag.NewFlagSet(cmd.name, pflag.ContinueOnError)
		fs.SetOutput(io.Discard)
		g.addFlags(fs)
		return cmd.run(ctx, &g, fs, args[1:], out)
	}
	return usagef("unknown command %q", args[0])
}

// parse parses args and checks the number of positional arguments.
func parse(g *globals, fs *pflag.FlagSet, args []string, positional ...string) ([]string, error) {
	if err := fs.Parse(args); err != nil {
		return nil, usagef("%s: %v", fs.Name(), err)
	}
	if got := fs.NArg(); got != len(positional) {
		return nil, usagef("%s: expected arguments %v, got %d", fs.Name(), positional, got)
	}

	level := zerolog.WarnLevel
	if g.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	return fs.Args(), nil
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: kanbanctl <command> [flags] [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-14s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Global flags:")
	fs := pflag.NewFlagSet("kanbanctl", pflag.ContinueOnError)
	var g globals
	g.addFlags(fs)
	fs.SetOutput(w)
	fs.PrintDefaults()
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
