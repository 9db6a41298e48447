package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	"github.com/gosuda/kanban/internal/client"
	"github.com/gosuda/kanban/internal/domain"
)

func parseID(what, s string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, usagef("invalid %s %q", what, s)
	}
	return id, nil
}

func printSession(out io.Writer, s *client.Session) {
	fmt.Fprintf(out, "user:    %s <%s> (%s)\n", s.User.Name, s.User.Email, s.User.Role)
	fmt.Fprintf(out, "export KANBAN_TOKEN=%s\n", s.AccessToken)
	fmt.Fprintf(out, "refresh: %s\n", s.RefreshToken)
}

func runRegister(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, at least 6 characters")
	if _, err := parse(g, fs, args); err != nil {
		return err
	}
	if *name == "" || *email == "" || *password == "" {
		return usagef("register: --name, --email and --password are required")
	}

	s, err := g.api().Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	printSession(out, s)
	return nil
}

func runLogin(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password")
	if _, err := parse(g, fs, args); err != nil {
		return err
	}
	if *email == "" || *password == "" {
		return usagef("login: --email and --password are required")
	}

	s, err := g.api().Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	printSession(out, s)
	return nil
}

func runBoards(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	if _, err := parse(g, fs, args); err != nil {
		return err
	}

	boards, err := g.api().ListBoards(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tMEMBERS\tCREATED")
	for _, b := range boards {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", b.ID, b.Name, len(b.Members), b.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}

func runCreateBoard(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	pos, err := parse(g, fs, args, "NAME")
	if err != nil {
		return err
	}

	b, err := g.api().CreateBoard(ctx, pos[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, b.ID)
	return nil
}

func runShow(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	pos, err := parse(g, fs, args, "BOARD_ID")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	b := client.NewBoard(g.api(), boardID, uuid.Nil)
	if err := b.Load(ctx); err != nil {
		return err
	}
	printBoard(out, b)
	return nil
}

func runAddMember(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	pos, err := parse(g, fs, args, "BOARD_ID", "EMAIL")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	u, err := g.api().AddMember(ctx, boardID, pos[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "added %s <%s>\n", u.Name, u.Email)
	return nil
}

func runCreateList(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	pos, err := parse(g, fs, args, "BOARD_ID", "NAME")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	l, err := g.api().CreateList(ctx, boardID, pos[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(out, l.ID)
	return nil
}

func runReorderLists(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	order := fs.StringSlice("order", nil, "every list id of the board, comma separated, in the new order")
	pos, err := parse(g, fs, args, "BOARD_ID")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	ids := make([]uuid.UUID, 0, len(*order))
	for _, s := range *order {
		id, err := parseID("list id", s)
		if err != nil {
			return err
		}
		ids = append(ids, id)
	}

	b := client.NewBoard(g.api(), boardID, uuid.Nil)
	if err := b.Load(ctx); err != nil {
		return err
	}
	if err := b.ReorderLists(ctx, ids); err != nil {
		return err
	}
	printBoard(out, b)
	return nil
}

func runCreateTask(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	boardFlag := fs.String("board", "", "board id")
	listFlag := fs.String("list", "", "list id")
	description := fs.String("description", "", "task description")
	assignees := fs.StringSlice("assign", nil, "member ids to assign, comma separated")
	pos, err := parse(g, fs, args, "TITLE")
	if err != nil {
		return err
	}

	in := client.NewTask{Title: pos[0], Description: *description}
	if in.BoardID, err = parseID("board id", *boardFlag); err != nil {
		return err
	}
	if in.ListID, err = parseID("list id", *listFlag); err != nil {
		return err
	}
	for _, s := range *assignees {
		id, err := parseID("user id", s)
		if err != nil {
			return err
		}
		in.AssignedUsers = append(in.AssignedUsers, id)
	}

	t, err := g.api().CreateTask(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, t.ID)
	return nil
}

func runMove(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	boardFlag := fs.String("board", "", "board id")
	listFlag := fs.String("list", "", "destination list id")
	position := fs.Int("pos", -1, "destination position; negative appends to the list")
	pos, err := parse(g, fs, args, "TASK_ID")
	if err != nil {
		return err
	}
	taskID, err := parseID("task id", pos[0])
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", *boardFlag)
	if err != nil {
		return err
	}
	listID, err := parseID("list id", *listFlag)
	if err != nil {
		return err
	}

	b := client.NewBoard(g.api(), boardID, uuid.Nil)
	if err := b.Load(ctx); err != nil {
		return err
	}
	if err := b.DragEnd(ctx, taskID, listID, *position); err != nil {
		return err
	}
	printBoard(out, b)
	return nil
}

func runComplete(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	boardFlag := fs.String("board", "", "board id")
	pos, err := parse(g, fs, args, "TASK_ID")
	if err != nil {
		return err
	}
	taskID, err := parseID("task id", pos[0])
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", *boardFlag)
	if err != nil {
		return err
	}

	b := client.NewBoard(g.api(), boardID, uuid.Nil)
	if err := b.Load(ctx); err != nil {
		return err
	}
	if err := b.ToggleComplete(ctx, taskID); err != nil {
		return err
	}
	if t, ok := b.Task(taskID); ok {
		fmt.Fprintf(out, "%s %s\n", checkbox(t), t.Title)
	}
	return nil
}

func runActivity(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	limit := fs.Int("limit", 0, "number of records, at most 200; 0 uses the server default")
	pos, err := parse(g, fs, args, "BOARD_ID")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	records, err := g.api().Activity(ctx, boardID, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tACTION\tDETAIL")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.CreatedAt.Format(time.DateTime), r.Action, r.Detail)
	}
	return tw.Flush()
}

func runWatch(ctx context.Context, g *globals, fs *pflag.FlagSet, args []string, out io.Writer) error {
	pos, err := parse(g, fs, args, "BOARD_ID")
	if err != nil {
		return err
	}
	boardID, err := parseID("board id", pos[0])
	if err != nil {
		return err
	}

	api := g.api()
	b := client.NewBoard(api, boardID, uuid.Nil)

	changed := make(chan struct{}, 1)
	b.OnChange(func() {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	// Subscribe loads the board once joined.
	sub, err := api.Subscribe(ctx, b)
	if err != nil {
		return err
	}
	drain(changed)
	printBoard(out, b)

	for {
		select {
		case <-ctx.Done():
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return sub.Close(closeCtx)
		case <-sub.Done():
			if err := sub.Err(); err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			return nil
		case <-changed:
			fmt.Fprintln(out, strings.Repeat("-", 40))
			printBoard(out, b)
		}
	}
}

func drain(ch <-chan struct{}) {
	select {
	case <-ch:
	default:
	}
}

func printBoard(out io.Writer, b *client.Board) {
	board, members := b.Snapshot()
	fmt.Fprintf(out, "%s (%s)\n", board.Name, board.ID)

	names := make(map[uuid.UUID]string, len(members))
	for _, m := range members {
		names[m.ID] = m.Name
	}

	for _, l := range b.Lists() {
		fmt.Fprintf(out, "\n== %s  [%s]\n", l.Name, l.ID)
		for _, t := range b.Tasks(l.ID) {
			fmt.Fprintf(out, "  %s %d. %s  [%s]", checkbox(t), t.Position, t.Title, t.ID)
			for _, id := range t.AssignedUsers {
				if n, ok := names[id]; ok {
					fmt.Fprintf(out, " @%s", n)
				}
			}
			fmt.Fprintln(out)
		}
	}
}

func checkbox(t *domain.TaskView) string {
	if t != nil && t.IsCompleted {
		return "[x]"
	}
	return "[ ]"
}
