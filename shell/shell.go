// Package shell is the interactive line-oriented rollcall session.
//
// Commands:
//
//	list                          show every activity
//	refresh                       reload from the backend, then list
//	options                       show the activity choices
//	signup <activity|n> <email>   sign up; n picks the nth option
//	retry                         resubmit the signup form after a failure
//	unregister <activity> <email> unregister
//	message                       show the current feedback message
//	logs [action]                 show captured diagnostics
//	help                          show this list
//	quit                          leave the session
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/nomis52/rollcall/app"
	"github.com/nomis52/rollcall/logging"
	"github.com/nomis52/rollcall/render"
)

const prompt = "rollcall> "

const helpText = `Commands:
  list                          show every activity
  refresh                       reload from the backend, then list
  options                       show the activity choices
  signup <activity|n> <email>   sign up; n picks the nth option
  retry                         resubmit the signup form after a failure
  unregister <activity> <email> unregister
  message                       show the current feedback message
  logs [action]                 show captured diagnostics
  help                          show this list
  quit                          leave the session`

// Shell reads commands from in and writes results to out.
type Shell struct {
	app *app.App
	in  io.Reader
	out io.Writer
}

// New creates a Shell over a.
func New(a *app.App, in io.Reader, out io.Writer) *Shell {
	return &Shell{
		app: a,
		in:  in,
		out: out,
	}
}

// Run loads the roster, then executes commands until quit, end of input or
// ctx is cancelled. Failed actions are reported and the session goes on.
func (s *Shell) Run(ctx context.Context) error {
	s.refresh(ctx)

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(s.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				scanErr <- nil
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		fmt.Fprint(s.out, prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(s.out)
			return nil
		case line, ok := <-lines:
			if !ok {
				fmt.Fprintln(s.out)
				return <-scanErr
			}
			if quit := s.exec(ctx, line); quit {
				return nil
			}
		}
	}
}

// exec runs one command line and reports whether the session should end.
func (s *Shell) exec(ctx context.Context, line string) bool {
	cmd, args, _ := strings.Cut(strings.TrimSpace(line), " ")
	args = strings.TrimSpace(args)

	switch strings.ToLower(cmd) {
	case "":
	case "list", "ls":
		s.list()
	case "refresh":
		s.refresh(ctx)
	case "options":
		s.check(render.WriteOptions(s.out, s.app.Page.State()))
	case "signup":
		activity, email, err := s.activityAndEmail(args)
		if err != nil {
			fmt.Fprintf(s.out, "usage: signup <activity|n> <email> (%v)\n", err)
			return false
		}
		s.app.Page.SetForm(activity, email)
		_ = s.app.Controller.Signup(ctx, activity, email)
		s.message()
	case "retry":
		form := s.app.Page.Form()
		if form.Activity == "" || form.Email == "" {
			fmt.Fprintln(s.out, "nothing to retry")
			return false
		}
		_ = s.app.Controller.Signup(ctx, form.Activity, form.Email)
		s.message()
	case "unregister", "rm":
		activity, email, err := s.activityAndEmail(args)
		if err != nil {
			fmt.Fprintf(s.out, "usage: unregister <activity|n> <email> (%v)\n", err)
			return false
		}
		_ = s.app.Controller.Unregister(ctx, activity, email)
		s.message()
	case "message":
		s.message()
	case "logs":
		s.logs(args)
	case "help", "?":
		fmt.Fprintln(s.out, helpText)
	case "quit", "exit":
		return true
	default:
		fmt.Fprintf(s.out, "unknown command %q, try help\n", cmd)
	}
	return false
}

func (s *Shell) refresh(ctx context.Context) {
	_ = s.app.Controller.Refresh(ctx)
	s.list()
}

func (s *Shell) list() {
	s.check(render.WriteText(s.out, s.app.Page.State()))
}

func (s *Shell) message() {
	msg, ok := s.app.Notifier.Current()
	if !ok {
		fmt.Fprintln(s.out, "no message")
		return
	}
	fmt.Fprintf(s.out, "[%s] %s\n", msg.Kind, msg.Text)
}

func (s *Shell) logs(action string) {
	var actions []string
	if action != "" {
		actions = []string{action}
	} else {
		actions = s.app.Logs.Actions()
	}

	for _, a := range actions {
		entries := s.app.Logs.GetLogs(a)
		if len(entries) == 0 {
			fmt.Fprintf(s.out, "%s: no logs\n", a)
			continue
		}
		fmt.Fprintf(s.out, "%s:\n", a)
		for _, e := range entries {
			fmt.Fprintf(s.out, "  %s\n", formatEntry(e))
		}
	}
}

// activityAndEmail splits "<activity> <email>". The email is the last word
// so activity names may contain spaces; a number picks that option.
func (s *Shell) activityAndEmail(args string) (string, string, error) {
	fields := strings.Fields(args)
	if len(fields) < 2 {
		return "", "", fmt.Errorf("need an activity and an email")
	}
	email := fields[len(fields)-1]
	activity := strings.Join(fields[:len(fields)-1], " ")

	if n, err := strconv.Atoi(activity); err == nil {
		options := s.app.Page.State().Options
		if n < 1 || n > len(options) {
			return "", "", fmt.Errorf("no option %d", n)
		}
		activity = options[n-1]
	}
	return activity, email, nil
}

func (s *Shell) check(err error) {
	if err != nil {
		fmt.Fprintf(s.out, "error: %v\n", err)
	}
}

// formatEntry prints a captured record as "15:04:05 LEVEL message k=v ...".
func formatEntry(e logging.LogEntry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %-5s %s", e.Time.Format("15:04:05"), e.Level, e.Message)
	for _, k := range slices.Sorted(maps.Keys(e.Attributes)) {
		fmt.Fprintf(&b, " %s=%v", k, e.Attributes[k])
	}
	return b.String()
}
