// Package interactive provides the sesame-cli command prompt.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/backkem/sesame/internal/simlock"
	"github.com/backkem/sesame/pkg/device"
	"github.com/chzyer/readline"
)

// Console is the interactive prompt driving one lock session.
type Console struct {
	rl      *readline.Instance
	timeout time.Duration
	pair    *simlock.Pair
}

// New creates the console. timeout bounds each command.
func New(timeout time.Duration) (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "sesame> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("login"),
			readline.PcItem("lock"),
			readline.PcItem("unlock"),
			readline.PcItem("status"),
			readline.PcItem("history"),
			readline.PcItem("rechallenge"),
			readline.PcItem("help"),
			readline.PcItem("exit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, timeout: timeout}, nil
}

// Stdout returns a writer that coordinates with the prompt.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Stderr returns a writer that coordinates with the prompt.
// Use this for log output.
func (c *Console) Stderr() io.Writer {
	return c.rl.Stderr()
}

// Attach binds the console to a session/lock pair and prints every
// status transition.
func (c *Console) Attach(pair *simlock.Pair) {
	c.pair = pair
	pair.Session.Subscribe(device.ObserverFunc(func(e device.StatusEvent) {
		fmt.Fprintf(c.rl.Stdout(), "[%s] %v -> %v\n", e.Device, e.Old, e.New)
	}))
}

// Run reads commands until exit, EOF or ctx is done.
func (c *Console) Run(ctx context.Context, cancel context.CancelFunc) {
	defer c.rl.Close()

	c.printHelp()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := c.rl.Readline()
		if err != nil {
			// EOF or interrupt
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}

		parts := strings.Fields(input)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "help", "?":
			c.printHelp()
		case "login":
			c.run(ctx, "login", c.pair.Session.Login)
		case "lock", "l":
			tag := tagArg(args)
			c.run(ctx, "lock", func(ctx context.Context) error { return c.pair.Session.Lock(ctx, tag) })
		case "unlock", "u":
			tag := tagArg(args)
			c.run(ctx, "unlock", func(ctx context.Context) error { return c.pair.Session.Unlock(ctx, tag) })
		case "status", "s":
			c.cmdStatus()
		case "history", "h":
			c.cmdHistory()
		case "rechallenge":
			if err := c.pair.Lock.Rechallenge(); err != nil {
				fmt.Fprintf(c.rl.Stdout(), "rechallenge: %v\n", err)
			}
		case "quit", "exit", "q":
			fmt.Fprintln(c.rl.Stdout(), "Exiting...")
			cancel()
			return
		default:
			fmt.Fprintf(c.rl.Stdout(), "Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}
}

func (c *Console) run(ctx context.Context, name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		if ce, ok := device.IsCommandError(err); ok {
			fmt.Fprintf(c.rl.Stdout(), "%s: lock answered %v\n", name, ce.Result)
			return
		}
		fmt.Fprintf(c.rl.Stdout(), "%s: %v\n", name, err)
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "%s: ok\n", name)
}

func (c *Console) cmdStatus() {
	s := c.pair.Session
	enc, dec := s.Counters()
	fmt.Fprintf(c.rl.Stdout(), "Lock:     %s\n", s.UUID())
	fmt.Fprintf(c.rl.Stdout(), "Status:   %v\n", s.Status())
	fmt.Fprintf(c.rl.Stdout(), "Counters: encrypt=%d decrypt=%d\n", enc, dec)

	mech, ok := s.MechStatus()
	if !ok {
		fmt.Fprintln(c.rl.Stdout(), "Mech:     (none)")
		return
	}
	fmt.Fprintf(c.rl.Stdout(), "Mech:     position=%d target=%d battery=%.2fV\n",
		mech.Position, mech.Target, mech.BatteryVoltage())
	fmt.Fprintf(c.rl.Stdout(), "          lock=%v unlock=%v stop=%v low=%v\n",
		mech.LockRange, mech.UnlockRange, mech.Stop, mech.LowBattery)
}

func (c *Console) cmdHistory() {
	history := c.pair.Lock.History()
	if len(history) == 0 {
		fmt.Fprintln(c.rl.Stdout(), "No history")
		return
	}
	for _, h := range history {
		fmt.Fprintf(c.rl.Stdout(), "%s  %-6v %q\n", h.Time.Format(time.TimeOnly), h.Item, h.Tag)
	}
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.rl.Stdout(), `
Sesame Commands:
  login              - Log in with the device secret
  lock [tag]         - Lock (tag defaults to the configured history tag)
  unlock [tag]       - Unlock
  status             - Show session status and mechanism state
  history            - Show commands the lock executed
  rechallenge        - Make the lock publish a new challenge
  help               - Show this help
  exit               - Quit`)
}

// tagArg joins the remaining words into a history tag.
func tagArg(args []string) []byte {
	if len(args) == 0 {
		return nil
	}
	return []byte(strings.Join(args, " "))
}
