// Package interactive provides the operator console of mycodo-output.
package interactive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/chzyer/readline"

	"github.com/mycodo-go/mycodo-go/pkg/dispatch"
	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/output"
	"github.com/mycodo-go/mycodo-go/pkg/registry"
	"github.com/mycodo-go/mycodo-go/pkg/state"
)

// Service is the subset of the output service the console drives.
type Service interface {
	List() []output.Output
	Add(t output.Type, quantity int) ([]output.Output, error)
	Delete(uniqueID string) error
	Reorder(uniqueID string, dir registry.Direction) error
	Capabilities() []output.Capability
	ExecuteID(ctx context.Context, id string) (dispatch.Ack, error)
	PowerCycle(ctx context.Context, uniqueID string, offFor time.Duration) error
	Snapshot() (map[string]state.Entry, error)
	TimerRemaining(uniqueID string) (time.Duration, bool)
}

// Console handles interactive mode for mycodo-output.
type Console struct {
	rl  *readline.Instance
	out io.Writer
}

// New creates a console on the terminal.
func New() (*Console, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "outputs> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("help"),
			readline.PcItem("list"),
			readline.PcItem("state"),
			readline.PcItem("on"),
			readline.PcItem("off"),
			readline.PcItem("cycle"),
			readline.PcItem("add"),
			readline.PcItem("delete"),
			readline.PcItem("up"),
			readline.PcItem("down"),
			readline.PcItem("types"),
			readline.PcItem("quit"),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &Console{rl: rl, out: rl.Stdout()}, nil
}

// Stdout returns a writer that coordinates with the readline prompt.
// Use it for log output so log lines do not corrupt the input line.
func (c *Console) Stdout() io.Writer {
	return c.rl.Stdout()
}

// Run reads commands until quit, EOF or ctx is done. Quitting cancels the
// daemon through cancel.
func (c *Console) Run(ctx context.Context, svc Service, cancel context.CancelFunc) {
	// Closing the instance unblocks Readline on shutdown.
	stop := context.AfterFunc(ctx, func() { c.rl.Close() })
	defer func() {
		if stop() {
			c.rl.Close()
		}
	}()

	c.printHelp()

	for {
		line, err := c.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) && ctx.Err() == nil {
				continue
			}
			if ctx.Err() == nil {
				fmt.Fprintln(c.out, "Exiting...")
				cancel()
			}
			return
		}
		if !c.Exec(ctx, svc, line) {
			cancel()
			return
		}
	}
}

// Exec runs one command line. It returns false when the console should exit.
func (c *Console) Exec(ctx context.Context, svc Service, line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd := strings.ToLower(parts[0])
	args := parts[1:]
	ctx = log.WithSource(ctx, log.SourceConsole)

	switch cmd {
	case "help", "?":
		c.printHelp()
	case "list", "ls", "l":
		c.cmdList(svc)
	case "state", "s":
		c.cmdState(svc, args)
	case "on":
		c.cmdOn(ctx, svc, args)
	case "off":
		c.cmdOff(ctx, svc, args)
	case "cycle":
		c.cmdCycle(ctx, svc, args)
	case "add":
		c.cmdAdd(svc, args)
	case "delete", "rm":
		c.cmdDelete(svc, args)
	case "up", "down":
		c.cmdReorder(svc, cmd, args)
	case "types":
		c.cmdTypes(svc)
	case "quit", "exit", "q":
		fmt.Fprintln(c.out, "Exiting...")
		return false
	default:
		fmt.Fprintf(c.out, "Unknown command: %s (type 'help' for commands)\n", cmd)
	}
	return true
}

func (c *Console) printHelp() {
	fmt.Fprintln(c.out, `
Output Commands:
  Inspection:
    list                      - List outputs in display order
    state [id]                - Show output state
    types                     - List supported output types

  Control:
    on <id> [sec|pwm|vol <n>] - Switch on, optionally for n seconds, at n% or for n ml
    off <id>                  - Switch off
    cycle <id> <seconds>      - Switch off, wait, switch back on

  Configuration:
    add <type> [quantity]     - Add outputs
    delete <id>               - Delete an output
    up <id> / down <id>       - Move an output in the display order

  Other:
    help                      - Show this help
    quit                      - Exit

Output IDs may be abbreviated to any unique prefix.`)
}

// resolve expands a unique-ID prefix.
func (c *Console) resolve(svc Service, prefix string) (string, bool) {
	var match string
	for _, o := range svc.List() {
		if o.UniqueID == prefix {
			return prefix, true
		}
		if strings.HasPrefix(o.UniqueID, prefix) {
			if match != "" {
				fmt.Fprintf(c.out, "Ambiguous output ID: %s\n", prefix)
				return "", false
			}
			match = o.UniqueID
		}
	}
	if match == "" {
		fmt.Fprintf(c.out, "Unknown output: %s\n", prefix)
		return "", false
	}
	return match, true
}

func (c *Console) cmdList(svc Service) {
	outputs := svc.List()
	if len(outputs) == 0 {
		fmt.Fprintln(c.out, "No outputs configured")
		return
	}
	snap, _ := svc.Snapshot()

	fmt.Fprintf(c.out, "%-3s %-36s %-17s %-20s %s\n", "#", "ID", "TYPE", "NAME", "STATE")
	for _, o := range outputs {
		st := "?"
		if e, ok := snap[o.UniqueID]; ok {
			st = e.Status.String()
		}
		fmt.Fprintf(c.out, "%-3d %-36s %-17s %-20s %s\n", o.SortOrder, o.UniqueID, o.Type, o.Name, st)
	}
}

func (c *Console) cmdState(svc Service, args []string) {
	snap, err := svc.Snapshot()
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}

	if len(args) > 0 {
		id, ok := c.resolve(svc, args[0])
		if !ok {
			return
		}
		c.printEntry(svc, id, snap[id])
		return
	}

	ids := make([]string, 0, len(snap))
	for id := range snap {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		c.printEntry(svc, id, snap[id])
	}
}

func (c *Console) printEntry(svc Service, id string, e state.Entry) {
	line := fmt.Sprintf("%s: %s", id, e.Status)
	if remaining, ok := svc.TimerRemaining(id); ok {
		line += fmt.Sprintf(" (off in %s)", remaining.Round(time.Second))
	}
	if !e.LastUpdated.IsZero() {
		line += fmt.Sprintf(" [updated %s]", e.LastUpdated.Format(time.TimeOnly))
	}
	fmt.Fprintln(c.out, line)
}

func (c *Console) cmdOn(ctx context.Context, svc Service, args []string) {
	if len(args) != 1 && len(args) != 3 {
		fmt.Fprintln(c.out, "Usage: on <id> [sec|pwm|vol <amount>]")
		return
	}
	id, ok := c.resolve(svc, args[0])
	if !ok {
		return
	}
	c.execute(ctx, svc, strings.Join(append([]string{id, "on"}, args[1:]...), "/"))
}

func (c *Console) cmdOff(ctx context.Context, svc Service, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: off <id>")
		return
	}
	id, ok := c.resolve(svc, args[0])
	if !ok {
		return
	}
	c.execute(ctx, svc, id+"/off")
}

func (c *Console) execute(ctx context.Context, svc Service, commandID string) {
	ack, err := svc.ExecuteID(ctx, commandID)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s: %s\n", ack.OutputID, ack.Status)
}

func (c *Console) cmdCycle(ctx context.Context, svc Service, args []string) {
	if len(args) != 2 {
		fmt.Fprintln(c.out, "Usage: cycle <id> <seconds>")
		return
	}
	id, ok := c.resolve(svc, args[0])
	if !ok {
		return
	}
	sec, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		fmt.Fprintf(c.out, "Invalid seconds: %s\n", args[1])
		return
	}
	fmt.Fprintf(c.out, "Power cycling %s...\n", id)
	if err := svc.PowerCycle(ctx, id, time.Duration(sec*float64(time.Second))); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "%s: back on\n", id)
}

func (c *Console) cmdAdd(svc Service, args []string) {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.out, "Usage: add <type> [quantity]")
		return
	}
	quantity := 1
	if len(args) == 2 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(c.out, "Invalid quantity: %s\n", args[1])
			return
		}
		quantity = n
	}
	added, err := svc.Add(output.Type(args[0]), quantity)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	for _, o := range added {
		fmt.Fprintf(c.out, "Added %s (%s) at position %d\n", o.UniqueID, o.Name, o.SortOrder)
	}
}

func (c *Console) cmdDelete(svc Service, args []string) {
	if len(args) != 1 {
		fmt.Fprintln(c.out, "Usage: delete <id>")
		return
	}
	id, ok := c.resolve(svc, args[0])
	if !ok {
		return
	}
	if err := svc.Delete(id); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	fmt.Fprintf(c.out, "Deleted %s\n", id)
}

func (c *Console) cmdReorder(svc Service, direction string, args []string) {
	if len(args) != 1 {
		fmt.Fprintf(c.out, "Usage: %s <id>\n", direction)
		return
	}
	id, ok := c.resolve(svc, args[0])
	if !ok {
		return
	}
	dir, err := registry.ParseDirection(direction)
	if err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	if err := svc.Reorder(id, dir); err != nil {
		fmt.Fprintf(c.out, "Error: %v\n", err)
		return
	}
	c.cmdList(svc)
}

func (c *Console) cmdTypes(svc Service) {
	for _, cp := range svc.Capabilities() {
		fmt.Fprintf(c.out, "%-17s %-7s %-4s %s\n", cp.Type, cp.Family, cp.Unit, cp.DisplayName)
	}
}
