package driver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// DutyCyclePlaceholder is replaced by the duty cycle in PWM commands.
const DutyCyclePlaceholder = "((duty_cycle))"

// waitDelay bounds how long a killed command's children may hold its output
// pipes open.
const waitDelay = time.Second

// ErrNoCommand is returned when an output has no command configured for
// the requested action.
var ErrNoCommand = errors.New("no command configured")

// Shell drives command and script outputs by running processes.
//
//   - command: runs Settings.OnCommand or Settings.OffCommand via the shell.
//   - command_pwm: runs Settings.PWMCommand with the duty cycle substituted;
//     off runs it with a duty cycle of 0.
//   - scripted, scripted_pwm: runs Settings.Script with a single argument
//     "on", "off" or the duty cycle.
//
// A non-zero exit status is a failure; the combined output is included in
// the error.
type Shell struct {
	// Shell is the interpreter for command strings. Default "/bin/sh".
	Shell string

	Logger *slog.Logger
}

// NewShell creates a shell driver.
func NewShell(logger *slog.Logger) *Shell {
	return &Shell{Shell: "/bin/sh", Logger: logger}
}

// Activate implements Driver.
func (s *Shell) Activate(ctx context.Context, o output.Output, a Activation) error {
	duty := a.DutyCycle
	if o.Settings.PWMInvert {
		duty = 100 - duty
	}

	switch o.Type {
	case output.TypeCommand:
		return s.runCommand(ctx, o, o.Settings.OnCommand)
	case output.TypeCommandPWM:
		return s.runCommand(ctx, o, substituteDutyCycle(o.Settings.PWMCommand, duty))
	case output.TypeScripted:
		return s.runScript(ctx, o, "on")
	case output.TypeScriptedPWM:
		return s.runScript(ctx, o, formatDutyCycle(duty))
	default:
		return fmt.Errorf("shell driver cannot drive %s outputs", o.Type)
	}
}

// Deactivate implements Driver.
func (s *Shell) Deactivate(ctx context.Context, o output.Output) error {
	off := 0.0
	if o.Settings.PWMInvert {
		off = 100
	}

	switch o.Type {
	case output.TypeCommand:
		return s.runCommand(ctx, o, o.Settings.OffCommand)
	case output.TypeCommandPWM:
		return s.runCommand(ctx, o, substituteDutyCycle(o.Settings.PWMCommand, off))
	case output.TypeScripted:
		return s.runScript(ctx, o, "off")
	case output.TypeScriptedPWM:
		return s.runScript(ctx, o, formatDutyCycle(off))
	default:
		return fmt.Errorf("shell driver cannot drive %s outputs", o.Type)
	}
}

func (s *Shell) runCommand(ctx context.Context, o output.Output, command string) error {
	if strings.TrimSpace(command) == "" {
		return fmt.Errorf("%w for %s", ErrNoCommand, o.UniqueID)
	}
	shell := s.Shell
	if shell == "" {
		shell = "/bin/sh"
	}
	return s.run(ctx, o, exec.CommandContext(ctx, shell, "-c", command))
}

func (s *Shell) runScript(ctx context.Context, o output.Output, arg string) error {
	if o.Settings.Script == "" {
		return fmt.Errorf("%w: no script for %s", ErrNoCommand, o.UniqueID)
	}
	return s.run(ctx, o, exec.CommandContext(ctx, o.Settings.Script, arg))
}

func (s *Shell) run(ctx context.Context, o output.Output, cmd *exec.Cmd) error {
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	cmd.WaitDelay = waitDelay

	if s.Logger != nil {
		s.Logger.Debug("running output command", "unique_id", o.UniqueID, "args", cmd.Args)
	}

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%s: %w: %s", cmd.Args[0], err, strings.TrimSpace(out.String()))
	}
	return nil
}

func substituteDutyCycle(command string, duty float64) string {
	return strings.ReplaceAll(command, DutyCyclePlaceholder, formatDutyCycle(duty))
}

func formatDutyCycle(duty float64) string {
	return strconv.FormatFloat(duty, 'f', -1, 64)
}
