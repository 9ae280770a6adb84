package driver_test

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"

	"github.com/mycodo-go/mycodo-go/pkg/driver"
	"github.com/mycodo-go/mycodo-go/pkg/driver/mocks"
	"github.com/mycodo-go/mycodo-go/pkg/output"
)

func TestSet(t *testing.T) {
	s := driver.NewSet()
	sim := driver.NewSimulated(nil)
	s.Register(sim, output.TypeWired, output.TypePWM)

	assert.True(t, s.Has(output.TypeWired))
	assert.False(t, s.Has(output.TypeCommand))
	assert.Equal(t, []output.Type{output.TypePWM, output.TypeWired}, s.Types())

	d, err := s.Get(output.TypePWM)
	require.NoError(t, err)
	assert.Same(t, sim, d)

	_, err = s.Get(output.TypeAtlasPump)
	assert.ErrorIs(t, err, driver.ErrNoDriver)
}

func TestSimulated(t *testing.T) {
	ctx := context.Background()
	sim := driver.NewSimulated(nil)
	fan := output.Output{UniqueID: "fan", Type: output.TypePWM, Settings: output.Settings{PWMInvert: true}}
	light := output.Output{UniqueID: "light", Type: output.TypeWired}

	require.NoError(t, sim.Activate(ctx, fan, driver.Activation{DutyCycle: 30}))
	require.NoError(t, sim.Activate(ctx, light, driver.Activation{}))
	assert.Equal(t, driver.PinState{On: true, DutyCycle: 70}, sim.Pin("fan"), "inverted duty cycle")
	assert.True(t, sim.Pin("light").On)

	require.NoError(t, sim.Deactivate(ctx, light))
	assert.False(t, sim.Pin("light").On)
	assert.Equal(t, 3, sim.Calls())

	t.Run("Disconnected", func(t *testing.T) {
		sim.Disconnect("light")
		assert.Error(t, sim.Activate(ctx, light, driver.Activation{}))
		sim.Reconnect("light")
		assert.NoError(t, sim.Activate(ctx, light, driver.Activation{}))
	})

	t.Run("CancelledContext", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, sim.Deactivate(cctx, light), context.Canceled)
	})
}

func TestShellCommand(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	state := filepath.Join(dir, "state")
	sh := driver.NewShell(nil)

	o := output.Output{UniqueID: "heater", Type: output.TypeCommand, Settings: output.Settings{
		OnCommand:  "echo on > " + state,
		OffCommand: "echo off > " + state,
	}}

	require.NoError(t, sh.Activate(ctx, o, driver.Activation{}))
	assertFile(t, state, "on")
	require.NoError(t, sh.Deactivate(ctx, o))
	assertFile(t, state, "off")

	t.Run("NonZeroExit", func(t *testing.T) {
		bad := o
		bad.Settings.OnCommand = "echo boom >&2; exit 3"
		err := sh.Activate(ctx, bad, driver.Activation{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("NoCommand", func(t *testing.T) {
		empty := output.Output{UniqueID: "x", Type: output.TypeCommand}
		assert.ErrorIs(t, sh.Activate(ctx, empty, driver.Activation{}), driver.ErrNoCommand)
	})

	t.Run("Timeout", func(t *testing.T) {
		slow := o
		slow.Settings.OnCommand = "sleep 5"
		tctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := sh.Activate(tctx, slow, driver.Activation{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(start), 2*time.Second)
	})
}

func TestShellPWMCommand(t *testing.T) {
	ctx := context.Background()
	state := filepath.Join(t.TempDir(), "duty")
	sh := driver.NewShell(nil)

	o := output.Output{UniqueID: "fan", Type: output.TypeCommandPWM, Settings: output.Settings{
		PWMCommand: "echo ((duty_cycle)) > " + state,
	}}

	require.NoError(t, sh.Activate(ctx, o, driver.Activation{DutyCycle: 42.5}))
	assertFile(t, state, "42.5")
	require.NoError(t, sh.Deactivate(ctx, o))
	assertFile(t, state, "0")
}

func TestShellScript(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	state := filepath.Join(dir, "arg")
	script := filepath.Join(dir, "switch.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\necho \"$1\" > "+state+"\n"), 0o755))

	sh := driver.NewShell(nil)

	tests := []struct {
		name   string
		typ    output.Type
		act    driver.Activation
		wantOn string
		want0  string
	}{
		{"OnOff", output.TypeScripted, driver.Activation{}, "on", "off"},
		{"PWM", output.TypeScriptedPWM, driver.Activation{DutyCycle: 60}, "60", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := output.Output{UniqueID: "s", Type: tt.typ, Settings: output.Settings{Script: script}}
			require.NoError(t, sh.Activate(ctx, o, tt.act))
			assertFile(t, state, tt.wantOn)
			require.NoError(t, sh.Deactivate(ctx, o))
			assertFile(t, state, tt.want0)
		})
	}
}

func assertFile(t *testing.T, path, want string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, want, strings.TrimSpace(string(data)))
}

// fakeToken is a completed or pending mqtt.Token.
type fakeToken struct {
	done chan struct{}
	err  error
}

func doneToken(err error) *fakeToken {
	tok := &fakeToken{done: make(chan struct{}), err: err}
	close(tok.done)
	return tok
}

func (f *fakeToken) Wait() bool {
	<-f.done
	return true
}

func (f *fakeToken) WaitTimeout(d time.Duration) bool {
	select {
	case <-f.done:
		return true
	case <-time.After(d):
		return false
	}
}
func (f *fakeToken) Done() <-chan struct{} { return f.done }
func (f *fakeToken) Error() error          { return f.err }

func TestMQTT(t *testing.T) {
	ctx := context.Background()
	pub := mocks.NewMockPublisher(t)
	m := driver.NewMQTT(pub, driver.DefaultMQTTConfig())

	relay := output.Output{UniqueID: "relay-1", Type: output.TypeMQTT}
	outlet := output.Output{UniqueID: "rf-1", Type: output.TypeWirelessRF,
		Settings: output.Settings{Topic: "rf/bridge/outlet3"}}

	pub.EXPECT().Publish("mycodo/output/relay-1", byte(1), true, "on").Return(doneToken(nil)).Once()
	pub.EXPECT().Publish("rf/bridge/outlet3", byte(1), true, "off").Return(doneToken(nil)).Once()

	require.NoError(t, m.Activate(ctx, relay, driver.Activation{}))
	require.NoError(t, m.Deactivate(ctx, outlet))
}

func TestMQTTErrors(t *testing.T) {
	relay := output.Output{UniqueID: "relay-1", Type: output.TypeMQTT}

	t.Run("BrokerError", func(t *testing.T) {
		pub := mocks.NewMockPublisher(t)
		pub.EXPECT().Publish(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(doneToken(errors.New("not connected")))

		err := driver.NewMQTT(pub, driver.DefaultMQTTConfig()).Activate(context.Background(), relay, driver.Activation{})
		assert.ErrorContains(t, err, "not connected")
	})

	t.Run("Timeout", func(t *testing.T) {
		pub := mocks.NewMockPublisher(t)
		pub.EXPECT().Publish(mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(&fakeToken{done: make(chan struct{})})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		err := driver.NewMQTT(pub, driver.DefaultMQTTConfig()).Activate(ctx, relay, driver.Activation{})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

// fakePort replies to each command with the next scripted response.
type fakePort struct {
	mu      sync.Mutex
	written bytes.Buffer
	reply   *strings.Reader
	closed  chan struct{}
	block   bool
	once    sync.Once
}

func newFakePort(reply string) *fakePort {
	return &fakePort{reply: strings.NewReader(reply), closed: make(chan struct{})}
}

func (f *fakePort) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.Write(p)
}

func (f *fakePort) Read(p []byte) (int, error) {
	if f.block {
		<-f.closed
		return 0, io.ErrClosedPipe
	}
	return f.reply.Read(p)
}

func (f *fakePort) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakePort) Written() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.written.String()
}

func TestSerialPump(t *testing.T) {
	ctx := context.Background()
	pump := output.Output{UniqueID: "pmp", Type: output.TypeAtlasPump, Pin: "/dev/ttyUSB0"}

	tests := []struct {
		name    string
		reply   string
		call    func(d *driver.SerialPump) error
		wantCmd string
		wantErr error
	}{
		{
			name:    "DispenseVolume",
			reply:   "*OK\r",
			call:    func(d *driver.SerialPump) error { return d.Activate(ctx, pump, driver.Activation{VolumeMl: 12.5}) },
			wantCmd: "D,12.50\r",
		},
		{
			name:    "Continuous",
			reply:   "*WA\r*OK\r",
			call:    func(d *driver.SerialPump) error { return d.Activate(ctx, pump, driver.Activation{}) },
			wantCmd: "D,*\r",
		},
		{
			name:    "Stop",
			reply:   "*OK\r",
			call:    func(d *driver.SerialPump) error { return d.Deactivate(ctx, pump) },
			wantCmd: "X\r",
		},
		{
			name:    "Rejected",
			reply:   "*ER\r",
			call:    func(d *driver.SerialPump) error { return d.Deactivate(ctx, pump) },
			wantCmd: "X\r",
			wantErr: driver.ErrPumpRejected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port := newFakePort(tt.reply)
			var gotMode *serial.Mode
			d := driver.NewSerialPump(func(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
				assert.Equal(t, "/dev/ttyUSB0", path)
				gotMode = mode
				return port, nil
			}, nil)

			err := tt.call(d)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCmd, port.Written())
			assert.Equal(t, 9600, gotMode.BaudRate)
		})
	}
}

func TestSerialPumpContextCancelClosesPort(t *testing.T) {
	port := newFakePort("")
	port.block = true
	d := driver.NewSerialPump(func(string, *serial.Mode) (io.ReadWriteCloser, error) { return port, nil }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := d.Deactivate(ctx, output.Output{UniqueID: "pmp", Type: output.TypeAtlasPump, Pin: "/dev/ttyUSB0"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSerialPumpOpenFailure(t *testing.T) {
	d := driver.NewSerialPump(func(string, *serial.Mode) (io.ReadWriteCloser, error) {
		return nil, errors.New("no such device")
	}, nil)

	err := d.Deactivate(context.Background(), output.Output{UniqueID: "pmp", Type: output.TypeAtlasPump, Pin: "/dev/ttyUSB9"})
	assert.ErrorContains(t, err, "no such device")
}
