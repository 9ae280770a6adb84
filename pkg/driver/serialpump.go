package driver

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/mycodo-go/mycodo-go/pkg/output"
)

// ErrPumpRejected is returned when the pump answers a command with an error.
var ErrPumpRejected = errors.New("pump rejected command")

// PortOpener opens a serial port.
type PortOpener func(path string, mode *serial.Mode) (io.ReadWriteCloser, error)

// OpenSerial opens a real serial port.
func OpenSerial(path string, mode *serial.Mode) (io.ReadWriteCloser, error) {
	return serial.Open(path, mode)
}

// SerialPump drives Atlas Scientific EZO-PMP dispensing pumps over UART.
// The output's Pin holds the device path (for example /dev/ttyAMA0).
//
// Activation with a volume sends "D,<ml>" and the pump meters the volume
// itself. Activation without one sends "D,*" (dispense until stopped).
// Deactivation sends "X".
type SerialPump struct {
	open   PortOpener
	logger *slog.Logger

	// mu serializes access per device path; several outputs may share one.
	mu    sync.Mutex
	ports map[string]*sync.Mutex
}

// NewSerialPump creates a serial pump driver. open defaults to OpenSerial.
func NewSerialPump(open PortOpener, logger *slog.Logger) *SerialPump {
	if open == nil {
		open = OpenSerial
	}
	return &SerialPump{open: open, logger: logger, ports: make(map[string]*sync.Mutex)}
}

// Activate implements Driver.
func (p *SerialPump) Activate(ctx context.Context, o output.Output, a Activation) error {
	cmd := "D,*"
	if a.VolumeMl > 0 {
		cmd = "D," + strconv.FormatFloat(a.VolumeMl, 'f', 2, 64)
	}
	return p.send(ctx, o, cmd)
}

// Deactivate implements Driver.
func (p *SerialPump) Deactivate(ctx context.Context, o output.Output) error {
	return p.send(ctx, o, "X")
}

func (p *SerialPump) portLock(path string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.ports[path]
	if !ok {
		l = &sync.Mutex{}
		p.ports[path] = l
	}
	return l
}

// send writes one command and waits for the *OK or *ER response code.
func (p *SerialPump) send(ctx context.Context, o output.Output, cmd string) error {
	if o.Pin == "" {
		return fmt.Errorf("pump %s has no serial device", o.UniqueID)
	}
	baud := o.Settings.BaudRate
	if baud == 0 {
		baud = 9600
	}

	l := p.portLock(o.Pin)
	l.Lock()
	defer l.Unlock()

	port, err := p.open(o.Pin, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return fmt.Errorf("open %s: %w", o.Pin, err)
	}

	// Closing the port unblocks a pending read when ctx ends.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		port.Close()
	}()

	if p.logger != nil {
		p.logger.Debug("pump command", "unique_id", o.UniqueID, "device", o.Pin, "command", cmd)
	}

	if _, err := io.WriteString(port, cmd+"\r"); err != nil {
		return p.ioError(ctx, o, err)
	}

	r := bufio.NewReader(port)
	for {
		line, err := r.ReadString('\r')
		if err != nil {
			return p.ioError(ctx, o, err)
		}
		switch resp := strings.TrimSpace(line); {
		case resp == "*OK":
			return nil
		case resp == "*ER":
			return fmt.Errorf("%w: %s on %s", ErrPumpRejected, cmd, o.Pin)
		}
		// Other lines (*DONE, *WA, status) are ignored.
	}
}

func (p *SerialPump) ioError(ctx context.Context, o output.Output, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("pump %s: %w", o.Pin, ctx.Err())
	}
	return fmt.Errorf("pump %s: %w", o.Pin, err)
}
