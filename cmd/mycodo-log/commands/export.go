package commands

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/mycodo-go/mycodo-go/pkg/log"
	"github.com/mycodo-go/mycodo-go/pkg/publish"
)

// RunExport writes the events matching opts as JSON lines or CSV to output,
// or to stdout when output is empty. JSON lines use the same message form
// as the MQTT and Kafka publishers.
func RunExport(path string, opts FilterOptions, format, output string) error {
	filter, err := opts.Build()
	if err != nil {
		return err
	}

	var w io.Writer = os.Stdout
	if output != "" {
		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	switch format {
	case "jsonl":
		return exportJSONL(path, filter, w)
	case "csv":
		return exportCSV(path, filter, w)
	default:
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
}

func exportJSONL(path string, filter log.Filter, w io.Writer) error {
	encoder := json.NewEncoder(w)
	return each(path, filter, func(e log.Event) error {
		if err := encoder.Encode(publish.NewMessage(e)); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

var csvHeader = []string{
	"timestamp", "unique_id", "output_type", "source", "category",
	"action", "qualifier", "amount", "result", "driver_ms",
	"old_state", "new_state", "error",
}

func exportCSV(path string, filter log.Filter, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	err := each(path, filter, func(e log.Event) error {
		m := publish.NewMessage(e)
		var amount, driverMs string
		if e.Command != nil {
			amount = strconv.FormatFloat(e.Command.Amount, 'f', -1, 64)
			driverMs = strconv.FormatInt(e.Command.DriverTime.Milliseconds(), 10)
		}
		row := []string{
			e.Timestamp.UTC().Format("2006-01-02T15:04:05.000000Z"),
			m.OutputID, m.OutputType, m.Source, m.Category,
			m.Action, m.Qualifier, amount, m.Result, driverMs,
			m.OldState, m.NewState, m.Error,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row: %w", err)
		}
		return nil
	})
	cw.Flush()
	if err != nil {
		return err
	}
	return cw.Error()
}
