package dispatch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/HerbHall/lockboxctl/internal/discovery"
)

// Format selects how structured results are printed.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat validates s as a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case FormatText, FormatJSON, FormatTable:
		return f, nil
	}
	return "", fmt.Errorf("unknown output format %q (want text, json or table)", s)
}

func (d *Dispatcher) printSettings(data json.RawMessage) error {
	switch d.format {
	case FormatTable:
		var settings map[string]json.RawMessage
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("format settings: %w", err)
		}
		d.printf("%s\n", settingsTable(settings))
		return nil
	case FormatText:
		d.printf("Current settings are:\n")
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return fmt.Errorf("format settings: %w", err)
	}
	d.printf("%s\n", buf.String())
	return nil
}

func (d *Dispatcher) printDevices(devices []discovery.Announcement) error {
	if d.format == FormatJSON {
		if devices == nil {
			devices = []discovery.Announcement{}
		}
		enc := json.NewEncoder(d.out)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	}

	if len(devices) == 0 {
		d.printf("No lockbox found\n")
		return nil
	}
	d.printf("%s\n", deviceTable(devices))
	return nil
}

// settingsTable lists settings sorted by key. String values lose their
// JSON quotes.
func settingsTable(settings map[string]json.RawMessage) string {
	keys := make([]string, 0, len(settings))
	for k := range settings {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := newTable(table.Row{"Setting", "Value"})
	for _, k := range keys {
		tw.AppendRow(table.Row{k, scalar(settings[k])})
	}
	return tw.Render()
}

// deviceTable lists announcements with the port right-aligned.
func deviceTable(devices []discovery.Announcement) string {
	tw := newTable(table.Row{"Name", "Address", "Port", "Host"})
	for _, a := range devices {
		tw.AppendRow(table.Row{a.Name, a.Address(), a.Port, a.Host})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Name: "Port", Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

// scalar renders a JSON value for a table cell.
func scalar(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
