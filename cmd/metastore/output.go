package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// renderFormat specifies how to render CLI output.
type renderFormat string

const (
	renderTable renderFormat = "table"
	renderJSON  renderFormat = "json"
	renderYAML  renderFormat = "yaml"
)

// parseRenderFormat parses and validates the output format flag.
func parseRenderFormat(s string) (renderFormat, error) {
	switch strings.ToLower(s) {
	case "table", "":
		return renderTable, nil
	case "json":
		return renderJSON, nil
	case "yaml":
		return renderYAML, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (supported: table, json, yaml)", s)
	}
}

// render writes data in the requested format. Table output uses the
// provided headers and rows; json and yaml serialize data directly.
func render(w io.Writer, format renderFormat, data any, headers []string, rows [][]string) error {
	switch format {
	case renderJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	case renderYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()
		return enc.Encode(data)
	default:
		return renderTableOutput(w, headers, rows)
	}
}

func renderTableOutput(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}
