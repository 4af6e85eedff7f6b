package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	outputTable = "table"
	outputJSON  = "json"
	outputYAML  = "yaml"
)

func checkFormat(format string) error {
	switch format {
	case outputTable, outputJSON, outputYAML:
		return nil
	default:
		return fmt.Errorf("unknown output format %q (want table, json or yaml)", format)
	}
}

func renderJSON(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding data to JSON: %w", err)
	}
	return nil
}

func renderYAML(w io.Writer, data any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("encoding data to YAML: %w", err)
	}
	return enc.Close()
}

// renderBody prints a raw API response. Tables make no sense for arbitrary
// documents, so the table format prints indented JSON.
func renderBody(w io.Writer, format string, body []byte) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	var doc any
	if err := json.Unmarshal(body, &doc); err != nil {
		_, err = w.Write(body)
		return err
	}
	if format == outputYAML {
		return renderYAML(w, doc)
	}
	return renderJSON(w, doc)
}

// renderRecords prints list results, one table row per record.
func renderRecords(w io.Writer, format string, records []json.RawMessage, columns []string) error {
	if err := checkFormat(format); err != nil {
		return err
	}

	rows := make([]map[string]any, 0, len(records))
	for _, raw := range records {
		var row map[string]any
		if err := json.Unmarshal(raw, &row); err != nil {
			return fmt.Errorf("decode record: %w", err)
		}
		rows = append(rows, row)
	}

	switch format {
	case outputJSON:
		return renderJSON(w, rows)
	case outputYAML:
		return renderYAML(w, rows)
	}

	if len(rows) == 0 {
		_, err := io.WriteString(w, "No records found\n")
		return err
	}

	if len(columns) == 0 {
		columns = defaultColumns(rows[0])
	}

	table := tablewriter.NewWriter(w)
	table.Header(toAny(columns)...)
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			cells[i] = cell(row[col])
		}
		_ = table.Append(cells)
	}
	return table.Render()
}

// renderProperties prints key/value pairs.
func renderProperties(w io.Writer, format string, props map[string]string) error {
	if err := checkFormat(format); err != nil {
		return err
	}
	switch format {
	case outputJSON:
		return renderJSON(w, props)
	case outputYAML:
		return renderYAML(w, props)
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	table := tablewriter.NewWriter(w)
	table.Header("Property", "Value")
	for _, k := range keys {
		_ = table.Append(k, props[k])
	}
	return table.Render()
}

// defaultColumns puts id first, followed by the scalar fields of row in
// alphabetical order. Nested objects are left out.
func defaultColumns(row map[string]any) []string {
	var cols []string
	for k, v := range row {
		if k == "id" {
			continue
		}
		switch v.(type) {
		case map[string]any, []any:
			continue
		}
		cols = append(cols, k)
	}
	slices.Sort(cols)
	if _, ok := row["id"]; ok {
		cols = append([]string{"id"}, cols...)
	}
	return cols
}

func cell(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case map[string]any, []any:
		var buf bytes.Buffer
		_ = json.NewEncoder(&buf).Encode(val)
		return strings.TrimSpace(buf.String())
	default:
		return fmt.Sprint(val)
	}
}

func toAny(s []string) []any {
	out := make([]any, len(s))
	for i, v := range s {
		out[i] = v
	}
	return out
}
