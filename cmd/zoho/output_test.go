package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func rawRecords(docs ...string) []json.RawMessage {
	out := make([]json.RawMessage, len(docs))
	for i, d := range docs {
		out[i] = json.RawMessage(d)
	}
	return out
}

func TestRenderRecords_Table(t *testing.T) {
	records := rawRecords(
		`{"id":"1","Last_Name":"Doe","Email":"doe@example.com","Owner":{"id":"9"}}`,
		`{"id":"2","Last_Name":"Roe","Email":null}`,
	)

	var buf bytes.Buffer
	if err := renderRecords(&buf, outputTable, records, nil); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}

	out := buf.String()
	for _, want := range []string{"ID", "EMAIL", "LAST", "doe@example.com", "Roe"} {
		if !strings.Contains(strings.ToUpper(out), strings.ToUpper(want)) {
			t.Errorf("table missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(strings.ToUpper(out), "OWNER") {
		t.Errorf("nested objects should not be default columns:\n%s", out)
	}
}

func TestRenderRecords_Columns(t *testing.T) {
	records := rawRecords(`{"id":"1","subject":"Printer","status":"Open","owner":{"id":"9"}}`)

	var buf bytes.Buffer
	if err := renderRecords(&buf, outputTable, records, []string{"subject", "owner"}); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}
	if !strings.Contains(buf.String(), "Printer") || !strings.Contains(buf.String(), `{"id":"9"}`) {
		t.Errorf("table = %s", buf.String())
	}
	if strings.Contains(buf.String(), "Open") {
		t.Errorf("status column should not be rendered:\n%s", buf.String())
	}
}

func TestRenderRecords_Formats(t *testing.T) {
	records := rawRecords(`{"id":"1","name":"a"}`)

	var js bytes.Buffer
	if err := renderRecords(&js, outputJSON, records, nil); err != nil {
		t.Fatalf("json error = %v", err)
	}
	var decoded []map[string]any
	if err := json.Unmarshal(js.Bytes(), &decoded); err != nil || len(decoded) != 1 || decoded[0]["name"] != "a" {
		t.Errorf("json output = %s (err %v)", js.String(), err)
	}

	var yml bytes.Buffer
	if err := renderRecords(&yml, outputYAML, records, nil); err != nil {
		t.Fatalf("yaml error = %v", err)
	}
	if !strings.Contains(yml.String(), "- id: \"1\"") || !strings.Contains(yml.String(), "name: a") {
		t.Errorf("yaml output = %s", yml.String())
	}

	if err := renderRecords(&bytes.Buffer{}, "csv", records, nil); err == nil {
		t.Error("unknown format should fail")
	}
}

func TestRenderRecords_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := renderRecords(&buf, outputTable, nil, nil); err != nil {
		t.Fatalf("renderRecords() error = %v", err)
	}
	if buf.String() != "No records found\n" {
		t.Errorf("output = %q", buf.String())
	}
}

func TestRenderBody(t *testing.T) {
	var buf bytes.Buffer
	if err := renderBody(&buf, outputTable, []byte(`{"org":[{"id":"1"}]}`)); err != nil {
		t.Fatalf("renderBody() error = %v", err)
	}
	if !strings.Contains(buf.String(), "\"org\": [") {
		t.Errorf("expected indented JSON, got %s", buf.String())
	}

	buf.Reset()
	if err := renderBody(&buf, outputJSON, []byte("plain text")); err != nil {
		t.Fatalf("renderBody() error = %v", err)
	}
	if buf.String() != "plain text" {
		t.Errorf("non-JSON body = %q, want passthrough", buf.String())
	}
}

func TestDefaultColumns(t *testing.T) {
	row := map[string]any{"b": 1.0, "id": "x", "a": "y", "nested": map[string]any{}, "list": []any{}}

	got := strings.Join(defaultColumns(row), ",")
	if got != "id,a,b" {
		t.Errorf("defaultColumns() = %q, want id,a,b", got)
	}
}

func TestCell(t *testing.T) {
	tests := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{"text", "text"},
		{42.0, "42"},
		{true, "true"},
		{[]any{"a"}, `["a"]`},
	}

	for _, tt := range tests {
		if got := cell(tt.in); got != tt.want {
			t.Errorf("cell(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
