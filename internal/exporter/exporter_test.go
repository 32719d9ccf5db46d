package exporter

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func makeSample() ([]string, [][]any) {
	return []string{"id", "name", "score"}, [][]any{
		{int64(1), "alice", 9.5},
		{int64(2), "bob, jr", nil},
	}
}

func TestExportCSV(t *testing.T) {
	cols, rows := makeSample()
	var buf bytes.Buffer
	if err := ExportCSV(&buf, cols, rows, Options{}); err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	want := "id,name,score\n1,alice,9.5\n2,\"bob, jr\",\n"
	if buf.String() != want {
		t.Fatalf("csv = %q, want %q", buf.String(), want)
	}

	buf.Reset()
	if err := ExportCSV(&buf, cols, rows, Options{CSVNoHeader: true, CSVDelimiter: ';'}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "1;alice;9.5\n2;bob, jr;\n" {
		t.Fatalf("csv = %q", buf.String())
	}
}

func TestExportTableAndMarkdown(t *testing.T) {
	cols, rows := makeSample()
	var buf bytes.Buffer
	if err := ExportTable(&buf, cols, rows); err != nil {
		t.Fatal(err)
	}
	want := "id  name     score\n" +
		"--  -------  -----\n" +
		"1   alice    9.5\n" +
		"2   bob, jr  NULL\n" +
		"(2 row(s))\n"
	if buf.String() != want {
		t.Fatalf("table:\n%q\nwant:\n%q", buf.String(), want)
	}

	buf.Reset()
	if err := ExportMarkdown(&buf, cols[:2], [][]any{{int64(1), "x"}}); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "| id | name |\n|----|------|\n| 1  | x    |\n" {
		t.Fatalf("markdown = %q", buf.String())
	}
}

func TestExportJSON(t *testing.T) {
	cols, rows := makeSample()
	var buf bytes.Buffer
	if err := ExportJSON(&buf, cols, rows); err != nil {
		t.Fatalf("ExportJSON failed: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid json %q: %v", buf.String(), err)
	}
	if len(out) != 2 || out[0]["name"] != "alice" || out[1]["score"] != nil {
		t.Fatalf("json = %v", out)
	}
	if !strings.HasPrefix(buf.String(), "[\n  {\"id\": 1, \"name\": \"alice\"") {
		t.Fatalf("key order lost: %s", buf.String())
	}
}

func TestExportYAML(t *testing.T) {
	cols, rows := makeSample()
	var buf bytes.Buffer
	if err := ExportYAML(&buf, cols, rows); err != nil {
		t.Fatal(err)
	}
	var out []map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("invalid yaml %q: %v", buf.String(), err)
	}
	if len(out) != 2 || out[1]["name"] != "bob, jr" || out[0]["score"] != 9.5 {
		t.Fatalf("yaml = %v", out)
	}
}

func TestExportXML(t *testing.T) {
	cols, rows := makeSample()
	var buf bytes.Buffer
	if err := ExportXML(&buf, cols, rows); err != nil {
		t.Fatalf("ExportXML failed: %v", err)
	}
	var parsed struct {
		Rows []struct {
			Name  string `xml:"name"`
			Score struct {
				Value string `xml:",chardata"`
				Null  bool   `xml:"null,attr"`
			} `xml:"score"`
		} `xml:"row"`
	}
	if err := xml.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid xml: %v\n%s", err, buf.String())
	}
	if len(parsed.Rows) != 2 || parsed.Rows[1].Name != "bob, jr" || !parsed.Rows[1].Score.Null || parsed.Rows[0].Score.Value != "9.5" {
		t.Fatalf("xml = %+v", parsed)
	}
}

func TestWriteDispatch(t *testing.T) {
	for _, f := range Formats {
		if !Valid(f) {
			t.Errorf("%s should be valid", f)
		}
		var buf bytes.Buffer
		if err := Write(&buf, f, []string{"a"}, [][]any{{int64(1)}}); err != nil || buf.Len() == 0 {
			t.Errorf("%s: %q, %v", f, buf.String(), err)
		}
	}
	if Valid("html") {
		t.Fatal("html is not a format")
	}
}
