package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

const pipelineDSL = `
doc Pipeline v1 {
  page A5 portrait margin 10mm {
    header { "Head" }
    footer { "Foot ${n}" }
    p { "first page" }
    table widths "50%,50%" {
      row {
        cell { "a" }
        cell { "b" }
      }
    }
    pagebreak
    p align justify { "second page with a few more words" }
    pagebreak
    p { "third" }
  }
}
`

func writeDSL(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc.quire")
	if err := os.WriteFile(path, []byte(pipelineDSL), 0o644); err != nil {
		t.Fatalf("write dsl: %v", err)
	}
	return path
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Log.Level = "error"
	cfg.Layout.StopAtPage = 0
	return cfg
}

func TestRunInline(t *testing.T) {
	out, err := run(context.Background(), writeDSL(t), map[string]any{"n": 1}, testConfig())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	res := out.measured.Body.Result
	if !res.Complete || res.PageCount != 3 {
		t.Fatalf("idle pass should finish all pages: complete=%v pages=%d", res.Complete, res.PageCount)
	}
	if len(res.PageBoundaryStates) != res.PageCount {
		t.Fatalf("expected one boundary state per page, got %d", len(res.PageBoundaryStates))
	}
	if out.measured.Options.StopAtPage != nil {
		t.Fatalf("final options should not stay bounded")
	}

	n, err := paintDocument(out)
	if err != nil {
		t.Fatalf("paint: %v", err)
	}
	if n == 0 {
		t.Fatalf("expected draw calls")
	}

	debugPath := filepath.Join(t.TempDir(), "debug", "layout.json")
	if err := writeDebug(out.doc, res, debugPath); err != nil {
		t.Fatalf("debug: %v", err)
	}
	data, err := os.ReadFile(debugPath)
	if err != nil {
		t.Fatalf("read debug: %v", err)
	}
	if !json.Valid(data) {
		t.Fatalf("debug output should be valid JSON")
	}
}

func TestRunThroughBridgeMatchesInline(t *testing.T) {
	path := writeDSL(t)
	inline, err := run(context.Background(), path, nil, testConfig())
	if err != nil {
		t.Fatalf("inline run: %v", err)
	}
	cfg := testConfig()
	cfg.Bridge.Enabled = true
	remote, err := run(context.Background(), path, nil, cfg)
	if err != nil {
		t.Fatalf("bridge run: %v", err)
	}

	a, b := inline.measured.Body.Result, remote.measured.Body.Result
	if a.PageCount != b.PageCount || len(a.Rows) != len(b.Rows) {
		t.Fatalf("bridge result differs: pages %d/%d rows %d/%d", a.PageCount, b.PageCount, len(a.Rows), len(b.Rows))
	}
	for i := range a.Rows {
		if a.Rows[i].PageNo != b.Rows[i].PageNo || len(a.Rows[i].ElementIndices) != len(b.Rows[i].ElementIndices) {
			t.Fatalf("row %d differs: %+v vs %+v", i, a.Rows[i], b.Rows[i])
		}
	}
	if len(b.PageBoundaryStates) != b.PageCount {
		t.Fatalf("stitched states mismatch: %d", len(b.PageBoundaryStates))
	}
}

func TestRunMissingInput(t *testing.T) {
	if _, err := run(context.Background(), filepath.Join(t.TempDir(), "none.quire"), nil, testConfig()); err == nil {
		t.Fatalf("missing input should fail")
	}
}
