package layout

import (
	"encoding/json"
	"os"
)

// DebugDump 是调试 JSON 的顶层结构。
type DebugDump struct {
	*Result
	Runs []RowView `json:"runs,omitempty"`
}

// WriteDebugJSON 将布局结果与每行的 bidi Run 输出为 JSON，便于调试或可视化。
func WriteDebugJSON(res *Result, runs []RowView, path string) error {
	if res == nil {
		return nil
	}
	data, err := json.MarshalIndent(DebugDump{Result: res, Runs: runs}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
