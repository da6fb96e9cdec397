package storage

import (
	"encoding/json"
	"io"
	"os"

	"github.com/san-kum/volplay/internal/automation"
)

type ExportData struct {
	Scenario   string                  `json:"scenario"`
	IntervalMs float64                 `json:"interval_ms"`
	UntilMs    float64                 `json:"until_ms"`
	MaxPending int                     `json:"max_pending"`
	Steps      []automation.StepRecord `json:"steps"`
	Changes    []automation.AxisChange `json:"changes"`
	Final      string                  `json:"final_axis"`
}

func newExportData(tr *automation.Trace) ExportData {
	return ExportData{
		Scenario:   tr.Scenario,
		IntervalMs: tr.Interval.Seconds() * 1000,
		UntilMs:    tr.Until.Seconds() * 1000,
		MaxPending: tr.MaxPending,
		Steps:      tr.Steps,
		Changes:    tr.Changes,
		Final:      tr.Final.Playing.String(),
	}
}

// WriteJSON encodes a trace as indented JSON.
func WriteJSON(w io.Writer, tr *automation.Trace) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(newExportData(tr))
}

func ExportJSON(path string, tr *automation.Trace) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return WriteJSON(file, tr)
}
