package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/san-kum/volplay/internal/automation"
	"github.com/san-kum/volplay/internal/playback"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID         string        `json:"id"`
	Scenario   string        `json:"scenario"`
	Timestamp  time.Time     `json:"timestamp"`
	Interval   time.Duration `json:"interval_ns"`
	Until      time.Duration `json:"until_ns"`
	Steps      int           `json:"steps"`
	Changes    int           `json:"changes"`
	MaxPending int           `json:"max_pending"`
	Final      string        `json:"final_axis"`
}

// Save writes a trace as <id>/metadata.json and <id>/steps.csv.
func (s *Store) Save(tr *automation.Trace) (string, error) {
	name := tr.Scenario
	if name == "" {
		name = "trace"
	}
	name = strings.ReplaceAll(name, string(filepath.Separator), "_")
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:         runID,
		Scenario:   tr.Scenario,
		Timestamp:  now,
		Interval:   tr.Interval,
		Until:      tr.Until,
		Steps:      len(tr.Steps),
		Changes:    len(tr.Changes),
		MaxPending: tr.MaxPending,
		Final:      tr.Final.Playing.String(),
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "steps.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	if err := w.Write([]string{"at_ms", "axis", "index"}); err != nil {
		return "", err
	}
	for _, st := range tr.Steps {
		row := []string{
			strconv.FormatFloat(float64(st.At)/float64(time.Millisecond), 'f', 3, 64),
			st.Axis.String(),
			strconv.Itoa(st.Index),
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}

	return runID, nil
}

// List returns saved runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })

	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	return &meta, nil
}

// LoadSteps reads back the step records of a run.
func (s *Store) LoadSteps(runID string) ([]automation.StepRecord, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "steps.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = 3

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}
	if len(records) < 2 {
		return []automation.StepRecord{}, nil
	}

	steps := make([]automation.StepRecord, 0, len(records)-1)
	for i, record := range records[1:] {
		ms, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
		}
		axis, err := playback.ParseAxis(record[1])
		if err != nil {
			return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
		}
		idx, err := strconv.Atoi(record[2])
		if err != nil {
			return nil, fmt.Errorf("run %s row %d: %w", runID, i+1, err)
		}
		steps = append(steps, automation.StepRecord{
			At:    time.Duration(ms * float64(time.Millisecond)),
			Axis:  axis,
			Index: idx,
		})
	}

	return steps, nil
}
