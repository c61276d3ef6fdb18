package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/odestep/internal/config"
	"github.com/san-kum/odestep/internal/continuous"
	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
	"github.com/san-kum/odestep/internal/experiment"
	"github.com/san-kum/odestep/internal/handlers"
)

const (
	metadataFile = "metadata.json"
	outputFile   = "output.json"
	samplesFile  = "samples.csv"
)

// Store keeps one directory per run under baseDir.
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
	ID        string              `json:"id"`
	Problem   string              `json:"problem"`
	Scheme    string              `json:"scheme"`
	Timestamp time.Time           `json:"timestamp"`
	T0        float64             `json:"t0"`
	TEnd      float64             `json:"t_end"`
	FinalTime float64             `json:"final_time"`
	Final     dynamo.State        `json:"final_state"`
	Stats     dynamo.Stats        `json:"stats"`
	Events    []events.Occurrence `json:"events,omitempty"`
	Metrics   map[string]float64  `json:"metrics"`
	Config    *config.Config      `json:"config"`
	Elapsed   string              `json:"elapsed"`
}

// Save writes the metadata, the continuous output and the sampled
// trajectory of res, and returns the new run ID.
func (s *Store) Save(cfg *config.Config, res *experiment.Result) (string, error) {
	runID := uuid.NewString()
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Problem:   res.Problem,
		Scheme:    res.Scheme,
		Timestamp: time.Now().UTC(),
		T0:        res.T0,
		TEnd:      res.TEnd,
		FinalTime: res.FinalTime,
		Final:     res.Final,
		Stats:     res.Stats,
		Events:    res.Events,
		Metrics:   res.Metrics,
		Config:    cfg,
		Elapsed:   res.Elapsed.String(),
	}
	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, outputFile), res.Model); err != nil {
		return "", err
	}
	if res.Samples != nil && res.Samples.Len() > 0 {
		if err := writeSamples(filepath.Join(runDir, samplesFile), res.Samples); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func writeJSON(path string, v any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("storage: encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeSamples(path string, tr *handlers.Trajectory) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{"t"}
	for i := range tr.States[0] {
		header = append(header, fmt.Sprintf("y%d", i))
	}
	if err := w.Write(header); err != nil {
		return err
	}

	for i, y := range tr.States {
		row := []string{strconv.FormatFloat(tr.Times[i], 'g', -1, 64)}
		for _, val := range y {
			row = append(row, strconv.FormatFloat(val, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// List returns the stored runs, oldest first. Directories without readable
// metadata are skipped.
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

	sort.SliceStable(runs, func(i, j int) bool {
		return runs[i].Timestamp.Before(runs[j].Timestamp)
	})
	return runs, nil
}

func (s *Store) runDir(runID string) (string, error) {
	id, err := uuid.Parse(runID)
	if err != nil {
		return "", fmt.Errorf("storage: invalid run id %q: %w", runID, err)
	}
	return filepath.Join(s.baseDir, id.String()), nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("storage: decode metadata of %s: %w", runID, err)
	}
	return &meta, nil
}

// LoadModel restores the continuous output of a run.
func (s *Store) LoadModel(runID string) (*continuous.Model, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dir, outputFile))
	if err != nil {
		return nil, err
	}
	m := continuous.New()
	if err := json.Unmarshal(data, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *Store) LoadSamples(runID string) (*handlers.Trajectory, error) {
	dir, err := s.runDir(runID)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(filepath.Join(dir, samplesFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}

	tr := &handlers.Trajectory{}
	for i := 1; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		values := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s line %d: %w", samplesFile, i+1, err)
			}
			values[j] = v
		}
		if err := tr.HandleSample(values[0], dynamo.State(values[1:]), false); err != nil {
			return nil, err
		}
	}
	return tr, nil
}
