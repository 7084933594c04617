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

	"github.com/ckoons/Tekton-sub009/internal/foundation"
)

// Store persists analysis results on disk, one directory per result, so a
// later synthesis run can consume previously computed per-scale results.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// Entry is the listing view of a stored result.
type Entry struct {
	ID           string    `json:"id"`
	AnalysisType string    `json:"analysis_type"`
	Timestamp    time.Time `json:"timestamp"`
	Confidence   float64   `json:"confidence"`
	Warnings     int       `json:"warnings"`
}

// ShortID truncates a result ID for directory names and listings. IDs shorter
// than the truncation length pass through unchanged.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SaveResult writes the result as indented JSON and returns its directory
// name, <analysis_type>_<short id>.
func (s *Store) SaveResult(result *foundation.Result) (string, error) {
	name := fmt.Sprintf("%s_%s", result.AnalysisType, ShortID(result.ID))
	dir := filepath.Join(s.baseDir, name)

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}

	f, err := os.Create(filepath.Join(dir, "result.json"))
	if err != nil {
		return "", err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return "", err
	}
	return name, nil
}

// LoadResult reads a previously saved result by its directory name. Nested
// data comes back as generic JSON values, not the analyzer's own types.
func (s *Store) LoadResult(name string) (*foundation.Result, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name, "result.json"))
	if err != nil {
		return nil, err
	}
	var result foundation.Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// List returns entries for every readable stored result, newest first.
func (s *Store) List() ([]Entry, error) {
	dirs, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(dirs))
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		result, err := s.LoadResult(d.Name())
		if err != nil {
			continue
		}
		entries = append(entries, Entry{
			ID:           result.ID,
			AnalysisType: result.AnalysisType,
			Timestamp:    result.Timestamp,
			Confidence:   result.Confidence,
			Warnings:     len(result.Warnings),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Timestamp.After(entries[j].Timestamp) })
	return entries, nil
}

// LoadMatrix reads an observation matrix from CSV. A first row that fails to
// parse is treated as a header. Ragged rows are an error; validation of the
// values themselves is the analyzers' job.
func LoadMatrix(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("storage: %s is empty", path)
	}

	start := 0
	if _, err := strconv.ParseFloat(records[0][0], 64); err != nil {
		start = 1
	}

	matrix := make([][]float64, 0, len(records)-start)
	for i := start; i < len(records); i++ {
		record := records[i]
		if len(record) == 0 {
			continue
		}
		row := make([]float64, len(record))
		for j, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("storage: %s row %d column %d: %w", path, i+1, j+1, err)
			}
			row[j] = v
		}
		if len(matrix) > 0 && len(row) != len(matrix[0]) {
			return nil, fmt.Errorf("storage: %s row %d has %d columns, want %d", path, i+1, len(row), len(matrix[0]))
		}
		matrix = append(matrix, row)
	}
	if len(matrix) == 0 {
		return nil, fmt.Errorf("storage: %s has no data rows", path)
	}
	return matrix, nil
}

// SaveMatrix writes an observation matrix as CSV with an x0..xN header.
func SaveMatrix(path string, matrix [][]float64) error {
	if len(matrix) == 0 {
		return fmt.Errorf("storage: empty matrix")
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := make([]string, len(matrix[0]))
	for i := range header {
		header[i] = fmt.Sprintf("x%d", i)
	}
	if err := w.Write(header); err != nil {
		return err
	}

	row := make([]string, len(matrix[0]))
	for _, values := range matrix {
		for j, v := range values {
			row[j] = strconv.FormatFloat(v, 'f', 6, 64)
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}
