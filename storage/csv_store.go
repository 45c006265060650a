package storage

import (
	"database/sql"
	"encoding/csv"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

// PanelKeyColumns lead every cleaned and panel CSV.
var PanelKeyColumns = []string{"country", "country_code", "year"}

// CSVStore reads and writes the pipeline's flat files. Every write creates
// the target directory if needed and truncates any previous file; there is
// no index column.
type CSVStore struct {
	rawDir     string
	cleanedDir string
	finalDir   string
	logger     *utils.Logger
}

// NewCSVStore creates a store rooted at the three pipeline directories.
func NewCSVStore(rawDir, cleanedDir, finalDir string, logger *utils.Logger) *CSVStore {
	return &CSVStore{
		rawDir:     rawDir,
		cleanedDir: cleanedDir,
		finalDir:   finalDir,
		logger:     logger,
	}
}

// RawPath returns the raw file of an indicator.
func (s *CSVStore) RawPath(indicatorName string) string {
	return filepath.Join(s.rawDir, indicatorName+".csv")
}

// CleanedPath returns the cleaned file of an indicator.
func (s *CSVStore) CleanedPath(indicatorName string) string {
	return filepath.Join(s.cleanedDir, indicatorName+"_clean.csv")
}

// DatasetPath returns the path of a final dataset file.
func (s *CSVStore) DatasetPath(filename string) string {
	return filepath.Join(s.finalDir, filename)
}

// SaveRaw writes the flattened records of one indicator to {name}.csv.
func (s *CSVStore) SaveRaw(table *models.RawTable, indicatorName string) error {
	path := s.RawPath(indicatorName)
	if err := writeCSV(path, table.Columns, table.Rows); err != nil {
		return err
	}
	s.logger.Info("[csv] Raw data saved to %s (%d rows)", path, len(table.Rows))
	return nil
}

// LoadRaw reads {name}.csv back. A missing file is a *FileAccessError.
func (s *CSVStore) LoadRaw(indicatorName string) (*models.RawTable, error) {
	path := s.RawPath(indicatorName)
	f, err := os.Open(path)
	if err != nil {
		return nil, &FileAccessError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err == io.EOF {
		return &models.RawTable{}, nil
	}
	if err != nil {
		return nil, &FileAccessError{Op: "read header", Path: path, Err: err}
	}

	table := &models.RawTable{Columns: header}
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &FileAccessError{Op: "read", Path: path, Err: err}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

// SaveCleaned writes each cleaned indicator to {name}_clean.csv.
func (s *CSVStore) SaveCleaned(cleaned []models.CleanedIndicator) error {
	header := []string{"country", "country_code", "year", "value"}
	for _, ci := range cleaned {
		rows := make([][]string, len(ci.Records))
		for i, r := range ci.Records {
			rows[i] = []string{r.Country, r.CountryCode, FormatYear(r.Year), FormatFloat(r.Value)}
		}
		if err := writeCSV(s.CleanedPath(ci.Name), header, rows); err != nil {
			return err
		}
	}
	s.logger.Info("[csv] All %d cleaned indicators saved to %s", len(cleaned), s.cleanedDir)
	return nil
}

// SaveDataset writes a panel to filename inside the final directory.
func (s *CSVStore) SaveDataset(panel *models.Panel, filename string) error {
	path := s.DatasetPath(filename)
	header, rows := PanelRecords(panel)
	if err := writeCSV(path, header, rows); err != nil {
		return err
	}
	s.logger.Info("[csv] Dataset saved to %s (%d rows, %d columns)", path, len(rows), len(header))
	return nil
}

// PanelRecords renders a panel as a header and string rows in the file
// layout country, country_code, year, <columns...>.
func PanelRecords(panel *models.Panel) ([]string, [][]string) {
	header := append(append([]string{}, PanelKeyColumns...), panel.Columns...)
	rows := make([][]string, len(panel.Rows))
	for i, r := range panel.Rows {
		row := make([]string, 0, len(header))
		row = append(row, r.Country, r.CountryCode, FormatYear(r.Year))
		for _, v := range r.Values {
			row = append(row, FormatFloat(v))
		}
		rows[i] = row
	}
	return header, rows
}

// FormatFloat renders a value the way the datasets store it: NaN as an
// empty cell, infinities as inf and -inf.
func FormatFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ""
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatYear renders a missing year as an empty cell.
func FormatYear(y sql.NullInt64) string {
	if !y.Valid {
		return ""
	}
	return strconv.FormatInt(y.Int64, 10)
}

func writeCSV(path string, header []string, rows [][]string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return &FileAccessError{Op: "create dir", Path: filepath.Dir(path), Err: err}
	}

	f, err := os.Create(path)
	if err != nil {
		return &FileAccessError{Op: "create", Path: path, Err: err}
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if len(header) > 0 {
		if err := w.Write(header); err != nil {
			return &FileAccessError{Op: "write header", Path: path, Err: err}
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return &FileAccessError{Op: "write row", Path: path, Err: err}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return &FileAccessError{Op: "flush", Path: path, Err: err}
	}
	return f.Close()
}
