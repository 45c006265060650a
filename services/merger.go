package services

import (
	"database/sql"
	"errors"
	"slices"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

// ErrNoIndicators is returned when there is nothing to merge.
var ErrNoIndicators = errors.New("merge: no indicator tables to merge")

type joinKey struct {
	country     string
	countryCode string
	year        sql.NullInt64
}

type panelKey struct {
	countryCode string
	year        sql.NullInt64
}

// Merger joins cleaned indicator tables into one country/year panel.
type Merger struct {
	logger *utils.Logger
}

// NewMerger creates a Merger with the given logger.
func NewMerger(logger *utils.Logger) *Merger {
	return &Merger{logger: logger}
}

// BuildMerged inner-joins the cleaned tables on (country, country_code, year)
// in the given order, naming each value column after its indicator. Only
// keys present in every table survive. Duplicate (country_code, year) keys
// in the result are an error and are never resolved.
func (m *Merger) BuildMerged(cleaned []models.CleanedIndicator) (*models.Panel, error) {
	if len(cleaned) == 0 {
		return nil, ErrNoIndicators
	}

	panel := panelFromClean(cleaned[0])
	m.logger.Debug("[merger] start with %s: %d rows", cleaned[0].Name, len(panel.Rows))

	for _, ci := range cleaned[1:] {
		before := len(panel.Rows)
		panel = innerJoin(panel, ci)
		m.logger.Debug("[merger] joined %s: %d → %d rows", ci.Name, before, len(panel.Rows))
	}

	if dup := countDuplicateKeys(panel); dup > 0 {
		return nil, &DuplicateKeyError{Count: dup}
	}

	sortPanel(panel)
	m.logger.Info("[merger] Merged %d indicators into %d rows", len(cleaned), len(panel.Rows))
	return panel, nil
}

func panelFromClean(ci models.CleanedIndicator) *models.Panel {
	p := &models.Panel{
		Columns: []string{ci.Name},
		Rows:    make([]models.PanelRow, len(ci.Records)),
	}
	for i, r := range ci.Records {
		p.Rows[i] = models.PanelRow{
			Country:     r.Country,
			CountryCode: r.CountryCode,
			Year:        r.Year,
			Values:      []float64{r.Value},
		}
	}
	return p
}

// innerJoin keeps the left table's row order; a left row matching several
// right rows is repeated once per match.
func innerJoin(left *models.Panel, right models.CleanedIndicator) *models.Panel {
	matches := make(map[joinKey][]int, len(right.Records))
	for i, r := range right.Records {
		k := joinKey{r.Country, r.CountryCode, r.Year}
		matches[k] = append(matches[k], i)
	}

	out := &models.Panel{
		Columns: append(append(make([]string, 0, len(left.Columns)+1), left.Columns...), right.Name),
	}
	for _, l := range left.Rows {
		for _, ri := range matches[joinKey{l.Country, l.CountryCode, l.Year}] {
			vals := make([]float64, 0, len(l.Values)+1)
			vals = append(vals, l.Values...)
			vals = append(vals, right.Records[ri].Value)
			out.Rows = append(out.Rows, models.PanelRow{
				Country:     l.Country,
				CountryCode: l.CountryCode,
				Year:        l.Year,
				Values:      vals,
			})
		}
	}
	return out
}

// countDuplicateKeys counts rows whose (country_code, year) already appeared
// earlier in the panel.
func countDuplicateKeys(p *models.Panel) int {
	seen := make(map[panelKey]struct{}, len(p.Rows))
	dup := 0
	for _, r := range p.Rows {
		k := panelKey{r.CountryCode, r.Year}
		if _, ok := seen[k]; ok {
			dup++
			continue
		}
		seen[k] = struct{}{}
	}
	return dup
}

func sortPanel(p *models.Panel) {
	slices.SortStableFunc(p.Rows, func(a, b models.PanelRow) int {
		return models.CompareKey(a.CountryCode, a.Year, b.CountryCode, b.Year)
	})
}
