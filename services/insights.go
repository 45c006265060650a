package services

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"worldbank-panel/models"
	"worldbank-panel/utils"
)

const topN = 5

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

func (s *InsightService) Generate(panel *models.Panel) *models.PanelReport {
	report := &models.PanelReport{GDPLifeCorrelation: math.NaN()}
	if panel == nil || len(panel.Rows) == 0 {
		return report
	}

	report.TotalRows = len(panel.Rows)

	countries := make(map[string]struct{})
	for _, r := range panel.Rows {
		countries[r.CountryCode] = struct{}{}
		if !r.Year.Valid {
			continue
		}
		if report.FirstYear == 0 || r.Year.Int64 < report.FirstYear {
			report.FirstYear = r.Year.Int64
		}
		if r.Year.Int64 > report.LastYear {
			report.LastYear = r.Year.Int64
		}
	}
	report.Countries = len(countries)

	for i, name := range panel.Columns {
		report.Columns = append(report.Columns, columnStats(name, panel, i))
	}

	// Top life expectancy in the latest year
	if li := panel.ColumnIndex(ColLifeExpectancy); li >= 0 {
		var latest []models.CountryValue
		for _, r := range panel.Rows {
			v := r.Values[li]
			if r.Year.Valid && r.Year.Int64 == report.LastYear && isFinite(v) {
				latest = append(latest, models.CountryValue{Country: r.Country, CountryCode: r.CountryCode, Value: v})
			}
		}
		sort.SliceStable(latest, func(i, j int) bool {
			return latest[i].Value > latest[j].Value
		})
		if len(latest) > topN {
			latest = latest[:topN]
		}
		report.TopLifeExpectancy = latest
	}

	gi, li := panel.ColumnIndex(ColLogGDPPerCapita), panel.ColumnIndex(ColLifeExpectancy)
	if gi >= 0 && li >= 0 {
		var xs, ys []float64
		for _, r := range panel.Rows {
			x, y := r.Values[gi], r.Values[li]
			if isFinite(x) && isFinite(y) {
				xs = append(xs, x)
				ys = append(ys, y)
			}
		}
		report.CorrelationPairs = len(xs)
		report.GDPLifeCorrelation = pearson(xs, ys)
	}

	s.logger.Debug("[insights] %d rows, %d countries, %d columns", report.TotalRows, report.Countries, len(report.Columns))
	return report
}

func (s *InsightService) Print(r *models.PanelReport) {
	sep := strings.Repeat("═", 62)
	thin := strings.Repeat("─", 62)

	fmt.Printf("\n\033[1;35m%s\033[0m\n", sep)
	fmt.Printf("\033[1;35m  📊 WORLD BANK PANEL INSIGHTS\033[0m\n")
	fmt.Printf("\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Printf("\033[1;33m  Overview\033[0m\n")
	fmt.Printf("  %s\n", thin)
	fmt.Printf("  Panel rows  : \033[1m%d\033[0m\n", r.TotalRows)
	fmt.Printf("  Countries   : \033[1m%d\033[0m\n", r.Countries)
	if r.LastYear > 0 {
		fmt.Printf("  Years       : \033[1m%d–%d\033[0m\n", r.FirstYear, r.LastYear)
	}
	fmt.Println()

	// Column stats
	fmt.Printf("\033[1;33m  Column Statistics (finite values)\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if len(r.Columns) == 0 {
		fmt.Printf("  No columns\n")
	}
	for _, c := range r.Columns {
		if c.Count == 0 {
			fmt.Printf("  %-32s no finite values\n", truncate(c.Name, 32))
			continue
		}
		fmt.Printf("  %-32s n=%-5d mean=%-10.3f min=%-10.3f max=%.3f\n",
			truncate(c.Name, 32), c.Count, c.Mean, c.Min, c.Max)
	}
	fmt.Println()

	// Top life expectancy
	fmt.Printf("\033[1;33m  Top %d Life Expectancy (%d)\033[0m\n", topN, r.LastYear)
	fmt.Printf("  %s\n", thin)
	if len(r.TopLifeExpectancy) == 0 {
		fmt.Printf("  No life expectancy data found\n")
	} else {
		for i, cv := range r.TopLifeExpectancy {
			fmt.Printf("  \033[1m%d.\033[0m %-40s \033[1;32m%.2f yrs\033[0m\n",
				i+1, truncate(cv.Country, 38), cv.Value)
		}
	}
	fmt.Println()

	// Correlation
	fmt.Printf("\033[1;33m  log GDP per capita vs life expectancy\033[0m\n")
	fmt.Printf("  %s\n", thin)
	if math.IsNaN(r.GDPLifeCorrelation) {
		fmt.Printf("  Not enough data\n")
	} else {
		fmt.Printf("  Pearson r : \033[1;32m%.3f\033[0m over %d observations\n",
			r.GDPLifeCorrelation, r.CorrelationPairs)
	}

	fmt.Printf("\n\033[1;35m%s\033[0m\n\n", sep)
}

func columnStats(name string, panel *models.Panel, idx int) models.ColumnStats {
	st := models.ColumnStats{Name: name}
	var total float64
	for _, r := range panel.Rows {
		v := r.Values[idx]
		if !isFinite(v) {
			continue
		}
		if st.Count == 0 || v < st.Min {
			st.Min = v
		}
		if st.Count == 0 || v > st.Max {
			st.Max = v
		}
		total += v
		st.Count++
	}
	if st.Count > 0 {
		st.Mean = round2(total / float64(st.Count))
	}
	return st
}

// pearson returns NaN when fewer than two pairs exist or either side is
// constant.
func pearson(xs, ys []float64) float64 {
	n := float64(len(xs))
	if len(xs) < 2 {
		return math.NaN()
	}
	var sx, sy float64
	for i := range xs {
		sx += xs[i]
		sy += ys[i]
	}
	mx, my := sx/n, sy/n

	var cov, vx, vy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		cov += dx * dy
		vx += dx * dx
		vy += dy * dy
	}
	if vx == 0 || vy == 0 {
		return math.NaN()
	}
	return cov / math.Sqrt(vx*vy)
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
