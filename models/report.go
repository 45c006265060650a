package models

// ColumnStats summarises the finite values of one panel column.
type ColumnStats struct {
	Name  string
	Count int
	Mean  float64
	Min   float64
	Max   float64
}

// CountryValue is a single country's value of some column.
type CountryValue struct {
	Country     string
	CountryCode string
	Value       float64
}

// PanelReport holds the computed analytics over the enriched panel.
type PanelReport struct {
	TotalRows int
	Countries int
	FirstYear int64
	LastYear  int64

	Columns []ColumnStats

	// TopLifeExpectancy lists the highest life expectancies observed in
	// LastYear.
	TopLifeExpectancy []CountryValue

	// Pearson correlation of log GDP per capita against life expectancy,
	// NaN when fewer than two finite pairs exist.
	GDPLifeCorrelation float64
	CorrelationPairs   int
}
