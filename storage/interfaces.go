package storage

import "worldbank-panel/models"

// RawLoader reads back an indicator's raw table.
type RawLoader interface {
	LoadRaw(indicatorName string) (*models.RawTable, error)
}

// RawStore persists unprocessed API records, one file per indicator.
type RawStore interface {
	RawLoader
	SaveRaw(table *models.RawTable, indicatorName string) error
}

// PanelSink is the interface any additional panel backend must satisfy.
type PanelSink interface {
	WritePanel(panel *models.Panel) error
	Close() error
}
