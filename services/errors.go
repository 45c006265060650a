package services

import "fmt"

// SchemaError means a column the stage depends on is absent.
type SchemaError struct {
	Column string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema: required column %q not found", e.Column)
}

// DuplicateKeyError means the merged panel holds more than one row for some
// (country_code, year). Count is the number of rows repeating an earlier key.
type DuplicateKeyError struct {
	Count int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("merge: found %d duplicate (country_code, year) rows", e.Count)
}
