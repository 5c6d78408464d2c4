// Package specification holds the query filters shared by the gorm
// repositories and the in-memory store.
package specification

import "gorm.io/gorm"

// Specification narrows or orders a gorm query.
type Specification interface {
	Apply(db *gorm.DB) *gorm.DB
}

// Chain applies specs in order.
func Chain(db *gorm.DB, specs ...Specification) *gorm.DB {
	for _, spec := range specs {
		db = spec.Apply(db)
	}
	return db
}
