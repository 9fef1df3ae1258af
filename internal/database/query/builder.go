// Paceboard - CRM Activity Mirror and Productivity Leaderboard
// Copyright 2026 Paceboard Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/paceboard/paceboard

// Package query provides SQL WHERE-clause construction for the
// database package, keeping placeholder handling in one place.
package query

import (
	"fmt"
	"strings"
	"time"
)

// WhereBuilder constructs SQL WHERE clauses with parameterized
// arguments. Clauses are joined with AND.
//
// Example usage:
//
//	wb := query.NewWhereBuilder()
//	wb.AddSubjects([]string{"s1", "s2"})
//	wb.AddPeriodOverlap(start, end)
//	whereClause, args := wb.Build()
//	// subject_id IN (?, ?) AND period_start <= ? AND period_end >= ?
type WhereBuilder struct {
	clauses []string
	args    []interface{}
}

// NewWhereBuilder creates a new WhereBuilder instance.
func NewWhereBuilder() *WhereBuilder {
	return &WhereBuilder{
		clauses: []string{},
		args:    []interface{}{},
	}
}

// AddClause adds a raw condition with its arguments, for conditions
// not covered by the helper methods.
func (wb *WhereBuilder) AddClause(clause string, args ...interface{}) *WhereBuilder {
	wb.clauses = append(wb.clauses, clause)
	wb.args = append(wb.args, args...)
	return wb
}

// AddSubjects adds a subject filter using an IN clause. An empty slice
// is skipped.
func (wb *WhereBuilder) AddSubjects(subjectIDs []string) *WhereBuilder {
	if len(subjectIDs) > 0 {
		placeholders := make([]string, len(subjectIDs))
		for i, id := range subjectIDs {
			placeholders[i] = "?"
			wb.args = append(wb.args, id)
		}
		wb.clauses = append(wb.clauses, fmt.Sprintf("subject_id IN (%s)", strings.Join(placeholders, ", ")))
	}
	return wb
}

// AddPeriodOverlap adds the interval-intersection condition for bucket
// periods: a row matches when [period_start, period_end] intersects
// [start, end]. Timestamps are bound in UTC to match stored values.
func (wb *WhereBuilder) AddPeriodOverlap(start, end time.Time) *WhereBuilder {
	wb.clauses = append(wb.clauses, "period_start <= ?", "period_end >= ?")
	wb.args = append(wb.args, end.UTC(), start.UTC())
	return wb
}

// AddPeriodExact adds an exact period match, used for granular
// single-day bucket lookups.
func (wb *WhereBuilder) AddPeriodExact(start, end time.Time) *WhereBuilder {
	wb.clauses = append(wb.clauses, "period_start = ?", "period_end = ?")
	wb.args = append(wb.args, start.UTC(), end.UTC())
	return wb
}

// AddTimeRange adds an inclusive range condition on the named
// timestamp column.
func (wb *WhereBuilder) AddTimeRange(column string, start, end time.Time) *WhereBuilder {
	wb.clauses = append(wb.clauses, column+" >= ?", column+" <= ?")
	wb.args = append(wb.args, start.UTC(), end.UTC())
	return wb
}

// Build returns the WHERE clause (without the keyword) and its bound
// arguments. Returns ("1=1", []) if no clauses were added.
func (wb *WhereBuilder) Build() (string, []interface{}) {
	if len(wb.clauses) == 0 {
		return "1=1", []interface{}{}
	}
	return strings.Join(wb.clauses, " AND "), wb.args
}

// IsEmpty returns true if no clauses have been added.
func (wb *WhereBuilder) IsEmpty() bool {
	return len(wb.clauses) == 0
}
