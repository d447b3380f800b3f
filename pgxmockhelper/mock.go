// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package pgxmockhelper builds pgxmock row sets and transaction
// expectations matching the store queries so tests stay short.
package pgxmockhelper

import (
	"time"

	"github.com/pashagolub/pgxmock"
)

// EodRows starts an empty row set with the eod table's column layout
func EodRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"ticker", "event_date", "close", "adj_close", "dividend"})
}

// EodRow appends a price record to a row set built with EodRows
func EodRow(rows *pgxmock.Rows, ticker string, date time.Time, close, adjClose, dividend float64) *pgxmock.Rows {
	return rows.AddRow(ticker, date, close, adjClose, dividend)
}

// SnapshotRows starts an empty row set with the snapshot lookup's column
// layout (as_of_date, source)
func SnapshotRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"as_of_date", "source"})
}

// HoldingRows starts an empty row set with the etf_holdings column layout
func HoldingRows() *pgxmock.Rows {
	return pgxmock.NewRows([]string{"constituent_symbol", "constituent_name", "weight_percentage", "shares_held", "market_value"})
}

// MockEodQuery expects one read-only transaction that selects from eod
// and returns the supplied rows
func MockEodQuery(db pgxmock.PgxConnIface, rows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT ticker, event_date, close, adj_close, dividend FROM eod").WillReturnRows(rows)
	db.ExpectCommit()
}

// MockLatestDateQuery expects the max(event_date) lookup
func MockLatestDateQuery(db pgxmock.PgxConnIface, latest *time.Time) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT max").WillReturnRows(
		pgxmock.NewRows([]string{"max"}).AddRow(latest))
	db.ExpectCommit()
}

// MockEodUpsert expects the insert-or-replace write to eod
func MockEodUpsert(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectExec("INSERT INTO eod").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	db.ExpectCommit()
}

// MockSnapshotQuery expects the two-step snapshot read: the snapshot row
// lookup followed by its holding lines
func MockSnapshotQuery(db pgxmock.PgxConnIface, snapRows, holdingRows *pgxmock.Rows) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT as_of_date, source FROM etf_snapshots").WillReturnRows(snapRows)
	db.ExpectQuery("SELECT constituent_symbol, constituent_name, weight_percentage, shares_held, market_value FROM etf_holdings").WillReturnRows(holdingRows)
	db.ExpectCommit()
}

// MockEmptySnapshotQuery expects a snapshot lookup that finds nothing
func MockEmptySnapshotQuery(db pgxmock.PgxConnIface) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT as_of_date, source FROM etf_snapshots").WillReturnRows(SnapshotRows())
	db.ExpectCommit()
}

// MockSnapshotInsert expects a first-time snapshot ingest: an existence
// check that finds nothing, the snapshot insert, then numHoldings line
// inserts
func MockSnapshotInsert(db pgxmock.PgxConnIface, numHoldings int) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT source, ingest_id FROM etf_snapshots").WillReturnRows(
		pgxmock.NewRows([]string{"source", "ingest_id"}))
	db.ExpectExec("INSERT INTO etf_snapshots").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	for ii := 0; ii < numHoldings; ii++ {
		db.ExpectExec("INSERT INTO etf_holdings").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	db.ExpectCommit()
}

// MockSnapshotReplay expects an ingest whose content already exists: the
// existence check returns the same source and ingest id and nothing else
// happens
func MockSnapshotReplay(db pgxmock.PgxConnIface, source, ingestID string) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT source, ingest_id FROM etf_snapshots").WillReturnRows(
		pgxmock.NewRows([]string{"source", "ingest_id"}).AddRow(source, ingestID))
	db.ExpectCommit()
}

// MockSnapshotConflict expects an ingest refused because a different
// source already recorded the date
func MockSnapshotConflict(db pgxmock.PgxConnIface, existingSource string) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT source, ingest_id FROM etf_snapshots").WillReturnRows(
		pgxmock.NewRows([]string{"source", "ingest_id"}).AddRow(existingSource, "stale"))
	db.ExpectRollback()
}

// MockSnapshotRevision expects an ingest that replaces a previously
// recorded composition from the same source
func MockSnapshotRevision(db pgxmock.PgxConnIface, source string, numHoldings int) {
	db.ExpectBegin()
	db.ExpectQuery("SELECT source, ingest_id FROM etf_snapshots").WillReturnRows(
		pgxmock.NewRows([]string{"source", "ingest_id"}).AddRow(source, "superseded"))
	db.ExpectExec("DELETE FROM etf_holdings").WillReturnResult(pgxmock.NewResult("DELETE", int64(numHoldings)))
	db.ExpectExec("UPDATE etf_snapshots").WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	for ii := 0; ii < numHoldings; ii++ {
		db.ExpectExec("INSERT INTO etf_holdings").WillReturnResult(pgxmock.NewResult("INSERT", 1))
	}
	db.ExpectCommit()
}

// MockSnapshotDatesQuery expects the chronological snapshot date listing
func MockSnapshotDatesQuery(db pgxmock.PgxConnIface, dates []time.Time) {
	rows := pgxmock.NewRows([]string{"as_of_date"})
	for _, d := range dates {
		rows.AddRow(d)
	}
	db.ExpectBegin()
	db.ExpectQuery("SELECT as_of_date FROM etf_snapshots").WillReturnRows(rows)
	db.ExpectCommit()
}
