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

package data

import (
	"context"
	"strings"
	"time"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/database"
	"github.com/etfolio/etf-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// HoldingsStore reads and writes versioned ETF composition snapshots.
// Snapshot rows live in etf_snapshots; the constituent lines live in
// etf_holdings keyed by (etf_symbol, constituent_symbol, as_of_date).
type HoldingsStore struct {
}

func NewHoldingsStore() *HoldingsStore {
	return &HoldingsStore{}
}

func validateSnapshot(snap *HoldingsSnapshot) error {
	total := 0.0
	for _, line := range snap.Holdings {
		if line.Weight < 0 {
			return ErrInvalidSnapshot
		}
		total += line.Weight
	}
	if total > MaxSnapshotWeight {
		return ErrInvalidSnapshot
	}
	return nil
}

// IngestSnapshot records a holdings snapshot. Re-sending an identical
// snapshot is a no-op; the same source re-reporting a date replaces that
// date's lines in one transaction; a different source reporting an
// already-recorded date returns ErrConflictingSnapshot so the caller can
// audit which feed produced the stored record.
func (store *HoldingsStore) IngestSnapshot(ctx context.Context, snap *HoldingsSnapshot) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.IngestSnapshot")
	defer span.End()

	etf := strings.ToUpper(snap.ETF)
	subLog := log.With().Str("ETF", etf).Time("AsOf", snap.AsOf).Str("Source", snap.Source).Logger()

	if etf == "" {
		return ErrEmptySymbol
	}
	if err := validateSnapshot(snap); err != nil {
		subLog.Warn().Float64("TotalWeight", snap.TotalWeight()).Msg("rejecting snapshot with invalid weights")
		return err
	}

	ingestID := snap.IngestID()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when ingesting snapshot")
		return err
	}

	var existingSource string
	var existingIngestID string
	found := false

	rows, err := trx.Query(ctx, "SELECT source, ingest_id FROM etf_snapshots WHERE etf_symbol=$1 AND as_of_date=$2", etf, snap.AsOf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query existing snapshot")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}
	for rows.Next() {
		if err := rows.Scan(&existingSource, &existingIngestID); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan snapshot row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
		found = true
	}

	if found {
		if existingSource != snap.Source {
			subLog.Warn().Str("ExistingSource", existingSource).Msg("snapshot conflict; refusing to overwrite")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return ErrConflictingSnapshot
		}
		if existingIngestID == ingestID {
			// identical replay
			if err := trx.Commit(ctx); err != nil {
				subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
			}
			return nil
		}
		// same source, revised content: replace the date wholesale
		if _, err := trx.Exec(ctx, "DELETE FROM etf_holdings WHERE etf_symbol=$1 AND as_of_date=$2", etf, snap.AsOf); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Msg("could not delete stale holdings")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
		if _, err := trx.Exec(ctx, "UPDATE etf_snapshots SET ingest_id=$1 WHERE etf_symbol=$2 AND as_of_date=$3", ingestID, etf, snap.AsOf); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Msg("could not update snapshot row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	} else {
		if _, err := trx.Exec(ctx, "INSERT INTO etf_snapshots (etf_symbol, as_of_date, source, ingest_id) VALUES ($1, $2, $3, $4)", etf, snap.AsOf, snap.Source, ingestID); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Msg("could not insert snapshot row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	for _, line := range snap.Holdings {
		if _, err := trx.Exec(ctx,
			"INSERT INTO etf_holdings (etf_symbol, as_of_date, constituent_symbol, constituent_name, weight_percentage, shares_held, market_value) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			etf, snap.AsOf, strings.ToUpper(line.Symbol), line.Name, line.Weight, line.SharesHeld, line.MarketValue); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Str("Constituent", line.Symbol).Msg("could not insert holding line")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	subLog.Info().Int("NumHoldings", len(snap.Holdings)).Msg("ingested holdings snapshot")
	return nil
}

// GetSnapshot returns the most recent snapshot at or before asOf.
// Holdings are reported periodically, so an arbitrary date resolves to the
// last known composition; ErrNotFound means no snapshot exists at all on
// or before the date.
func (store *HoldingsStore) GetSnapshot(ctx context.Context, etfSymbol string, asOf time.Time) (*HoldingsSnapshot, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.GetSnapshot")
	defer span.End()

	etf := strings.ToUpper(etfSymbol)
	subLog := log.With().Str("ETF", etf).Time("AsOf", asOf).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying snapshot")
		return nil, err
	}

	var snapDate time.Time
	var source string
	found := false

	rows, err := trx.Query(ctx, "SELECT as_of_date, source FROM etf_snapshots WHERE etf_symbol=$1 AND as_of_date <= $2 ORDER BY as_of_date DESC LIMIT 1", etf, asOf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query snapshot date")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}
	for rows.Next() {
		if err := rows.Scan(&snapDate, &source); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan snapshot row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		found = true
	}

	if !found {
		if err := trx.Commit(ctx); err != nil {
			subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
		}
		return nil, ErrNotFound
	}

	rows, err = trx.Query(ctx,
		"SELECT constituent_symbol, constituent_name, weight_percentage, shares_held, market_value FROM etf_holdings WHERE etf_symbol=$1 AND as_of_date=$2 ORDER BY weight_percentage DESC, constituent_symbol",
		etf, snapDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query holding lines")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	tz := common.GetTimezone()
	snap := &HoldingsSnapshot{
		ETF:      etf,
		AsOf:     time.Date(snapDate.Year(), snapDate.Month(), snapDate.Day(), 0, 0, 0, 0, tz),
		Source:   source,
		Holdings: make([]HoldingLine, 0, 64),
	}

	for rows.Next() {
		var line HoldingLine
		if err := rows.Scan(&line.Symbol, &line.Name, &line.Weight, &line.SharesHeld, &line.MarketValue); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan holding line")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		snap.Holdings = append(snap.Holdings, line)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return snap, nil
}

// ListSnapshotDates returns every recorded snapshot date for an ETF in
// chronological order
func (store *HoldingsStore) ListSnapshotDates(ctx context.Context, etfSymbol string) ([]time.Time, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.ListSnapshotDates")
	defer span.End()

	etf := strings.ToUpper(etfSymbol)
	subLog := log.With().Str("ETF", etf).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when listing snapshot dates")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT as_of_date FROM etf_snapshots WHERE etf_symbol=$1 ORDER BY as_of_date", etf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query snapshot dates")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	tz := common.GetTimezone()
	dates := make([]time.Time, 0, 16)
	for rows.Next() {
		var dt time.Time
		if err := rows.Scan(&dt); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan snapshot date")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		dates = append(dates, time.Date(dt.Year(), dt.Month(), dt.Day(), 0, 0, 0, 0, tz))
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return dates, nil
}

// GetFundInfo returns descriptive metadata for an ETF
func (store *HoldingsStore) GetFundInfo(ctx context.Context, symbol string) (*FundInfo, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.GetFundInfo")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying fund info")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT symbol, name, fund_family, category, currency, inception_date, expense_ratio, aum FROM etf_info WHERE symbol=$1", symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query fund info")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	var info *FundInfo
	for rows.Next() {
		info = &FundInfo{}
		if err := rows.Scan(&info.Symbol, &info.Name, &info.FundFamily, &info.Category, &info.Currency, &info.InceptionDate, &info.ExpenseRatio, &info.AUM); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan fund info")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if info == nil {
		return nil, ErrNotFound
	}
	return info, nil
}

// UpsertFundInfo creates or refreshes ETF metadata
func (store *HoldingsStore) UpsertFundInfo(ctx context.Context, info *FundInfo) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.UpsertFundInfo")
	defer span.End()

	symbol := strings.ToUpper(info.Symbol)
	subLog := log.With().Str("Symbol", symbol).Logger()

	if symbol == "" {
		return ErrEmptySymbol
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when upserting fund info")
		return err
	}

	sql := `INSERT INTO etf_info (symbol, name, fund_family, category, currency, inception_date, expense_ratio, aum) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (symbol) DO UPDATE SET name=EXCLUDED.name, fund_family=EXCLUDED.fund_family, category=EXCLUDED.category, currency=EXCLUDED.currency, inception_date=EXCLUDED.inception_date, expense_ratio=EXCLUDED.expense_ratio, aum=EXCLUDED.aum`
	if _, err := trx.Exec(ctx, sql, symbol, info.Name, info.FundFamily, info.Category, info.Currency, info.InceptionDate, info.ExpenseRatio, info.AUM); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database exec failed")
		subLog.Error().Stack().Err(err).Msg("could not upsert fund info")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	return nil
}

func allocationTable(dimension Dimension) string {
	if dimension == DimensionGeography {
		return "etf_geographic_allocation"
	}
	return "etf_sector_allocation"
}

// SaveAllocations persists a derived allocation breakdown for an ETF as of
// a date. The write replaces any previous rows for the same (etf, date) so
// recomputing is idempotent.
func (store *HoldingsStore) SaveAllocations(ctx context.Context, etfSymbol string, asOf time.Time, dimension Dimension, allocations map[string]float64) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "holdings.SaveAllocations")
	defer span.End()

	etf := strings.ToUpper(etfSymbol)
	table := allocationTable(dimension)
	subLog := log.With().Str("ETF", etf).Time("AsOf", asOf).Str("Dimension", string(dimension)).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when saving allocations")
		return err
	}

	if _, err := trx.Exec(ctx, "DELETE FROM "+table+" WHERE etf_symbol=$1 AND as_of_date=$2", etf, asOf); err != nil {
		span.RecordError(err)
		subLog.Error().Stack().Err(err).Msg("could not delete stale allocations")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	for category, pct := range allocations {
		if _, err := trx.Exec(ctx, "INSERT INTO "+table+" (etf_symbol, as_of_date, category, percentage) VALUES ($1, $2, $3, $4)", etf, asOf, category, pct); err != nil {
			span.RecordError(err)
			subLog.Error().Stack().Err(err).Str("Category", category).Msg("could not insert allocation")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Error().Stack().Err(err).Msg("could not commit transaction")
		return err
	}

	return nil
}
