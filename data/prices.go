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
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// PriceStore reads and writes end-of-day price records. All lookups are
// date-exact unless the method name says otherwise; weekend and holiday
// fallback lives in the Resolver, not here.
type PriceStore struct {
}

func NewPriceStore() *PriceStore {
	return &PriceStore{}
}

func scanPricePoint(rows pgx.Rows, tz *time.Location) (*PricePoint, error) {
	var pt PricePoint
	if err := rows.Scan(&pt.Symbol, &pt.Date, &pt.Close, &pt.AdjClose, &pt.Dividend); err != nil {
		return nil, err
	}
	pt.Date = time.Date(pt.Date.Year(), pt.Date.Month(), pt.Date.Day(), 16, 0, 0, 0, tz)
	return &pt, nil
}

// GetPrice returns the price record for symbol on exactly the requested
// date. Callers that need holiday or weekend tolerance must use
// GetPriceOnOrBefore.
func (store *PriceStore) GetPrice(ctx context.Context, symbol string, date time.Time) (*PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.GetPrice")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Time("Date", date).Logger()

	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying price")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT ticker, event_date, close, adj_close, dividend FROM eod WHERE ticker=$1 AND event_date=$2", symbol, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query price")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	var pt *PricePoint
	tz := common.GetTimezone()
	for rows.Next() {
		if pt, err = scanPricePoint(rows, tz); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan price row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if pt == nil {
		return nil, ErrNotFound
	}
	return pt, nil
}

// GetPriceOnOrBefore returns the most recent price record at or before the
// requested date
func (store *PriceStore) GetPriceOnOrBefore(ctx context.Context, symbol string, date time.Time) (*PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.GetPriceOnOrBefore")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Time("Date", date).Logger()

	if symbol == "" {
		return nil, ErrEmptySymbol
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying price")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT ticker, event_date, close, adj_close, dividend FROM eod WHERE ticker=$1 AND event_date <= $2 ORDER BY event_date DESC LIMIT 1", symbol, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query price")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	var pt *PricePoint
	tz := common.GetTimezone()
	for rows.Next() {
		if pt, err = scanPricePoint(rows, tz); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan price row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if pt == nil {
		return nil, ErrNotFound
	}
	return pt, nil
}

// GetDistributions returns every price record in [begin, end] carrying a
// positive cash distribution, in chronological order. A symbol that never
// distributed returns an empty slice, not an error.
func (store *PriceStore) GetDistributions(ctx context.Context, symbol string, begin, end time.Time) ([]*PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.GetDistributions")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying distributions")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT ticker, event_date, close, adj_close, dividend FROM eod WHERE ticker=$1 AND event_date BETWEEN $2 AND $3 AND dividend > 0 ORDER BY event_date", symbol, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query distributions")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	distributions := make([]*PricePoint, 0, 16)
	tz := common.GetTimezone()
	for rows.Next() {
		pt, err := scanPricePoint(rows, tz)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan distribution row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		distributions = append(distributions, pt)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return distributions, nil
}

// GetAdjCloseSeries returns the adjusted close series for symbol over
// [begin, end] in chronological order
func (store *PriceStore) GetAdjCloseSeries(ctx context.Context, symbol string, begin, end time.Time) ([]*PricePoint, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.GetAdjCloseSeries")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Time("Begin", begin).Time("End", end).Logger()

	if end.Before(begin) {
		return nil, ErrInvalidTimeRange
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying price series")
		return nil, err
	}

	rows, err := trx.Query(ctx, "SELECT ticker, event_date, close, adj_close, dividend FROM eod WHERE ticker=$1 AND event_date BETWEEN $2 AND $3 ORDER BY event_date", symbol, begin, end)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query price series")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return nil, err
	}

	series := make([]*PricePoint, 0, 252)
	tz := common.GetTimezone()
	for rows.Next() {
		pt, err := scanPricePoint(rows, tz)
		if err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan price row")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return nil, err
		}
		series = append(series, pt)
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	return series, nil
}

// LatestDate returns the last recorded trading date for symbol
func (store *PriceStore) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.LatestDate")
	defer span.End()

	symbol = strings.ToUpper(symbol)
	subLog := log.With().Str("Symbol", symbol).Logger()

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when querying latest date")
		return time.Time{}, err
	}

	rows, err := trx.Query(ctx, "SELECT max(event_date) FROM eod WHERE ticker=$1", symbol)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database query failed")
		subLog.Error().Stack().Err(err).Msg("could not query latest date")
		if err := trx.Rollback(ctx); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return time.Time{}, err
	}

	var latest *time.Time
	for rows.Next() {
		if err := rows.Scan(&latest); err != nil {
			subLog.Error().Stack().Err(err).Msg("could not scan latest date")
			if err := trx.Rollback(ctx); err != nil {
				subLog.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return time.Time{}, err
		}
	}

	if err := trx.Commit(ctx); err != nil {
		subLog.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	if latest == nil {
		return time.Time{}, ErrNotFound
	}

	tz := common.GetTimezone()
	return time.Date(latest.Year(), latest.Month(), latest.Day(), 16, 0, 0, 0, tz), nil
}

// UpsertPrice records a price point, replacing any existing row for the
// same (symbol, date). This is the back-adjustment path: when a later
// split or distribution is discovered the adjusted close for historical
// days is rewritten as an atomic replace.
func (store *PriceStore) UpsertPrice(ctx context.Context, pt *PricePoint) error {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "prices.UpsertPrice")
	defer span.End()

	symbol := strings.ToUpper(pt.Symbol)
	subLog := log.With().Str("Symbol", symbol).Time("Date", pt.Date).Logger()

	if symbol == "" {
		return ErrEmptySymbol
	}

	trx, err := database.Trx(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not get database transaction")
		subLog.Error().Stack().Err(err).Msg("could not get transaction when upserting price")
		return err
	}

	sql := `INSERT INTO eod (ticker, event_date, close, adj_close, dividend) VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (ticker, event_date) DO UPDATE SET close=EXCLUDED.close, adj_close=EXCLUDED.adj_close, dividend=EXCLUDED.dividend`
	if _, err := trx.Exec(ctx, sql, symbol, pt.Date, pt.Close, pt.AdjClose, pt.Dividend); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "database exec failed")
		subLog.Error().Stack().Err(err).Msg("could not upsert price")
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
