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
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// DefaultPriceLookbackDays bounds how far back ResolvePrice walks to skip
// weekends and market holidays
const DefaultPriceLookbackDays = 10

// Resolver encodes the as-of semantics shared by prices, dividends, and
// holdings so that no consumer hand-rolls its own date-fallback logic.
// Price resolution walks backward over a bounded calendar window;
// snapshot resolution is unbounded because an ETF's first snapshot may be
// arbitrarily far in the past.
type Resolver struct {
	prices       *PriceStore
	holdings     *HoldingsStore
	lookbackDays int
}

func NewResolver(prices *PriceStore, holdings *HoldingsStore) *Resolver {
	lookback := viper.GetInt("data.price_lookback_days")
	if lookback <= 0 {
		lookback = DefaultPriceLookbackDays
	}
	return &Resolver{
		prices:       prices,
		holdings:     holdings,
		lookbackDays: lookback,
	}
}

// ResolvePrice returns the price for symbol on date, or the most recent
// price within the lookback window when date falls on a non-trading day.
// ErrPriceUnavailable means the window was exhausted; this includes dates
// before the symbol's first recorded trading day.
func (r *Resolver) ResolvePrice(ctx context.Context, symbol string, date time.Time) (*PricePoint, error) {
	pt, err := r.prices.GetPrice(ctx, symbol, date)
	if err == nil {
		return pt, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	pt, err = r.prices.GetPriceOnOrBefore(ctx, symbol, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrPriceUnavailable
		}
		return nil, err
	}

	window := time.Duration(r.lookbackDays) * 24 * time.Hour
	if date.Sub(pt.Date) > window {
		log.Debug().Str("Symbol", symbol).Time("Requested", date).Time("Nearest", pt.Date).Msg("nearest price outside lookback window")
		return nil, ErrPriceUnavailable
	}

	return pt, nil
}

// ResolveSnapshot returns the ETF composition in effect on date,
// following the most-recent-at-or-before policy. ErrNoHoldingsData means
// the date precedes every recorded snapshot for the ETF.
func (r *Resolver) ResolveSnapshot(ctx context.Context, etfSymbol string, date time.Time) (*HoldingsSnapshot, error) {
	snap, err := r.holdings.GetSnapshot(ctx, etfSymbol, date)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNoHoldingsData
		}
		return nil, err
	}
	return snap, nil
}

// Distributions passes through to the price store; exposed on the
// resolver so calculator code has a single data dependency
func (r *Resolver) Distributions(ctx context.Context, symbol string, begin, end time.Time) ([]*PricePoint, error) {
	return r.prices.GetDistributions(ctx, symbol, begin, end)
}

// AdjCloseSeries passes through to the price store
func (r *Resolver) AdjCloseSeries(ctx context.Context, symbol string, begin, end time.Time) ([]*PricePoint, error) {
	return r.prices.GetAdjCloseSeries(ctx, symbol, begin, end)
}

// LatestDate passes through to the price store
func (r *Resolver) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	return r.prices.LatestDate(ctx, symbol)
}
