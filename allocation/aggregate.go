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

package allocation

import (
	"context"
	"errors"
	"time"

	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

// SnapshotSource is the slice of the temporal query layer the aggregator
// needs; *data.Resolver satisfies it
type SnapshotSource interface {
	ResolveSnapshot(ctx context.Context, etfSymbol string, date time.Time) (*data.HoldingsSnapshot, error)
}

// Classifier maps a constituent symbol to its sector/region reference
// record; *data.RefClassifier satisfies it
type Classifier interface {
	Classify(symbol string) (*data.Classification, error)
}

// Saver records a computed breakdown; *data.HoldingsStore satisfies it
type Saver interface {
	SaveAllocations(ctx context.Context, etfSymbol string, asOf time.Time, dimension data.Dimension, allocations map[string]float64) error
}

// Breakdown is an allocation result: category percentages plus the
// snapshot date they were derived from
type Breakdown struct {
	ETF        string             `json:"etfSymbol"`
	AsOf       time.Time          `json:"asOfDate"`
	Dimension  data.Dimension     `json:"dimension"`
	Categories map[string]float64 `json:"categories"`
}

// Aggregator reduces a holdings snapshot to sector or geography
// percentage breakdowns. It reads snapshots through the temporal query
// layer and holds no cross-request state.
type Aggregator struct {
	source     SnapshotSource
	classifier Classifier
}

func NewAggregator(source SnapshotSource, classifier Classifier) *Aggregator {
	return &Aggregator{
		source:     source,
		classifier: classifier,
	}
}

// Aggregate resolves the snapshot in effect on asOf and sums holding
// weights per category. Constituents without reference data land in the
// Unclassified bucket so the breakdown total still matches the snapshot's
// total weight.
func (agg *Aggregator) Aggregate(ctx context.Context, etfSymbol string, asOf time.Time, dimension data.Dimension) (*Breakdown, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "allocation.Aggregate")
	defer span.End()

	snap, err := agg.source.ResolveSnapshot(ctx, etfSymbol, asOf)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve snapshot")
		return nil, err
	}

	categories := make(map[string]float64, 16)
	unclassified := 0

	for _, line := range snap.Holdings {
		category := data.Unclassified

		c, err := agg.classifier.Classify(line.Symbol)
		switch {
		case err == nil:
			if dimension == data.DimensionGeography {
				category = c.Region
			} else {
				category = c.Sector
			}
			if category == "" {
				category = data.Unclassified
			}
		case errors.Is(err, data.ErrNotFound):
			unclassified++
		default:
			span.RecordError(err)
			return nil, err
		}

		categories[category] += line.Weight
	}

	if unclassified > 0 {
		log.Debug().Str("ETF", snap.ETF).Time("AsOf", snap.AsOf).Int("NumUnclassified", unclassified).Msg("snapshot has unclassified constituents")
	}

	return &Breakdown{
		ETF:        snap.ETF,
		AsOf:       snap.AsOf,
		Dimension:  dimension,
		Categories: categories,
	}, nil
}

// AggregateAndSave computes a breakdown and persists it. Re-running for
// the same ETF and snapshot date replaces the stored rows.
func (agg *Aggregator) AggregateAndSave(ctx context.Context, saver Saver, etfSymbol string, asOf time.Time, dimension data.Dimension) (*Breakdown, error) {
	breakdown, err := agg.Aggregate(ctx, etfSymbol, asOf, dimension)
	if err != nil {
		return nil, err
	}
	if err := saver.SaveAllocations(ctx, breakdown.ETF, breakdown.AsOf, dimension, breakdown.Categories); err != nil {
		log.Warn().Stack().Err(err).Str("ETF", breakdown.ETF).Msg("could not persist allocation breakdown")
		return nil, err
	}
	return breakdown, nil
}
