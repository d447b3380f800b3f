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

package allocation_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/etfolio/etf-api/allocation"
	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
)

type memSnapshots struct {
	snap *data.HoldingsSnapshot
	err  error
}

func (m *memSnapshots) ResolveSnapshot(ctx context.Context, etfSymbol string, date time.Time) (*data.HoldingsSnapshot, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.snap, nil
}

type memClassifier struct {
	classes map[string]*data.Classification
}

func (m *memClassifier) Classify(symbol string) (*data.Classification, error) {
	if c, ok := m.classes[symbol]; ok {
		return c, nil
	}
	return nil, data.ErrNotFound
}

type memSaver struct {
	saved map[string]float64
}

func (m *memSaver) SaveAllocations(ctx context.Context, etfSymbol string, asOf time.Time, dimension data.Dimension, allocations map[string]float64) error {
	m.saved = allocations
	return nil
}

var _ = Describe("Aggregator", func() {
	var (
		source     *memSnapshots
		classifier *memClassifier
		agg        *allocation.Aggregator
		ctx        context.Context
		asOf       time.Time
	)

	BeforeEach(func() {
		ctx = context.Background()
		asOf = time.Date(2024, 7, 15, 16, 0, 0, 0, common.GetTimezone())

		source = &memSnapshots{
			snap: &data.HoldingsSnapshot{
				ETF:    "XDIV",
				AsOf:   time.Date(2024, 6, 30, 0, 0, 0, 0, common.GetTimezone()),
				Source: "issuer-website",
				Holdings: []data.HoldingLine{
					{Symbol: "RY", Weight: 20.0},
					{Symbol: "TD", Weight: 18.0},
					{Symbol: "SU", Weight: 12.0},
					{Symbol: "AAPL", Weight: 8.0},
					{Symbol: "MYSTERY", Weight: 2.0},
				},
			},
		}
		classifier = &memClassifier{classes: map[string]*data.Classification{
			"RY":   {Symbol: "RY", Sector: "Financial Services", Region: "Canada"},
			"TD":   {Symbol: "TD", Sector: "Financial Services", Region: "Canada"},
			"SU":   {Symbol: "SU", Sector: "Energy", Region: "Canada"},
			"AAPL": {Symbol: "AAPL", Sector: "Technology", Region: "United States"},
		}}
		agg = allocation.NewAggregator(source, classifier)
	})

	It("sums holding weights per sector", func() {
		breakdown, err := agg.Aggregate(ctx, "XDIV", asOf, data.DimensionSector)
		Expect(err).To(BeNil())
		Expect(breakdown.Categories["Financial Services"]).To(BeNumerically("~", 38.0, 1e-9))
		Expect(breakdown.Categories["Energy"]).To(BeNumerically("~", 12.0, 1e-9))
		Expect(breakdown.Categories["Technology"]).To(BeNumerically("~", 8.0, 1e-9))
	})

	It("sums holding weights per region", func() {
		breakdown, err := agg.Aggregate(ctx, "XDIV", asOf, data.DimensionGeography)
		Expect(err).To(BeNil())
		Expect(breakdown.Categories["Canada"]).To(BeNumerically("~", 50.0, 1e-9))
		Expect(breakdown.Categories["United States"]).To(BeNumerically("~", 8.0, 1e-9))
	})

	It("buckets unclassified constituents so total weight is preserved", func() {
		breakdown, err := agg.Aggregate(ctx, "XDIV", asOf, data.DimensionSector)
		Expect(err).To(BeNil())
		Expect(breakdown.Categories[data.Unclassified]).To(BeNumerically("~", 2.0, 1e-9))

		total := 0.0
		for _, pct := range breakdown.Categories {
			total += pct
		}
		Expect(total).To(BeNumerically("~", source.snap.TotalWeight(), 1e-9))
	})

	It("carries the snapshot's as-of date, not the requested date", func() {
		breakdown, err := agg.Aggregate(ctx, "XDIV", asOf, data.DimensionSector)
		Expect(err).To(BeNil())
		Expect(breakdown.AsOf).To(Equal(source.snap.AsOf))
	})

	It("propagates missing holdings data", func() {
		source.err = data.ErrNoHoldingsData

		_, err := agg.Aggregate(ctx, "XDIV", asOf, data.DimensionSector)
		Expect(err).To(MatchError(data.ErrNoHoldingsData))
	})

	It("persists the computed breakdown through a saver", func() {
		saver := &memSaver{}
		breakdown, err := agg.AggregateAndSave(ctx, saver, "XDIV", asOf, data.DimensionGeography)
		Expect(err).To(BeNil())
		Expect(saver.saved).To(Equal(breakdown.Categories))
	})
})
