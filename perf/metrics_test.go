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

package perf_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/perf"
)

var _ = Describe("RiskMetrics", func() {
	var (
		source *memSource
		calc   *perf.Calculator
		ctx    context.Context
	)

	series := func(symbol string, start time.Time, closes ...float64) []*data.PricePoint {
		pts := make([]*data.PricePoint, 0, len(closes))
		for ii, close := range closes {
			pts = append(pts, &data.PricePoint{
				Symbol:   symbol,
				Date:     start.AddDate(0, 0, ii),
				Close:    close,
				AdjClose: close,
			})
		}
		return pts
	}

	BeforeEach(func() {
		ctx = context.Background()
		source = &memSource{series: map[string][]*data.PricePoint{}}
		calc = perf.NewCalculator(source)
	})

	It("reports drawdown from the intra-period peak", func() {
		start := day(2024, 1, 2)
		source.series["XEQT"] = series("XEQT", start, 100, 110, 120, 90, 96, 125)

		result, err := calc.Calculate(ctx, &perf.Scenario{
			Symbol:        "XEQT",
			InitialAmount: 10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 5),
		})
		Expect(err).To(BeNil())
		Expect(result.Risk).ToNot(BeNil())
		// 120 peak down to 90 trough
		Expect(result.Risk.MaxDrawdownPct).To(BeNumerically("~", 25.0, 1e-9))
		Expect(result.Risk.AnnualizedVolatility).To(BeNumerically(">", 0))
	})

	It("reports zero drawdown for a monotonically rising series", func() {
		start := day(2024, 1, 2)
		source.series["XEQT"] = series("XEQT", start, 100, 101, 102, 103)

		result, err := calc.Calculate(ctx, &perf.Scenario{
			Symbol:        "XEQT",
			InitialAmount: 10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 3),
		})
		Expect(err).To(BeNil())
		Expect(result.Risk).ToNot(BeNil())
		Expect(result.Risk.MaxDrawdownPct).To(BeZero())
	})

	It("computes a beta of one against itself", func() {
		start := day(2024, 1, 2)
		source.series["XEQT"] = series("XEQT", start, 100, 104, 99, 107, 103, 111)
		source.series["XIC"] = series("XIC", start, 100, 104, 99, 107, 103, 111)

		result, err := calc.Calculate(ctx, &perf.Scenario{
			Symbol:        "XEQT",
			InitialAmount: 10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 5),
			Benchmark:     "XIC",
		})
		Expect(err).To(BeNil())
		Expect(result.Risk).ToNot(BeNil())
		Expect(result.Risk.Beta).ToNot(BeNil())
		Expect(*result.Risk.Beta).To(BeNumerically("~", 1.0, 1e-9))
	})

	It("omits beta when no benchmark is named", func() {
		start := day(2024, 1, 2)
		source.series["XEQT"] = series("XEQT", start, 100, 104, 99, 107)

		result, err := calc.Calculate(ctx, &perf.Scenario{
			Symbol:        "XEQT",
			InitialAmount: 10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 0, 3),
		})
		Expect(err).To(BeNil())
		Expect(result.Risk).ToNot(BeNil())
		Expect(result.Risk.Beta).To(BeNil())
	})

	It("omits risk metrics entirely when the series is too short", func() {
		start := day(2024, 1, 2)
		source.series["XEQT"] = series("XEQT", start, 100)
		source.series["XEQT"] = append(source.series["XEQT"], &data.PricePoint{
			Symbol: "XEQT", Date: start.AddDate(0, 1, 0), Close: 104, AdjClose: 104,
		})

		result, err := calc.Calculate(ctx, &perf.Scenario{
			Symbol:        "XEQT",
			InitialAmount: 10000,
			StartDate:     start,
			EndDate:       start.AddDate(0, 1, 0),
		})
		Expect(err).To(BeNil())
		Expect(result.Risk).To(BeNil())
	})
})
