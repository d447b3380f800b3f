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

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/perf"
)

// memSource serves price data from in-memory sorted series so calculator
// behavior can be pinned without a database
type memSource struct {
	series map[string][]*data.PricePoint
}

func (m *memSource) ResolvePrice(ctx context.Context, symbol string, date time.Time) (*data.PricePoint, error) {
	pts := m.series[symbol]
	var match *data.PricePoint
	for _, pt := range pts {
		if pt.Date.After(date) {
			break
		}
		match = pt
	}
	if match == nil {
		return nil, data.ErrPriceUnavailable
	}
	return match, nil
}

func (m *memSource) Distributions(ctx context.Context, symbol string, begin, end time.Time) ([]*data.PricePoint, error) {
	dists := make([]*data.PricePoint, 0)
	for _, pt := range m.series[symbol] {
		if pt.Dividend > 0 && !pt.Date.Before(begin) && !pt.Date.After(end) {
			dists = append(dists, pt)
		}
	}
	return dists, nil
}

func (m *memSource) AdjCloseSeries(ctx context.Context, symbol string, begin, end time.Time) ([]*data.PricePoint, error) {
	series := make([]*data.PricePoint, 0)
	for _, pt := range m.series[symbol] {
		if !pt.Date.Before(begin) && !pt.Date.After(end) {
			series = append(series, pt)
		}
	}
	return series, nil
}

func (m *memSource) LatestDate(ctx context.Context, symbol string) (time.Time, error) {
	pts := m.series[symbol]
	if len(pts) == 0 {
		return time.Time{}, data.ErrNotFound
	}
	return pts[len(pts)-1].Date, nil
}

func day(year int, month time.Month, dd int) time.Time {
	return time.Date(year, month, dd, 16, 0, 0, 0, common.GetTimezone())
}

var _ = Describe("Calculator", func() {
	var (
		source *memSource
		calc   *perf.Calculator
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		source = &memSource{series: map[string][]*data.PricePoint{}}
		calc = perf.NewCalculator(source)
	})

	Context("with a simple doubling scenario", func() {
		BeforeEach(func() {
			source.series["XGRO"] = []*data.PricePoint{
				{Symbol: "XGRO", Date: day(2022, 1, 3), Close: 40, AdjClose: 40},
				{Symbol: "XGRO", Date: day(2023, 1, 3), Close: 50, AdjClose: 50},
				{Symbol: "XGRO", Date: day(2024, 1, 3), Close: 60, AdjClose: 60},
			}
		})

		It("sizes a fractional position and reports point-to-point return", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.SharesOwned).To(BeNumerically("~", 250.0, 1e-9))
			Expect(result.FinalValue).To(BeNumerically("~", 15000.0, 1e-6))
			Expect(result.TotalReturnPct).To(BeNumerically("~", 50.0, 1e-9))
			Expect(result.DividendIncome).To(BeZero())
		})

		It("equates final value to shares times end price when nothing distributes", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 7500,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.FinalValue).To(BeNumerically("~", result.SharesOwned*result.EndPrice, 1e-9))
		})

		It("annualizes over the holding period", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.AnnualizedReturn).ToNot(BeNil())
			// two-year doubling of 1.5x is roughly 22.5% per year
			Expect(*result.AnnualizedReturn).To(BeNumerically("~", 22.5, 0.3))
			Expect(result.YearsHeld).To(BeNumerically("~", 2.0, 0.01))
		})

		It("defaults the end date to the latest recorded trading day", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.EndDate).To(Equal(day(2024, 1, 3)))
			Expect(result.EndPrice).To(Equal(60.0))
		})

		It("resolves a weekend start date to the prior close", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 8),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())
			Expect(result.StartPrice).To(Equal(40.0))
		})
	})

	Context("with dividend distributions", func() {
		BeforeEach(func() {
			source.series["XDIV"] = []*data.PricePoint{
				{Symbol: "XDIV", Date: day(2023, 1, 3), Close: 25, AdjClose: 25},
				{Symbol: "XDIV", Date: day(2023, 6, 15), Close: 26, AdjClose: 26, Dividend: 0.50},
				{Symbol: "XDIV", Date: day(2023, 12, 15), Close: 27, AdjClose: 27, Dividend: 0.50},
				{Symbol: "XDIV", Date: day(2024, 1, 3), Close: 28, AdjClose: 28},
			}
		})

		It("pays dividends on the share count held at each ex date", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XDIV",
				InitialAmount: 10000,
				StartDate:     day(2023, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())
			// 400 shares, two 0.50 distributions held flat
			Expect(result.SharesOwned).To(BeNumerically("~", 400.0, 1e-9))
			Expect(result.DividendIncome).To(BeNumerically("~", 400.0, 1e-9))
			Expect(result.FinalValue).To(BeNumerically("~", 400*28+400, 1e-6))
		})

		It("grows the share count when dividends reinvest", func() {
			result, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:            "XDIV",
				InitialAmount:     10000,
				StartDate:         day(2023, 1, 3),
				EndDate:           day(2024, 1, 3),
				ReinvestDividends: true,
			})
			Expect(err).To(BeNil())
			Expect(result.SharesOwned).To(BeNumerically(">", 400.0))
			Expect(result.Reinvested).To(BeTrue())

			// second distribution pays on the enlarged position
			shares := 10000.0 / 25.0
			first := shares * 0.50
			shares += first / 26.0
			second := shares * 0.50
			shares += second / 27.0
			Expect(result.DividendIncome).To(BeNumerically("~", first+second, 1e-9))
			Expect(result.FinalValue).To(BeNumerically("~", shares*28.0, 1e-6))
		})

		It("never does worse reinvesting in a flat-to-rising market", func() {
			held, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XDIV",
				InitialAmount: 10000,
				StartDate:     day(2023, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(BeNil())

			reinvested, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:            "XDIV",
				InitialAmount:     10000,
				StartDate:         day(2023, 1, 3),
				EndDate:           day(2024, 1, 3),
				ReinvestDividends: true,
			})
			Expect(err).To(BeNil())
			Expect(reinvested.FinalValue).To(BeNumerically(">=", held.FinalValue))
		})
	})

	Context("with invalid scenarios", func() {
		BeforeEach(func() {
			source.series["XGRO"] = []*data.PricePoint{
				{Symbol: "XGRO", Date: day(2022, 1, 3), Close: 40, AdjClose: 40},
			}
		})

		It("rejects a non-positive amount", func() {
			_, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 0,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(err).To(MatchError(perf.ErrInvalidAmount))
		})

		It("rejects a start date equal to the end date", func() {
			_, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2022, 1, 3),
			})
			Expect(err).To(MatchError(perf.ErrInvalidDateRange))
		})

		It("surfaces an unavailable start price", func() {
			_, err := calc.Calculate(ctx, &perf.Scenario{
				Symbol:        "XGRO",
				InitialAmount: 10000,
				StartDate:     day(2015, 1, 5),
				EndDate:       day(2022, 1, 3),
			})
			Expect(err).To(MatchError(data.ErrPriceUnavailable))
		})
	})

	Context("when comparing symbols", func() {
		BeforeEach(func() {
			source.series["XGRO"] = []*data.PricePoint{
				{Symbol: "XGRO", Date: day(2022, 1, 3), Close: 40, AdjClose: 40},
				{Symbol: "XGRO", Date: day(2024, 1, 3), Close: 60, AdjClose: 60},
			}
			source.series["XBAL"] = []*data.PricePoint{
				{Symbol: "XBAL", Date: day(2022, 1, 3), Close: 30, AdjClose: 30},
				{Symbol: "XBAL", Date: day(2024, 1, 3), Close: 33, AdjClose: 33},
			}
		})

		It("returns a result per symbol and records failures inline", func() {
			entries := calc.Compare(ctx, []string{"XGRO", "XBAL", "ZZZZ"}, &perf.Scenario{
				InitialAmount: 10000,
				StartDate:     day(2022, 1, 3),
				EndDate:       day(2024, 1, 3),
			})
			Expect(entries).To(HaveLen(3))
			Expect(entries["XGRO"].Result.TotalReturnPct).To(BeNumerically("~", 50.0, 1e-9))
			Expect(entries["XBAL"].Result.TotalReturnPct).To(BeNumerically("~", 10.0, 1e-9))
			Expect(entries["ZZZZ"].Result).To(BeNil())
			Expect(entries["ZZZZ"].Error).ToNot(BeEmpty())
		})
	})
})
