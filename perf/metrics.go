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

package perf

import (
	"context"
	"math"
	"time"

	"github.com/etfolio/etf-api/data"
	"gonum.org/v1/gonum/stat"
)

// tradingDaysPerYear annualizes daily return statistics
const tradingDaysPerYear = 252

// RiskMetrics supplements a performance result with volatility and
// drawdown computed over the scenario's daily adjusted-close series.
// Beta is present only when the scenario names a benchmark.
type RiskMetrics struct {
	AnnualizedVolatility float64  `json:"annualizedVolatility"`
	MaxDrawdownPct       float64  `json:"maxDrawdownPct"`
	Beta                 *float64 `json:"beta,omitempty"`
}

func dailyReturns(series []*data.PricePoint) []float64 {
	if len(series) < 2 {
		return nil
	}
	rets := make([]float64, 0, len(series)-1)
	for ii := 1; ii < len(series); ii++ {
		prev := series[ii-1].AdjClose
		if prev == 0 {
			continue
		}
		rets = append(rets, series[ii].AdjClose/prev-1)
	}
	return rets
}

// maxDrawdown returns the largest peak-to-trough loss in the series as a
// positive percentage
func maxDrawdown(series []*data.PricePoint) float64 {
	peak := math.Inf(-1)
	drawdown := 0.0
	for _, pt := range series {
		if pt.AdjClose > peak {
			peak = pt.AdjClose
		}
		if peak > 0 {
			dd := (peak - pt.AdjClose) / peak * 100
			if dd > drawdown {
				drawdown = dd
			}
		}
	}
	return drawdown
}

// alignedReturns pairs the daily returns of two series by trading date so
// covariance is computed over matching observations
func alignedReturns(a, b []*data.PricePoint) ([]float64, []float64) {
	bByDate := make(map[time.Time]*data.PricePoint, len(b))
	for _, pt := range b {
		bByDate[pt.Date] = pt
	}

	var retA, retB []float64
	var lastA, lastB *data.PricePoint
	for _, pt := range a {
		match, ok := bByDate[pt.Date]
		if !ok {
			continue
		}
		if lastA != nil && lastA.AdjClose != 0 && lastB.AdjClose != 0 {
			retA = append(retA, pt.AdjClose/lastA.AdjClose-1)
			retB = append(retB, match.AdjClose/lastB.AdjClose-1)
		}
		lastA = pt
		lastB = match
	}
	return retA, retB
}

func (calc *Calculator) riskMetrics(ctx context.Context, symbol, benchmark string, begin, end time.Time) (*RiskMetrics, error) {
	series, err := calc.source.AdjCloseSeries(ctx, symbol, begin, end)
	if err != nil {
		return nil, err
	}

	rets := dailyReturns(series)
	if len(rets) < 2 {
		// too short to say anything; omit rather than report zeros
		return nil, nil
	}

	metrics := &RiskMetrics{
		AnnualizedVolatility: stat.StdDev(rets, nil) * math.Sqrt(tradingDaysPerYear) * 100,
		MaxDrawdownPct:       maxDrawdown(series),
	}

	if benchmark != "" {
		benchSeries, err := calc.source.AdjCloseSeries(ctx, benchmark, begin, end)
		if err != nil {
			return nil, err
		}
		retA, retB := alignedReturns(series, benchSeries)
		if len(retA) >= 2 {
			sigma := stat.Covariance(retA, retB, nil)
			variance := stat.Variance(retB, nil)
			if variance > 0 {
				beta := sigma / variance
				metrics.Beta = &beta
			}
		}
	}

	return metrics, nil
}
