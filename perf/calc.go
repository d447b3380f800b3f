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
	"errors"
	"math"
	"time"

	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/observability/opentelemetry"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrInvalidAmount    = errors.New("initial amount must be greater than zero")
	ErrInvalidDateRange = errors.New("start date must be before end date")
)

// daysPerYear uses the astronomical year so multi-year holding periods
// compound the same way regardless of leap days
const daysPerYear = 365.25

// PriceSource is the slice of the temporal query layer the calculator
// needs; *data.Resolver satisfies it
type PriceSource interface {
	ResolvePrice(ctx context.Context, symbol string, date time.Time) (*data.PricePoint, error)
	Distributions(ctx context.Context, symbol string, begin, end time.Time) ([]*data.PricePoint, error)
	AdjCloseSeries(ctx context.Context, symbol string, begin, end time.Time) ([]*data.PricePoint, error)
	LatestDate(ctx context.Context, symbol string) (time.Time, error)
}

// Scenario describes a single hypothetical investment. Scenarios are
// ephemeral: built per request, consumed by Calculate, never persisted.
type Scenario struct {
	Symbol            string    `json:"symbol"`
	InitialAmount     float64   `json:"initialAmount"`
	StartDate         time.Time `json:"startDate"`
	EndDate           time.Time `json:"endDate"`
	ReinvestDividends bool      `json:"reinvestDividends"`

	// Benchmark enables beta in the risk metrics when set
	Benchmark string `json:"benchmark,omitempty"`
}

// Validate checks the scenario parameters that do not require data access.
// An unset EndDate is allowed; Calculate fills it with the latest recorded
// date for the symbol.
func (s *Scenario) Validate() error {
	if s.InitialAmount <= 0 {
		return ErrInvalidAmount
	}
	if !s.EndDate.IsZero() && !s.StartDate.Before(s.EndDate) {
		return ErrInvalidDateRange
	}
	return nil
}

// Result reports the outcome of an investment scenario. AnnualizedReturn
// is nil for holding periods under one day rather than zero or infinity.
type Result struct {
	Symbol            string       `json:"symbol"`
	InitialInvestment float64      `json:"initialInvestment"`
	StartDate         time.Time    `json:"startDate"`
	EndDate           time.Time    `json:"endDate"`
	StartPrice        float64      `json:"startPrice"`
	EndPrice          float64      `json:"endPrice"`
	SharesOwned       float64      `json:"sharesOwned"`
	DividendIncome    float64      `json:"dividendIncome"`
	FinalValue        float64      `json:"finalValue"`
	TotalReturnPct    float64      `json:"totalReturnPct"`
	AnnualizedReturn  *float64     `json:"annualizedReturnPct,omitempty"`
	YearsHeld         float64      `json:"yearsHeld"`
	Reinvested        bool         `json:"reinvested"`
	Risk              *RiskMetrics `json:"risk,omitempty"`
}

// Calculator computes investment performance. It holds no cross-request
// state; every call is independent and read-only.
type Calculator struct {
	source PriceSource
}

func NewCalculator(source PriceSource) *Calculator {
	return &Calculator{
		source: source,
	}
}

// Calculate runs a scenario: resolve the start and end prices, size the
// position, walk distributions in order, and derive total and annualized
// returns. Dividend income uses the share count held on each distribution
// date, not the final count, because dividends pay on then-held shares.
func (calc *Calculator) Calculate(ctx context.Context, scenario *Scenario) (*Result, error) {
	ctx, span := otel.Tracer(opentelemetry.Name).Start(ctx, "perf.Calculate")
	defer span.End()

	subLog := log.With().Str("Symbol", scenario.Symbol).Time("StartDate", scenario.StartDate).Logger()

	if err := scenario.Validate(); err != nil {
		return nil, err
	}

	endDate := scenario.EndDate
	if endDate.IsZero() {
		latest, err := calc.source.LatestDate(ctx, scenario.Symbol)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "could not resolve latest date")
			subLog.Warn().Err(err).Msg("could not resolve latest date for symbol")
			return nil, err
		}
		endDate = latest
		if !scenario.StartDate.Before(endDate) {
			return nil, ErrInvalidDateRange
		}
	}

	startPrice, err := calc.source.ResolvePrice(ctx, scenario.Symbol, scenario.StartDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve start price")
		return nil, err
	}

	endPrice, err := calc.source.ResolvePrice(ctx, scenario.Symbol, endDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not resolve end price")
		return nil, err
	}

	// shares stay fractional; rounding is a display concern
	shares := scenario.InitialAmount / startPrice.AdjClose

	distributions, err := calc.source.Distributions(ctx, scenario.Symbol, scenario.StartDate, endDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "could not load distributions")
		return nil, err
	}

	dividendIncome := 0.0
	var finalValue float64

	if scenario.ReinvestDividends {
		for _, dist := range distributions {
			distPrice, err := calc.source.ResolvePrice(ctx, scenario.Symbol, dist.Date)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "could not resolve distribution-date price")
				subLog.Warn().Err(err).Time("DistributionDate", dist.Date).Msg("no price at distribution date")
				return nil, err
			}
			cash := dist.Dividend * shares
			dividendIncome += cash
			shares += cash / distPrice.AdjClose
		}
		finalValue = shares * endPrice.AdjClose
	} else {
		for _, dist := range distributions {
			dividendIncome += dist.Dividend * shares
		}
		finalValue = shares*endPrice.AdjClose + dividendIncome
	}

	totalReturnPct := (finalValue - scenario.InitialAmount) / scenario.InitialAmount * 100
	yearsHeld := endDate.Sub(scenario.StartDate).Hours() / 24 / daysPerYear

	result := &Result{
		Symbol:            scenario.Symbol,
		InitialInvestment: scenario.InitialAmount,
		StartDate:         scenario.StartDate,
		EndDate:           endDate,
		StartPrice:        startPrice.AdjClose,
		EndPrice:          endPrice.AdjClose,
		SharesOwned:       shares,
		DividendIncome:    dividendIncome,
		FinalValue:        finalValue,
		TotalReturnPct:    totalReturnPct,
		YearsHeld:         yearsHeld,
		Reinvested:        scenario.ReinvestDividends,
	}

	if yearsHeld > 0 {
		annualized := (math.Pow(finalValue/scenario.InitialAmount, 1/yearsHeld) - 1) * 100
		result.AnnualizedReturn = &annualized
	}

	if risk, err := calc.riskMetrics(ctx, scenario.Symbol, scenario.Benchmark, scenario.StartDate, endDate); err == nil {
		result.Risk = risk
	} else {
		// risk metrics are supplemental; a failure must not sink the result
		subLog.Warn().Err(err).Msg("could not compute risk metrics")
	}

	return result, nil
}
