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

package handler

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/observability/opentelemetry"
	"github.com/etfolio/etf-api/perf"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
)

func newCalculator() *perf.Calculator {
	resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
	return perf.NewCalculator(resolver)
}

func scenarioFromQuery(c *fiber.Ctx, symbol string) (*perf.Scenario, error) {
	amount, err := strconv.ParseFloat(c.Query("amount", "10000"), 64)
	if err != nil {
		log.Warn().Str("Amount", c.Query("amount")).Msg("could not parse amount query parameter")
		return nil, fiber.ErrBadRequest
	}

	startDate, err := parseDateQuery(c, "startDate", time.Time{})
	if err != nil {
		return nil, err
	}
	if startDate.IsZero() {
		log.Warn().Str("Symbol", symbol).Msg("startDate query parameter is required")
		return nil, fiber.ErrBadRequest
	}

	// endDate is optional; the calculator falls back to the latest
	// recorded price date
	endDate, err := parseDateQuery(c, "endDate", time.Time{})
	if err != nil {
		return nil, err
	}

	reinvest, err := strconv.ParseBool(c.Query("reinvest", "false"))
	if err != nil {
		log.Warn().Str("Reinvest", c.Query("reinvest")).Msg("could not parse reinvest query parameter")
		return nil, fiber.ErrBadRequest
	}

	return &perf.Scenario{
		Symbol:            strings.ToUpper(symbol),
		InitialAmount:     amount,
		StartDate:         startDate,
		EndDate:           endDate,
		ReinvestDividends: reinvest,
		Benchmark:         strings.ToUpper(c.Query("benchmark")),
	}, nil
}

// GetPerformance computes investment performance for a single symbol
func GetPerformance(c *fiber.Ctx) error {
	_, span := otel.Tracer(opentelemetry.Name).Start(c.Context(), "handler.GetPerformance")
	defer span.End()
	span.SetAttributes(opentelemetry.SpanAttributesFromFiber(c)...)

	symbol := c.Params("symbol")
	if symbol == "" {
		return fiber.ErrBadRequest
	}

	scenario, err := scenarioFromQuery(c, symbol)
	if err != nil {
		return err
	}

	cacheKey := fmt.Sprintf("performance:%s:%s", scenario.Symbol, c.Request().URI().QueryArgs().String())
	if cached, err := common.CacheGet(cacheKey); err == nil {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return c.Send(cached)
	}

	result, err := newCalculator().Calculate(c.Context(), scenario)
	if err != nil {
		log.Warn().Stack().Err(err).Str("Symbol", scenario.Symbol).Msg("performance calculation failed")
		return statusFromError(err)
	}

	if raw, err := json.Marshal(result); err == nil {
		if err := common.CacheSet(cacheKey, raw); err != nil {
			log.Warn().Err(err).Str("CacheKey", cacheKey).Msg("could not cache performance result")
		}
	}

	return c.JSON(result)
}

type compareRequest struct {
	Symbols           []string `json:"symbols"`
	Amount            float64  `json:"amount"`
	StartDate         string   `json:"startDate"`
	EndDate           string   `json:"endDate"`
	ReinvestDividends bool     `json:"reinvestDividends"`
	Benchmark         string   `json:"benchmark"`
}

// ComparePerformance runs the same scenario across several symbols
func ComparePerformance(c *fiber.Ctx) error {
	var req compareRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		log.Warn().Err(err).Msg("could not parse compare request body")
		return fiber.ErrBadRequest
	}

	if len(req.Symbols) == 0 {
		log.Warn().Msg("compare request has no symbols")
		return fiber.ErrBadRequest
	}

	tz := common.GetTimezone()
	startDate, err := time.ParseInLocation("2006-01-02", req.StartDate, tz)
	if err != nil {
		log.Warn().Str("StartDate", req.StartDate).Msg("could not parse compare start date")
		return fiber.ErrBadRequest
	}
	startDate = time.Date(startDate.Year(), startDate.Month(), startDate.Day(), 16, 0, 0, 0, tz)

	var endDate time.Time
	if req.EndDate != "" {
		endDate, err = time.ParseInLocation("2006-01-02", req.EndDate, tz)
		if err != nil {
			log.Warn().Str("EndDate", req.EndDate).Msg("could not parse compare end date")
			return fiber.ErrBadRequest
		}
		endDate = time.Date(endDate.Year(), endDate.Month(), endDate.Day(), 16, 0, 0, 0, tz)
	}

	amount := req.Amount
	if amount == 0 {
		amount = 10000
	}

	common.ArrToUpper(req.Symbols)
	template := &perf.Scenario{
		InitialAmount:     amount,
		StartDate:         startDate,
		EndDate:           endDate,
		ReinvestDividends: req.ReinvestDividends,
		Benchmark:         strings.ToUpper(req.Benchmark),
	}

	entries := newCalculator().Compare(c.Context(), req.Symbols, template)
	return c.JSON(entries)
}
