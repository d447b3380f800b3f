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
	"strings"
	"time"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// GetPrice resolves the adjusted close in effect on the requested date,
// falling back to the nearest earlier trading day within the lookback
// window
func GetPrice(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	subLog := log.With().Str("Symbol", symbol).Str("Endpoint", "GetPrice").Logger()

	date, err := parseDateQuery(c, "date", time.Now())
	if err != nil {
		return err
	}

	resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
	pt, err := resolver.ResolvePrice(c.Context(), symbol, date)
	if err != nil {
		subLog.Warn().Stack().Err(err).Time("Date", date).Msg("could not resolve price")
		return statusFromError(err)
	}

	return c.JSON(pt)
}

type priceRequest struct {
	Date     string  `json:"date"`
	Close    float64 `json:"close"`
	AdjClose float64 `json:"adjClose"`
	Dividend float64 `json:"dividend"`
}

// UpsertPrice records or replaces the price for a symbol and date. A
// replaced row is how dividend back-adjustments reach historical dates.
func UpsertPrice(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	subLog := log.With().Str("Symbol", symbol).Str("Endpoint", "UpsertPrice").Logger()

	var req priceRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		subLog.Warn().Err(err).Msg("could not parse price request body")
		return fiber.ErrBadRequest
	}

	tz := common.GetTimezone()
	date, err := time.ParseInLocation("2006-01-02", req.Date, tz)
	if err != nil {
		subLog.Warn().Str("Date", req.Date).Msg("could not parse price date")
		return fiber.ErrBadRequest
	}
	date = time.Date(date.Year(), date.Month(), date.Day(), 16, 0, 0, 0, tz)

	pt := &data.PricePoint{
		Symbol:   symbol,
		Date:     date,
		Close:    req.Close,
		AdjClose: req.AdjClose,
		Dividend: req.Dividend,
	}

	store := data.NewPriceStore()
	if err := store.UpsertPrice(c.Context(), pt); err != nil {
		subLog.Warn().Stack().Err(err).Time("Date", date).Msg("price upsert failed")
		return statusFromError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(pt)
}
