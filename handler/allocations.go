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
	"strconv"
	"strings"
	"time"

	"github.com/etfolio/etf-api/allocation"
	"github.com/etfolio/etf-api/data"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// GetAllocations computes the sector or geography breakdown for an ETF
// as of the requested date
func GetAllocations(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	subLog := log.With().Str("ETF", symbol).Str("Endpoint", "GetAllocations").Logger()

	var dimension data.Dimension
	switch c.Params("dimension") {
	case "sector":
		dimension = data.DimensionSector
	case "geography":
		dimension = data.DimensionGeography
	default:
		subLog.Warn().Str("Dimension", c.Params("dimension")).Msg("unknown allocation dimension")
		return fiber.ErrBadRequest
	}

	asOf, err := parseDateQuery(c, "date", time.Now())
	if err != nil {
		return err
	}

	save, err := strconv.ParseBool(c.Query("save", "false"))
	if err != nil {
		subLog.Warn().Str("Save", c.Query("save")).Msg("could not parse save query parameter")
		return fiber.ErrBadRequest
	}

	holdings := data.NewHoldingsStore()
	resolver := data.NewResolver(data.NewPriceStore(), holdings)
	agg := allocation.NewAggregator(resolver, data.NewRefClassifier())

	var breakdown *allocation.Breakdown
	if save {
		breakdown, err = agg.AggregateAndSave(c.Context(), holdings, symbol, asOf, dimension)
	} else {
		breakdown, err = agg.Aggregate(c.Context(), symbol, asOf, dimension)
	}
	if err != nil {
		subLog.Warn().Stack().Err(err).Time("AsOf", asOf).Msg("could not compute allocation breakdown")
		return statusFromError(err)
	}

	return c.JSON(breakdown)
}
