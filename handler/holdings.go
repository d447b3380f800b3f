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

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	json "github.com/goccy/go-json"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

// defaultHoldingsLimit caps the holdings returned by the snapshot
// endpoint; broad-market funds carry thousands of constituent lines
const defaultHoldingsLimit = 20

type snapshotResponse struct {
	ETF         string              `json:"etfSymbol"`
	AsOf        time.Time           `json:"asOfDate"`
	Source      string              `json:"source"`
	NumHoldings int                `json:"numHoldings"`
	TotalWeight float64            `json:"totalWeightPct"`
	Holdings    []data.HoldingLine `json:"holdings"`
}

// GetHoldings returns the snapshot in effect on the requested date,
// truncated to the top holdings by weight
func GetHoldings(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	subLog := log.With().Str("ETF", symbol).Str("Endpoint", "GetHoldings").Logger()

	asOf, err := parseDateQuery(c, "date", time.Now())
	if err != nil {
		return err
	}

	limit := defaultHoldingsLimit
	if raw := c.Query("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			subLog.Warn().Str("Limit", raw).Msg("invalid limit query parameter")
			return fiber.ErrBadRequest
		}
	}

	resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
	snap, err := resolver.ResolveSnapshot(c.Context(), symbol, asOf)
	if err != nil {
		subLog.Warn().Stack().Err(err).Time("AsOf", asOf).Msg("could not resolve holdings snapshot")
		return statusFromError(err)
	}

	resp := snapshotResponse{
		ETF:         snap.ETF,
		AsOf:        snap.AsOf,
		Source:      snap.Source,
		NumHoldings: len(snap.Holdings),
		TotalWeight: snap.TotalWeight(),
		Holdings:    snap.Holdings,
	}
	if limit > 0 && limit < len(resp.Holdings) {
		resp.Holdings = resp.Holdings[:limit]
	}

	return c.JSON(resp)
}

// ListHoldingsDates returns every snapshot date recorded for an ETF in
// chronological order
func ListHoldingsDates(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))

	store := data.NewHoldingsStore()
	dates, err := store.ListSnapshotDates(c.Context(), symbol)
	if err != nil {
		log.Warn().Stack().Err(err).Str("ETF", symbol).Msg("could not list snapshot dates")
		return statusFromError(err)
	}

	formatted := make([]string, 0, len(dates))
	for _, d := range dates {
		formatted = append(formatted, d.Format("2006-01-02"))
	}

	return c.JSON(fiber.Map{
		"etfSymbol": symbol,
		"dates":     formatted,
	})
}

type ingestRequest struct {
	AsOf     string             `json:"asOfDate"`
	Source   string             `json:"source"`
	Holdings []data.HoldingLine `json:"holdings"`
}

// IngestHoldings records a new holdings snapshot. Replaying the same
// payload is a no-op; a different source for an existing date is a
// conflict.
func IngestHoldings(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))
	subLog := log.With().Str("ETF", symbol).Str("Endpoint", "IngestHoldings").Logger()

	var req ingestRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		subLog.Warn().Err(err).Msg("could not parse ingest request body")
		return fiber.ErrBadRequest
	}

	tz := common.GetTimezone()
	asOf, err := time.ParseInLocation("2006-01-02", req.AsOf, tz)
	if err != nil {
		subLog.Warn().Str("AsOf", req.AsOf).Msg("could not parse snapshot date")
		return fiber.ErrBadRequest
	}
	asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 16, 0, 0, 0, tz)

	snap := &data.HoldingsSnapshot{
		ETF:      symbol,
		AsOf:     asOf,
		Source:   req.Source,
		Holdings: req.Holdings,
	}

	store := data.NewHoldingsStore()
	if err := store.IngestSnapshot(c.Context(), snap); err != nil {
		subLog.Warn().Stack().Err(err).Time("AsOf", asOf).Msg("snapshot ingest failed")
		return statusFromError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"etfSymbol":   symbol,
		"asOfDate":    asOf.Format("2006-01-02"),
		"source":      req.Source,
		"numHoldings": len(req.Holdings),
		"ingestId":    snap.IngestID(),
	})
}

// GetFundInfo returns descriptive metadata for an ETF
func GetFundInfo(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))

	store := data.NewHoldingsStore()
	info, err := store.GetFundInfo(c.Context(), symbol)
	if err != nil {
		log.Warn().Stack().Err(err).Str("ETF", symbol).Msg("could not load fund info")
		return statusFromError(err)
	}

	return c.JSON(info)
}

// UpsertFundInfo creates or updates descriptive metadata for an ETF
func UpsertFundInfo(c *fiber.Ctx) error {
	symbol := strings.ToUpper(c.Params("symbol"))

	var info data.FundInfo
	if err := json.Unmarshal(c.Body(), &info); err != nil {
		log.Warn().Err(err).Str("ETF", symbol).Msg("could not parse fund info request body")
		return fiber.ErrBadRequest
	}
	info.Symbol = symbol

	store := data.NewHoldingsStore()
	if err := store.UpsertFundInfo(c.Context(), &info); err != nil {
		log.Warn().Stack().Err(err).Str("ETF", symbol).Msg("fund info upsert failed")
		return statusFromError(err)
	}

	return c.JSON(&info)
}
