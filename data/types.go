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

package data

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zeebo/blake3"
)

// MaxSnapshotWeight is the upper bound for the summed holding weights of a
// snapshot. Slack above 100 allows for cash positions and rounding in
// fund-company reports.
const MaxSnapshotWeight = 100.5

// PricePoint is a single end-of-day price record for a symbol. Dividend
// holds the per-share cash distribution that went ex on Date, zero on
// ordinary days. Records are immutable once the trading day closes; a
// back-adjustment replaces the row wholesale, never edits it.
type PricePoint struct {
	Symbol   string    `json:"symbol"`
	Date     time.Time `json:"date"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjClose"`
	Dividend float64   `json:"dividend"`
}

// HoldingLine is one constituent position inside a holdings snapshot
type HoldingLine struct {
	Symbol      string   `json:"symbol"`
	Name        string   `json:"name"`
	Weight      float64  `json:"weightPercentage"`
	SharesHeld  *int64   `json:"sharesHeld,omitempty"`
	MarketValue *float64 `json:"marketValue,omitempty"`
}

// HoldingsSnapshot is the complete composition of an ETF as reported on
// AsOf by Source. Snapshots are append-only; a newer composition gets a
// new AsOf date rather than mutating an existing record.
type HoldingsSnapshot struct {
	ETF      string        `json:"etfSymbol"`
	AsOf     time.Time     `json:"asOfDate"`
	Source   string        `json:"source"`
	Holdings []HoldingLine `json:"holdings"`
}

// TotalWeight sums the weight of every holding line
func (snap *HoldingsSnapshot) TotalWeight() float64 {
	total := 0.0
	for _, line := range snap.Holdings {
		total += line.Weight
	}
	return total
}

// IngestID calculates a 16-byte blake3 hash over the snapshot identity and
// every holding line. Two ingest requests carrying the same snapshot hash
// to the same id, which is what makes replays idempotent.
func (snap *HoldingsSnapshot) IngestID() string {
	h := blake3.New()

	if err := binary.Write(h, binary.BigEndian, snap.AsOf.Unix()); err != nil {
		log.Error().Stack().Err(err).Msg("could not write as-of date to blake3 hasher")
	}
	if _, err := h.WriteString(snap.ETF); err != nil {
		log.Error().Stack().Err(err).Msg("could not write etf symbol to blake3 hasher")
	}
	if _, err := h.WriteString(snap.Source); err != nil {
		log.Error().Stack().Err(err).Msg("could not write source to blake3 hasher")
	}
	for _, line := range snap.Holdings {
		if _, err := h.WriteString(line.Symbol); err != nil {
			log.Error().Stack().Err(err).Msg("could not write constituent symbol to blake3 hasher")
		}
		if err := binary.Write(h, binary.BigEndian, line.Weight); err != nil {
			log.Error().Stack().Err(err).Msg("could not write weight to blake3 hasher")
		}
	}

	digest := h.Sum(nil)
	return hex.EncodeToString(digest[:16])
}

// FundInfo is descriptive ETF metadata
type FundInfo struct {
	Symbol        string     `json:"symbol"`
	Name          string     `json:"name"`
	FundFamily    string     `json:"fundFamily"`
	Category      string     `json:"category"`
	Currency      string     `json:"currency"`
	InceptionDate *time.Time `json:"inceptionDate,omitempty"`
	ExpenseRatio  float64    `json:"expenseRatio"`
	AUM           int64      `json:"aum"`
}

// AumFormatted renders assets under management in billions/millions
func (f *FundInfo) AumFormatted() string {
	switch {
	case f.AUM >= 1_000_000_000:
		return fmt.Sprintf("$%.2fB", float64(f.AUM)/1_000_000_000)
	case f.AUM >= 1_000_000:
		return fmt.Sprintf("$%.1fM", float64(f.AUM)/1_000_000)
	case f.AUM > 0:
		return fmt.Sprintf("$%d", f.AUM)
	default:
		return "N/A"
	}
}

// MerFormatted renders the management expense ratio as a percentage
func (f *FundInfo) MerFormatted() string {
	if f.ExpenseRatio == 0 {
		return "N/A"
	}
	return fmt.Sprintf("%.2f%%", f.ExpenseRatio)
}

// Dimension selects which allocation breakdown to compute
type Dimension string

const (
	DimensionSector    Dimension = "sector"
	DimensionGeography Dimension = "geography"
)

// Unclassified is the reserved bucket for constituents missing reference
// data; dropping them would break the weight-sum invariant.
const Unclassified = "Unclassified"

// Classification maps a constituent to its sector and geographic region
type Classification struct {
	Symbol string `json:"symbol"`
	Sector string `json:"sector"`
	Region string `json:"region"`
}
