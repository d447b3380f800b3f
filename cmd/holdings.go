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

package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/etfolio/etf-api/allocation"
	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/database"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	holdingsDate  string
	holdingsLimit int
)

func init() {
	holdingsCmd.PersistentFlags().StringVar(&holdingsDate, "date", "", "As-of date (YYYY-MM-DD), defaults to today")
	holdingsCmd.Flags().IntVar(&holdingsLimit, "limit", 20, "Maximum holdings to display, 0 for all")
	holdingsCmd.AddCommand(holdingsDatesCmd)
	holdingsCmd.AddCommand(holdingsAllocCmd)
	rootCmd.AddCommand(holdingsCmd)
}

func holdingsAsOf() time.Time {
	if holdingsDate == "" {
		return time.Now()
	}
	asOf, err := parseCliDate(holdingsDate)
	if err != nil {
		log.Fatal().Err(err).Str("Date", holdingsDate).Msg("could not parse date")
	}
	return asOf
}

var holdingsCmd = &cobra.Command{
	Use:        "holdings [flags] Symbol",
	Short:      "Show the holdings snapshot in effect on a date",
	Args:       cobra.MinimumNArgs(1),
	ArgAliases: []string{"Symbol"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		symbol := strings.ToUpper(args[0])
		resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
		snap, err := resolver.ResolveSnapshot(ctx, symbol, holdingsAsOf())
		if err != nil {
			log.Fatal().Stack().Err(err).Str("ETF", symbol).Msg("could not resolve holdings snapshot")
		}

		fmt.Printf("%s holdings as of %s (source: %s, %d constituents, %.2f%% total weight)\n",
			snap.ETF, snap.AsOf.Format("2006-01-02"), snap.Source, len(snap.Holdings), snap.TotalWeight())

		lines := snap.Holdings
		if holdingsLimit > 0 && holdingsLimit < len(lines) {
			lines = lines[:holdingsLimit]
		}
		for _, line := range lines {
			fmt.Printf("%-12s %7.2f%%  %s\n", line.Symbol, line.Weight, line.Name)
		}

		database.LogOpenTransactions()
	},
}

var holdingsDatesCmd = &cobra.Command{
	Use:        "dates Symbol",
	Short:      "List every snapshot date recorded for an ETF",
	Args:       cobra.MinimumNArgs(1),
	ArgAliases: []string{"Symbol"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		symbol := strings.ToUpper(args[0])
		dates, err := data.NewHoldingsStore().ListSnapshotDates(ctx, symbol)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("ETF", symbol).Msg("could not list snapshot dates")
		}

		for _, d := range dates {
			fmt.Println(d.Format("2006-01-02"))
		}

		database.LogOpenTransactions()
	},
}

var holdingsAllocCmd = &cobra.Command{
	Use:        "allocations Symbol Dimension",
	Short:      "Show the sector or geography breakdown for an ETF",
	Args:       cobra.MinimumNArgs(2),
	ArgAliases: []string{"Symbol", "Dimension"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		if err := data.LoadClassificationsFromDB(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not load classification reference data")
		}

		var dimension data.Dimension
		switch args[1] {
		case "sector":
			dimension = data.DimensionSector
		case "geography":
			dimension = data.DimensionGeography
		default:
			log.Fatal().Str("Dimension", args[1]).Msg("dimension must be 'sector' or 'geography'")
		}

		symbol := strings.ToUpper(args[0])
		resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
		agg := allocation.NewAggregator(resolver, data.NewRefClassifier())
		breakdown, err := agg.Aggregate(ctx, symbol, holdingsAsOf(), dimension)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("ETF", symbol).Msg("could not compute allocation breakdown")
		}

		fmt.Printf("%s %s allocation as of %s\n", breakdown.ETF, breakdown.Dimension, breakdown.AsOf.Format("2006-01-02"))
		for category, weight := range breakdown.Categories {
			fmt.Printf("%-28s %7.2f%%\n", category, weight)
		}

		database.LogOpenTransactions()
	},
}
