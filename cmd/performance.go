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

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/database"
	"github.com/etfolio/etf-api/perf"
	"github.com/rs/zerolog/log"

	"github.com/spf13/cobra"
)

var (
	perfAmount    float64
	perfEndDate   string
	perfReinvest  bool
	perfBenchmark string
)

func init() {
	performanceCmd.Flags().Float64Var(&perfAmount, "amount", 10000, "Initial investment amount")
	performanceCmd.Flags().StringVar(&perfEndDate, "end-date", "", "End date (YYYY-MM-DD), defaults to the latest recorded price date")
	performanceCmd.Flags().BoolVar(&perfReinvest, "reinvest", false, "Reinvest dividends on each distribution date")
	performanceCmd.Flags().StringVar(&perfBenchmark, "benchmark", "", "Benchmark symbol for beta calculation")
	rootCmd.AddCommand(performanceCmd)
}

func parseCliDate(raw string) (time.Time, error) {
	tz := common.GetTimezone()
	parsed, err := time.ParseInLocation("2006-01-02", raw, tz)
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 16, 0, 0, 0, tz), nil
}

var performanceCmd = &cobra.Command{
	Use:        "performance [flags] Symbol StartDate",
	Short:      "Calculate investment performance for a symbol",
	Args:       cobra.MinimumNArgs(2),
	ArgAliases: []string{"Symbol", "StartDate"},
	Run: func(cmd *cobra.Command, args []string) {
		common.SetupLogging()

		ctx := context.Background()
		if err := database.Connect(ctx); err != nil {
			log.Fatal().Stack().Err(err).Msg("could not connect to database")
		}

		startDate, err := parseCliDate(args[1])
		if err != nil {
			log.Fatal().Err(err).Str("StartDate", args[1]).Msg("could not parse start date")
		}

		var endDate time.Time
		if perfEndDate != "" {
			endDate, err = parseCliDate(perfEndDate)
			if err != nil {
				log.Fatal().Err(err).Str("EndDate", perfEndDate).Msg("could not parse end date")
			}
		}

		scenario := &perf.Scenario{
			Symbol:            strings.ToUpper(args[0]),
			InitialAmount:     perfAmount,
			StartDate:         startDate,
			EndDate:           endDate,
			ReinvestDividends: perfReinvest,
			Benchmark:         strings.ToUpper(perfBenchmark),
		}

		resolver := data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
		result, err := perf.NewCalculator(resolver).Calculate(ctx, scenario)
		if err != nil {
			log.Fatal().Stack().Err(err).Str("Symbol", scenario.Symbol).Msg("performance calculation failed")
		}

		fmt.Printf("%s: %s through %s\n", result.Symbol,
			result.StartDate.Format("2006-01-02"), result.EndDate.Format("2006-01-02"))
		fmt.Printf("Initial Investment: $%.2f\n", result.InitialInvestment)
		fmt.Printf("Start Price       : $%.2f\n", result.StartPrice)
		fmt.Printf("End Price         : $%.2f\n", result.EndPrice)
		fmt.Printf("Shares Owned      : %.4f\n", result.SharesOwned)
		fmt.Printf("Dividend Income   : $%.2f\n", result.DividendIncome)
		fmt.Printf("Final Value       : $%.2f\n", result.FinalValue)
		fmt.Printf("Total Return      : %.2f%%\n", result.TotalReturnPct)
		if result.AnnualizedReturn != nil {
			fmt.Printf("Annualized Return : %.2f%%\n", *result.AnnualizedReturn)
		}
		fmt.Printf("Years Held        : %.2f\n", result.YearsHeld)
		if result.Risk != nil {
			fmt.Printf("Volatility (ann.) : %.2f%%\n", result.Risk.AnnualizedVolatility)
			fmt.Printf("Max Drawdown      : %.2f%%\n", result.Risk.MaxDrawdownPct)
			if result.Risk.Beta != nil {
				fmt.Printf("Beta vs %-10s: %.2f\n", scenario.Benchmark, *result.Risk.Beta)
			}
		}

		database.LogOpenTransactions()
	},
}
