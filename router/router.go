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

package router

import (
	"github.com/etfolio/etf-api/handler"
	"github.com/gofiber/fiber/v2"
)

// SetupRoutes setup router api
func SetupRoutes(app *fiber.App) {
	api := app.Group("/v1")
	api.Get("/ping", handler.Ping)

	// Performance
	performance := api.Group("/performance")
	performance.Get("/:symbol", handler.GetPerformance)
	performance.Post("/compare", handler.ComparePerformance)

	// ETF holdings and metadata
	etf := api.Group("/etf")
	etf.Get("/:symbol/holdings", handler.GetHoldings)
	etf.Get("/:symbol/holdings/dates", handler.ListHoldingsDates)
	etf.Post("/:symbol/holdings", handler.IngestHoldings)
	etf.Get("/:symbol/allocations/:dimension", handler.GetAllocations)
	etf.Get("/:symbol/info", handler.GetFundInfo)
	etf.Put("/:symbol/info", handler.UpsertFundInfo)

	// Prices
	prices := api.Group("/prices")
	prices.Get("/:symbol", handler.GetPrice)
	prices.Post("/:symbol", handler.UpsertPrice)
}
