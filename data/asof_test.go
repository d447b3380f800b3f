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

package data_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/database"
	"github.com/etfolio/etf-api/pgxmockhelper"
)

var _ = Describe("Resolver", func() {
	var (
		dbConn   pgxmock.PgxConnIface
		resolver *data.Resolver
		ctx      context.Context
		tz       *time.Location
	)

	BeforeEach(func() {
		var err error
		dbConn, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbConn)
		resolver = data.NewResolver(data.NewPriceStore(), data.NewHoldingsStore())
		ctx = context.Background()
		tz = common.GetTimezone()
	})

	Context("when resolving prices", func() {
		It("returns the exact-date record when one exists", func() {
			tradeDay := time.Date(2024, 1, 15, 16, 0, 0, 0, tz)
			pgxmockhelper.MockEodQuery(dbConn,
				pgxmockhelper.EodRow(pgxmockhelper.EodRows(), "XGRO", tradeDay, 27.51, 27.51, 0))

			pt, err := resolver.ResolvePrice(ctx, "XGRO", tradeDay)
			Expect(err).To(BeNil())
			Expect(pt.AdjClose).To(Equal(27.51))
		})

		It("falls back to the prior trading day over a weekend", func() {
			saturday := time.Date(2024, 1, 13, 16, 0, 0, 0, tz)
			friday := time.Date(2024, 1, 12, 16, 0, 0, 0, tz)

			// exact lookup misses, on-or-before finds Friday
			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())
			pgxmockhelper.MockEodQuery(dbConn,
				pgxmockhelper.EodRow(pgxmockhelper.EodRows(), "XGRO", friday, 27.18, 27.18, 0))

			pt, err := resolver.ResolvePrice(ctx, "XGRO", saturday)
			Expect(err).To(BeNil())
			Expect(pt.Date.Day()).To(Equal(12))
		})

		It("returns ErrPriceUnavailable when the nearest record is outside the window", func() {
			requested := time.Date(2024, 2, 1, 16, 0, 0, 0, tz)
			stale := time.Date(2024, 1, 10, 16, 0, 0, 0, tz)

			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())
			pgxmockhelper.MockEodQuery(dbConn,
				pgxmockhelper.EodRow(pgxmockhelper.EodRows(), "XGRO", stale, 27.02, 27.02, 0))

			_, err := resolver.ResolvePrice(ctx, "XGRO", requested)
			Expect(err).To(MatchError(data.ErrPriceUnavailable))
		})

		It("returns ErrPriceUnavailable for a date before the first record", func() {
			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())
			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())

			_, err := resolver.ResolvePrice(ctx, "XGRO", time.Date(2015, 1, 2, 16, 0, 0, 0, tz))
			Expect(err).To(MatchError(data.ErrPriceUnavailable))
		})
	})

	Context("when resolving snapshots", func() {
		It("translates a missing snapshot into ErrNoHoldingsData", func() {
			pgxmockhelper.MockEmptySnapshotQuery(dbConn)

			_, err := resolver.ResolveSnapshot(ctx, "XGRO", time.Date(2018, 1, 1, 16, 0, 0, 0, tz))
			Expect(err).To(MatchError(data.ErrNoHoldingsData))
		})

		It("passes a resolved snapshot through unchanged", func() {
			snapRows := pgxmockhelper.SnapshotRows().
				AddRow(time.Date(2024, 6, 30, 0, 0, 0, 0, tz), "issuer-website")
			holdingRows := pgxmockhelper.HoldingRows().
				AddRow("ITOT", "iShares Core S&P Total U.S. Stock Market ETF", 36.4, nil, nil)
			pgxmockhelper.MockSnapshotQuery(dbConn, snapRows, holdingRows)

			snap, err := resolver.ResolveSnapshot(ctx, "XGRO", time.Date(2024, 7, 15, 16, 0, 0, 0, tz))
			Expect(err).To(BeNil())
			Expect(snap.Holdings).To(HaveLen(1))
		})
	})
})
