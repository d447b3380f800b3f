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

var _ = Describe("PriceStore", func() {
	var (
		dbConn pgxmock.PgxConnIface
		store  *data.PriceStore
		ctx    context.Context
		tz     *time.Location
	)

	BeforeEach(func() {
		var err error
		dbConn, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbConn)
		store = data.NewPriceStore()
		ctx = context.Background()
		tz = common.GetTimezone()
	})

	Context("when querying a single date", func() {
		It("returns the record for an exact trading day", func() {
			tradeDay := time.Date(2024, 1, 15, 16, 0, 0, 0, tz)
			pgxmockhelper.MockEodQuery(dbConn,
				pgxmockhelper.EodRow(pgxmockhelper.EodRows(), "XGRO", tradeDay, 27.51, 27.51, 0))

			pt, err := store.GetPrice(ctx, "xgro", tradeDay)
			Expect(err).To(BeNil())
			Expect(pt.Symbol).To(Equal("XGRO"))
			Expect(pt.AdjClose).To(Equal(27.51))
			Expect(pt.Date.Hour()).To(Equal(16))
		})

		It("returns ErrNotFound when the date has no record", func() {
			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())

			_, err := store.GetPrice(ctx, "XGRO", time.Date(2024, 1, 13, 16, 0, 0, 0, tz))
			Expect(err).To(MatchError(data.ErrNotFound))
		})

		It("rejects an empty symbol without touching the database", func() {
			_, err := store.GetPrice(ctx, "", time.Date(2024, 1, 15, 16, 0, 0, 0, tz))
			Expect(err).To(MatchError(data.ErrEmptySymbol))
		})
	})

	Context("when querying on-or-before", func() {
		It("returns the most recent earlier record", func() {
			friday := time.Date(2024, 1, 12, 16, 0, 0, 0, tz)
			pgxmockhelper.MockEodQuery(dbConn,
				pgxmockhelper.EodRow(pgxmockhelper.EodRows(), "XGRO", friday, 27.18, 27.18, 0))

			pt, err := store.GetPriceOnOrBefore(ctx, "XGRO", time.Date(2024, 1, 14, 16, 0, 0, 0, tz))
			Expect(err).To(BeNil())
			Expect(pt.Date.Day()).To(Equal(12))
		})
	})

	Context("when querying distributions", func() {
		It("returns an empty slice for a range with no dividends", func() {
			pgxmockhelper.MockEodQuery(dbConn, pgxmockhelper.EodRows())

			dists, err := store.GetDistributions(ctx, "XGRO",
				time.Date(2024, 1, 1, 16, 0, 0, 0, tz), time.Date(2024, 2, 1, 16, 0, 0, 0, tz))
			Expect(err).To(BeNil())
			Expect(dists).To(BeEmpty())
		})

		It("returns dividend records in chronological order", func() {
			rows := pgxmockhelper.EodRows()
			pgxmockhelper.EodRow(rows, "XGRO", time.Date(2024, 3, 26, 16, 0, 0, 0, tz), 27.90, 27.90, 0.17)
			pgxmockhelper.EodRow(rows, "XGRO", time.Date(2024, 6, 25, 16, 0, 0, 0, tz), 28.45, 28.45, 0.19)
			pgxmockhelper.MockEodQuery(dbConn, rows)

			dists, err := store.GetDistributions(ctx, "XGRO",
				time.Date(2024, 1, 1, 16, 0, 0, 0, tz), time.Date(2024, 12, 31, 16, 0, 0, 0, tz))
			Expect(err).To(BeNil())
			Expect(dists).To(HaveLen(2))
			Expect(dists[0].Dividend).To(Equal(0.17))
			Expect(dists[1].Date.After(dists[0].Date)).To(BeTrue())
		})

		It("rejects an inverted time range", func() {
			_, err := store.GetDistributions(ctx, "XGRO",
				time.Date(2024, 6, 1, 16, 0, 0, 0, tz), time.Date(2024, 1, 1, 16, 0, 0, 0, tz))
			Expect(err).To(MatchError(data.ErrInvalidTimeRange))
		})
	})

	Context("when querying the latest date", func() {
		It("returns the max event date pinned to the market close", func() {
			latest := time.Date(2024, 8, 30, 0, 0, 0, 0, tz)
			pgxmockhelper.MockLatestDateQuery(dbConn, &latest)

			dt, err := store.LatestDate(ctx, "XGRO")
			Expect(err).To(BeNil())
			Expect(dt.Day()).To(Equal(30))
			Expect(dt.Hour()).To(Equal(16))
		})

		It("returns ErrNotFound for a symbol with no records", func() {
			pgxmockhelper.MockLatestDateQuery(dbConn, nil)

			_, err := store.LatestDate(ctx, "ZZZZ")
			Expect(err).To(MatchError(data.ErrNotFound))
		})
	})

	Context("when upserting prices", func() {
		It("writes the record inside a committed transaction", func() {
			pgxmockhelper.MockEodUpsert(dbConn)

			err := store.UpsertPrice(ctx, &data.PricePoint{
				Symbol:   "XGRO",
				Date:     time.Date(2024, 1, 15, 16, 0, 0, 0, tz),
				Close:    27.51,
				AdjClose: 27.51,
			})
			Expect(err).To(BeNil())
			Expect(dbConn.ExpectationsWereMet()).To(BeNil())
		})

		It("replaces an existing row for the same date", func() {
			// back-adjustment path: same statement, the ON CONFLICT
			// clause rewrites the stored adjusted close
			pgxmockhelper.MockEodUpsert(dbConn)

			err := store.UpsertPrice(ctx, &data.PricePoint{
				Symbol:   "XGRO",
				Date:     time.Date(2024, 1, 15, 16, 0, 0, 0, tz),
				Close:    27.51,
				AdjClose: 27.34,
				Dividend: 0.17,
			})
			Expect(err).To(BeNil())
			Expect(dbConn.ExpectationsWereMet()).To(BeNil())
		})
	})
})
