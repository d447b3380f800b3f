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

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/pashagolub/pgxmock"

	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/database"
)

var _ = Describe("Classifications", func() {
	var (
		dbConn pgxmock.PgxConnIface
		ctx    context.Context
	)

	BeforeEach(func() {
		var err error
		dbConn, err = pgxmock.NewConn()
		Expect(err).To(BeNil())
		database.SetPool(dbConn)
		ctx = context.Background()

		dbConn.ExpectBegin()
		dbConn.ExpectQuery("SELECT symbol, sector, region FROM stock_details").WillReturnRows(
			pgxmock.NewRows([]string{"symbol", "sector", "region"}).
				AddRow("RY", "Financial Services", "Canada").
				AddRow("SHOP", "Technology", "Canada").
				AddRow("AAPL", "Technology", "United States"))
		dbConn.ExpectCommit()
		Expect(data.LoadClassificationsFromDB(ctx)).To(Succeed())
	})

	It("looks up a loaded symbol case-insensitively", func() {
		c, err := data.ClassificationFromSymbol("ry")
		Expect(err).To(BeNil())
		Expect(c.Sector).To(Equal("Financial Services"))
		Expect(c.Region).To(Equal("Canada"))
	})

	It("returns ErrNotFound for an unknown symbol", func() {
		_, err := data.ClassificationFromSymbol("XXXX")
		Expect(err).To(MatchError(data.ErrNotFound))
	})

	It("exposes the same lookup through RefClassifier", func() {
		c, err := data.NewRefClassifier().Classify("AAPL")
		Expect(err).To(BeNil())
		Expect(c.Region).To(Equal("United States"))
	})
})
