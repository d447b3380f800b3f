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
	"context"
	"strings"
	"sync"

	"github.com/etfolio/etf-api/database"
	"github.com/rs/zerolog/log"
)

// Classification reference data is read-mostly and small (one row per
// listed constituent), so it is held in memory and refreshed on a
// schedule rather than queried per lookup.

var (
	classificationsBySymbol map[string]*Classification
	classificationsLock     sync.RWMutex
)

// LoadClassificationsFromDB populates the in-memory classification map
// from the stock_details reference table
func LoadClassificationsFromDB(ctx context.Context) error {
	trx, err := database.Trx(ctx)
	if err != nil {
		log.Error().Stack().Err(err).Msg("could not get transaction when loading classifications")
		return err
	}

	rows, err := trx.Query(ctx, "SELECT symbol, sector, region FROM stock_details")
	if err != nil {
		log.Error().Err(err).Msg("could not query stock details from database")
		if err := trx.Rollback(ctx); err != nil {
			log.Error().Stack().Err(err).Msg("could not rollback transaction")
		}
		return err
	}

	loaded := make(map[string]*Classification, 1024)
	for rows.Next() {
		var c Classification
		if err := rows.Scan(&c.Symbol, &c.Sector, &c.Region); err != nil {
			log.Error().Err(err).Msg("could not scan classification row")
			if err := trx.Rollback(ctx); err != nil {
				log.Error().Stack().Err(err).Msg("could not rollback transaction")
			}
			return err
		}
		loaded[strings.ToUpper(c.Symbol)] = &c
	}

	if err := trx.Commit(ctx); err != nil {
		log.Warn().Stack().Err(err).Msg("could not commit transaction")
	}

	classificationsLock.Lock()
	classificationsBySymbol = loaded
	classificationsLock.Unlock()

	log.Info().Int("NumClassifications", len(loaded)).Msg("loaded classification reference data")
	return nil
}

// ClassificationFromSymbol looks up the sector/region record for a
// constituent symbol
func ClassificationFromSymbol(symbol string) (*Classification, error) {
	classificationsLock.RLock()
	defer classificationsLock.RUnlock()

	if c, ok := classificationsBySymbol[strings.ToUpper(symbol)]; ok {
		return c, nil
	}
	return nil, ErrNotFound
}

// RefClassifier adapts the package-level lookup to the allocation
// package's Classifier interface
type RefClassifier struct {
}

func NewRefClassifier() *RefClassifier {
	return &RefClassifier{}
}

func (rc *RefClassifier) Classify(symbol string) (*Classification, error) {
	return ClassificationFromSymbol(symbol)
}
