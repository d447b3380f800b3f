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
	"errors"
	"time"

	"github.com/etfolio/etf-api/common"
	"github.com/etfolio/etf-api/data"
	"github.com/etfolio/etf-api/perf"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

type PingResponse struct {
	Status  string `json:"status" example:"success"`
	Message string `json:"message" example:"API is alive"`
	Time    string `json:"time" example:"2024-06-19T08:09:10.115924-05:00"`
}

func Ping(c *fiber.Ctx) error {
	var response PingResponse
	now, err := time.Now().MarshalText()
	if err != nil {
		log.Error().Stack().Err(err).Msg("error while getting time in ping")
		response = PingResponse{
			Status:  "error",
			Message: err.Error(),
			Time:    string(now),
		}
	} else {
		response = PingResponse{
			Status:  "success",
			Message: "API is alive",
			Time:    string(now),
		}
	}
	return c.JSON(response)
}

// parseDateQuery parses a YYYY-MM-DD query parameter, pinned to the
// market close in the exchange timezone the way store queries expect
func parseDateQuery(c *fiber.Ctx, name string, dflt time.Time) (time.Time, error) {
	raw := c.Query(name)
	if raw == "" {
		return dflt, nil
	}
	tz := common.GetTimezone()
	parsed, err := time.ParseInLocation("2006-01-02", raw, tz)
	if err != nil {
		log.Warn().Str(name, raw).Msg("could not parse date query parameter")
		return time.Time{}, fiber.ErrBadRequest
	}
	return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 16, 0, 0, 0, tz), nil
}

// statusFromError maps domain sentinel errors onto HTTP status codes
func statusFromError(err error) error {
	switch {
	case errors.Is(err, data.ErrPriceUnavailable),
		errors.Is(err, data.ErrNoHoldingsData),
		errors.Is(err, data.ErrNotFound):
		return fiber.ErrNotFound
	case errors.Is(err, data.ErrConflictingSnapshot):
		return fiber.ErrConflict
	case errors.Is(err, data.ErrInvalidSnapshot),
		errors.Is(err, data.ErrInvalidTimeRange),
		errors.Is(err, data.ErrEmptySymbol),
		errors.Is(err, perf.ErrInvalidAmount),
		errors.Is(err, perf.ErrInvalidDateRange):
		return fiber.ErrBadRequest
	default:
		return fiber.ErrInternalServerError
	}
}
