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

import "errors"

var (
	ErrNotFound            = errors.New("no record found")
	ErrPriceUnavailable    = errors.New("no price available within lookback window")
	ErrNoHoldingsData      = errors.New("date precedes earliest holdings snapshot")
	ErrConflictingSnapshot = errors.New("snapshot for date already recorded from a different source")
	ErrInvalidSnapshot     = errors.New("snapshot weights must be non-negative and sum to at most 100.5")
	ErrInvalidTimeRange    = errors.New("begin must be before end")
	ErrEmptySymbol         = errors.New("symbol cannot be an empty string")
)
