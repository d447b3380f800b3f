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

package perf

import (
	"context"

	"github.com/rs/zerolog/log"
)

// CompareEntry is one symbol's outcome in a comparison run; exactly one
// of Result or Error is set
type CompareEntry struct {
	Result *Result `json:"result,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Compare evaluates the same scenario across multiple symbols. A failure
// for one symbol is reported in its entry and does not abort the batch.
func (calc *Calculator) Compare(ctx context.Context, symbols []string, template *Scenario) map[string]*CompareEntry {
	results := make(map[string]*CompareEntry, len(symbols))

	for _, symbol := range symbols {
		scenario := *template
		scenario.Symbol = symbol

		result, err := calc.Calculate(ctx, &scenario)
		if err != nil {
			log.Warn().Err(err).Str("Symbol", symbol).Msg("could not calculate performance for comparison")
			results[symbol] = &CompareEntry{Error: err.Error()}
			continue
		}
		results[symbol] = &CompareEntry{Result: result}
	}

	return results
}
