// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package pipeline

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/cardinalhq/purchaseloader/internal/purchase"
)

// lineSpec describes one generated source line: well-formed or truncated.
type lineSpec struct {
	ItemID int64
	Valid  bool
}

func genLine() gopter.Gen {
	return gopter.CombineGens(
		gen.Int64Range(1, 10_000),
		gen.Bool(),
	).Map(func(vals []any) lineSpec {
		return lineSpec{ItemID: vals[0].(int64), Valid: vals[1].(bool)}
	})
}

func render(lines []lineSpec) string {
	var b strings.Builder
	for i, l := range lines {
		if l.Valid {
			fmt.Fprintf(&b, "user%d@example.com,%d,1,1,2024-01-01T00:00:00\n", i, l.ItemID)
		} else {
			fmt.Fprintf(&b, "user%d@example.com,%d,1\n", i, l.ItemID)
		}
	}
	return b.String()
}

func TestProperty_WriteAttempts(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	run := func(lines []lineSpec, failEvery int64) (*recordingSession, *Report, error) {
		sess := &recordingSession{}
		if failEvery > 0 {
			sess.failIf = func(r purchase.Record) bool { return r.ItemID%failEvery == 0 }
		}
		p, err := New(Config{
			Storage: staticStorage{"purchases-in/batch.csv": []byte(render(lines))},
			Sink:    &staticSink{session: sess},
		})
		if err != nil {
			return nil, nil, err
		}
		report, err := p.Run(context.Background(), csvEvent())
		return sess, report, err
	}

	properties.Property("attempts never exceed lines and equal the valid lines", prop.ForAll(
		func(lines []lineSpec) bool {
			sess, report, err := run(lines, 0)
			if err != nil {
				return false
			}
			valid := 0
			for _, l := range lines {
				if l.Valid {
					valid++
				}
			}
			return len(sess.records) == valid &&
				report.Attempted() <= len(lines) &&
				report.Dropped() == len(lines)-valid
		},
		gen.SliceOf(genLine()),
	))

	properties.Property("records reach the sink in file order", prop.ForAll(
		func(lines []lineSpec) bool {
			sess, _, err := run(lines, 0)
			if err != nil {
				return false
			}
			var want []int64
			for _, l := range lines {
				if l.Valid {
					want = append(want, l.ItemID)
				}
			}
			got := itemIDs(sess.records)
			if len(got) != len(want) {
				return false
			}
			for i := range want {
				if got[i] != want[i] {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genLine()),
	))

	properties.Property("a failing record never stops the ones after it", prop.ForAll(
		func(lines []lineSpec, failEvery int64) bool {
			sess, report, err := run(lines, failEvery)
			if err != nil {
				return false
			}
			return report.Attempted() == len(sess.records) &&
				report.Written()+report.Failed() == len(sess.records)
		},
		gen.SliceOf(genLine()),
		gen.Int64Range(1, 5),
	))

	properties.TestingRun(t)
}
