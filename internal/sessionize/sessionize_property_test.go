package sessionize

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/arkilian/weblog/pkg/types"
)

func TestProperty_SessionBoundaries(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	timeout := 30 * time.Minute

	properties.Property("a session starts exactly where the gap exceeds the timeout", prop.ForAll(
		func(offsets []int) bool {
			events := make([]types.CleanEvent, len(offsets))
			for i, m := range offsets {
				events[i] = ev("u", time.Duration(m)*time.Minute, "/")
			}
			out := Sessionize(events, timeout, 3)
			for i := 1; i < len(out); i++ {
				gap := out[i].TS.Sub(out[i-1].TS)
				newSession := out[i].SessionIndex == out[i-1].SessionIndex+1
				sameSession := out[i].SessionIndex == out[i-1].SessionIndex
				if gap > timeout && !newSession {
					return false
				}
				if gap <= timeout && !sameSession {
					return false
				}
			}
			return len(out) == 0 || out[0].SessionIndex == 0
		},
		gen.SliceOf(gen.IntRange(0, 600)),
	))

	properties.TestingRun(t)
}
