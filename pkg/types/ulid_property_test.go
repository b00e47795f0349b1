package types

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_BatchIDOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("batch ids of later runs sort after earlier ones", prop.ForAll(
		func(t1Ms, deltaMs int64) bool {
			g := NewULIDGenerator()
			a, err := g.GenerateWithTime(time.UnixMilli(t1Ms))
			if err != nil {
				return false
			}
			b, err := g.GenerateWithTime(time.UnixMilli(t1Ms + deltaMs))
			if err != nil {
				return false
			}
			return a.String() < b.String()
		},
		gen.Int64Range(1_000_000_000_000, 2_000_000_000_000),
		gen.Int64Range(1, 1_000_000),
	))

	properties.Property("string encoding round-trips", prop.ForAll(
		func(ms int64) bool {
			u, err := NewULIDGenerator().GenerateWithTime(time.UnixMilli(ms))
			if err != nil {
				return false
			}
			parsed, err := ParseULID(u.String())
			return err == nil && parsed == u && u.Timestamp() == uint64(ms)
		},
		gen.Int64Range(0, 281474976710655),
	))

	properties.TestingRun(t)
}
