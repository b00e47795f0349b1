package normalize

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_PathInvariants(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	const alphabet = "//aB?=x:."
	rawPath := gen.SliceOfN(12, gen.IntRange(0, len(alphabet)-1)).Map(func(idx []int) string {
		var b strings.Builder
		for _, i := range idx {
			b.WriteByte(alphabet[i])
		}
		return b.String()
	})

	properties.Property("normalized paths are canonical", prop.ForAll(
		func(raw string) bool {
			p, ok := Path(raw)
			if !ok {
				return true
			}
			return strings.HasPrefix(p, "/") &&
				!strings.Contains(p, "//") &&
				!strings.Contains(p, "?") &&
				p == strings.ToLower(p)
		},
		rawPath,
	))

	properties.Property("normalization is idempotent", prop.ForAll(
		func(raw string) bool {
			p, ok := Path(raw)
			if !ok {
				return true
			}
			again, ok := Path(p)
			return ok && again == p
		},
		rawPath,
	))

	schemes := []string{"http://", "https://", "file://", "HTTP://"}
	properties.Property("scheme-prefixed values are always rejected", prop.ForAll(
		func(i int, rest string) bool {
			raw := schemes[i] + rest
			_, pathOK := Path(raw)
			_, refOK := Referrer(raw)
			return !pathOK && !refOK
		},
		gen.IntRange(0, len(schemes)-1),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
