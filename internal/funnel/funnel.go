// Package funnel detects progress through the / -> /productos -> /carrito ->
// /checkout conversion funnel within one session.
package funnel

import "github.com/arkilian/weblog/pkg/types"

// State is a step the scan is waiting for.
type State int

const (
	NeedRoot State = iota
	NeedProductos
	NeedCarrito
	NeedCheckout
	Done
)

// Steps lists the funnel paths in order.
var Steps = []string{types.PathRoot, types.PathProductos, types.PathCarrito, types.PathCheckout}

// StepNames are the funnel table labels of each step.
var StepNames = []string{
	"saw_root",
	"saw_productos_after_root",
	"saw_carrito_after_productos",
	"saw_checkout_after_carrito",
}

// Detect scans a session's chronologically ordered paths.
//
// Progress flags come from a scan that never resets: each flag is set by the
// first occurrence of its step after the first qualifying occurrence of the
// previous step. Purchases come from a second scan where "/" always moves to
// NeedProductos and a "/checkout" in NeedCheckout counts a purchase and moves
// to NeedProductos, so repeat purchases need no new "/".
func Detect(paths []string) types.FunnelProgress {
	progress := NeedRoot
	purchase := NeedRoot
	purchases := 0

	for _, p := range paths {
		if progress < Done && p == Steps[progress] {
			progress++
		}

		switch {
		case p == types.PathRoot:
			purchase = NeedProductos
		case purchase == NeedProductos && p == types.PathProductos:
			purchase = NeedCarrito
		case purchase == NeedCarrito && p == types.PathCarrito:
			purchase = NeedCheckout
		case purchase == NeedCheckout && p == types.PathCheckout:
			purchases++
			purchase = NeedProductos
		}
	}

	return types.FunnelProgress{
		SawRoot:                  progress > NeedRoot,
		SawProductosAfterRoot:    progress > NeedProductos,
		SawCarritoAfterProductos: progress > NeedCarrito,
		SawCheckoutAfterCarrito:  progress > NeedCheckout,
		Purchases:                purchases,
	}
}

// Reached returns the flags of progress in step order.
func Reached(p types.FunnelProgress) []bool {
	return []bool{p.SawRoot, p.SawProductosAfterRoot, p.SawCarritoAfterProductos, p.SawCheckoutAfterCarrito}
}
