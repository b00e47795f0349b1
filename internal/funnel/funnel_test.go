package funnel

import (
	"testing"

	"github.com/arkilian/weblog/pkg/types"
)

func TestDetect(t *testing.T) {
	tests := []struct {
		name      string
		paths     []string
		flags     [4]bool
		purchases int
	}{
		{
			name:      "two purchases without returning to root",
			paths:     []string{"/", "/productos", "/carrito", "/checkout", "/productos", "/carrito", "/checkout"},
			flags:     [4]bool{true, true, true, true},
			purchases: 2,
		},
		{
			name:      "no leading root",
			paths:     []string{"/productos", "/carrito", "/checkout"},
			flags:     [4]bool{false, false, false, false},
			purchases: 0,
		},
		{
			name:      "empty session",
			paths:     nil,
			flags:     [4]bool{false, false, false, false},
			purchases: 0,
		},
		{
			name:      "root only",
			paths:     []string{"/otra", "/"},
			flags:     [4]bool{true, false, false, false},
			purchases: 0,
		},
		{
			name:      "steps with noise in between",
			paths:     []string{"/", "/blog", "/productos", "/productos", "/ayuda", "/carrito", "/checkout"},
			flags:     [4]bool{true, true, true, true},
			purchases: 1,
		},
		{
			name:      "root resets an open cycle",
			paths:     []string{"/", "/productos", "/", "/carrito", "/checkout"},
			flags:     [4]bool{true, true, true, true},
			purchases: 0,
		},
		{
			name:      "checkout before carrito",
			paths:     []string{"/", "/productos", "/checkout", "/carrito"},
			flags:     [4]bool{true, true, true, false},
			purchases: 0,
		},
		{
			name:      "second cycle started from root",
			paths:     []string{"/", "/productos", "/carrito", "/checkout", "/", "/productos", "/carrito", "/checkout", "/checkout"},
			flags:     [4]bool{true, true, true, true},
			purchases: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Detect(tt.paths)
			flags := Reached(got)
			for i := range flags {
				if flags[i] != tt.flags[i] {
					t.Errorf("%s = %v, want %v", StepNames[i], flags[i], tt.flags[i])
				}
			}
			if got.Purchases != tt.purchases {
				t.Errorf("purchases = %d, want %d", got.Purchases, tt.purchases)
			}
		})
	}
}

func TestSteps(t *testing.T) {
	if len(Steps) != len(StepNames) || Steps[0] != types.PathRoot || Steps[3] != types.PathCheckout {
		t.Errorf("unexpected steps %v", Steps)
	}
}
