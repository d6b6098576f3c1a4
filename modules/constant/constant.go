package constant

import (
	"fmt"

	"github.com/specialistvlad/sweptgrid/internal/kernel"
)

// New builds the initial condition.
func New(args *Args, d kernel.Domain) (kernel.Initial, error) {
	if args.Values == nil {
		x := args.Value
		return kernel.InitialFunc(func(int, int, int) float64 { return x }), nil
	}
	if len(args.Values) != d.Vars {
		return nil, fmt.Errorf("values has %d entries for %d variables", len(args.Values), d.Vars)
	}
	values := append([]float64(nil), args.Values...)
	return kernel.InitialFunc(func(v, _, _ int) float64 { return values[v] }), nil
}
