// Package xirr solves for the annualized rate at which the net present value
// of a set of irregularly dated cash flows is zero.
//
//	XNPV(r) = Σ cf_i / (1+r)^((d_i - d_min)/365)
//
// The solver is pure: no I/O and no shared state. A damped secant search
// runs first; if it does not converge inside the sane range the solver falls
// back to bisection over a wide bracket.
package xirr

import (
	"errors"
	"fmt"
	"math"
	"time"

	"grid-backtester/internal/types"
)

const (
	DaysPerYear = 365.0

	// Secant seeds.
	DefaultGuess0 = 0.1
	DefaultGuess1 = 0.2

	DefaultMaxIterations = 100
	// DefaultTolerance bounds |XNPV| at the accepted root.
	DefaultTolerance = 1e-6

	// Accepted rates lie strictly inside (MinRate, MaxRate).
	MinRate = -0.99
	MaxRate = 10.0

	// Bisection fallback bracket.
	BracketLow  = -0.999
	BracketHigh = 10.0

	// MaxSecantStep caps a single secant move.
	MaxSecantStep = 1.0

	bracketScanPoints = 200
)

var ErrUnsolvable = errors.New("xirr: no solution")

type Options struct {
	Guess0        float64
	Guess1        float64
	MaxIterations int
	Tolerance     float64
	MinRate       float64
	MaxRate       float64
	BracketLow    float64
	BracketHigh   float64
}

func DefaultOptions() Options {
	return Options{
		Guess0:        DefaultGuess0,
		Guess1:        DefaultGuess1,
		MaxIterations: DefaultMaxIterations,
		Tolerance:     DefaultTolerance,
		MinRate:       MinRate,
		MaxRate:       MaxRate,
		BracketLow:    BracketLow,
		BracketHigh:   BracketHigh,
	}
}

// Method names the root finder that produced a result.
type Method string

const (
	MethodSecant    Method = "secant"
	MethodBisection Method = "bisection"
)

type Result struct {
	Rate       float64
	Method     Method
	Iterations int
}

// Solve returns the XIRR of flows using DefaultOptions. A missing answer is
// reported as an error wrapping ErrUnsolvable; callers should treat it as a
// displayable outcome.
func Solve(flows []types.CashFlow) (float64, error) {
	res, err := SolveWithOptions(flows, DefaultOptions())
	if err != nil {
		return 0, err
	}
	return res.Rate, nil
}

func SolveWithOptions(flows []types.CashFlow, opts Options) (Result, error) {
	years, amounts, err := prepare(flows)
	if err != nil {
		return Result{}, err
	}
	f := func(r float64) float64 { return xnpv(r, years, amounts) }

	if r, iters, ok := secant(f, opts); ok {
		if valid(r, opts) {
			return Result{Rate: r, Method: MethodSecant, Iterations: iters}, nil
		}
	}

	r, iters, ok := bisect(f, opts)
	if !ok {
		return Result{}, fmt.Errorf("%w: no sign change in [%g, %g]", ErrUnsolvable, opts.BracketLow, opts.BracketHigh)
	}
	if !valid(r, opts) {
		return Result{}, fmt.Errorf("%w: rate %g outside (%g, %g)", ErrUnsolvable, r, opts.MinRate, opts.MaxRate)
	}
	return Result{Rate: r, Method: MethodBisection, Iterations: iters}, nil
}

// XNPV evaluates the net present value of flows at rate, discounting from
// the earliest flow date.
func XNPV(rate float64, flows []types.CashFlow) float64 {
	if len(flows) == 0 {
		return 0
	}
	base := earliest(flows)
	years := make([]float64, len(flows))
	amounts := make([]float64, len(flows))
	for i, cf := range flows {
		years[i] = yearFraction(base, cf.Date)
		amounts[i] = cf.Amount
	}
	return xnpv(rate, years, amounts)
}

func xnpv(rate float64, years, amounts []float64) float64 {
	if rate <= -1 {
		return math.NaN()
	}
	var sum float64
	for i, a := range amounts {
		sum += a / math.Pow(1+rate, years[i])
	}
	return sum
}

// prepare validates the flow set and converts dates to year fractions.
func prepare(flows []types.CashFlow) ([]float64, []float64, error) {
	var nonZero []types.CashFlow
	for _, cf := range flows {
		if math.IsNaN(cf.Amount) || math.IsInf(cf.Amount, 0) {
			return nil, nil, fmt.Errorf("%w: non-finite cash flow on %s", ErrUnsolvable, cf.Date.Format(time.DateOnly))
		}
		if cf.Amount != 0 {
			nonZero = append(nonZero, cf)
		}
	}
	if len(nonZero) < 2 {
		return nil, nil, fmt.Errorf("%w: need at least 2 non-zero cash flows, got %d", ErrUnsolvable, len(nonZero))
	}

	var pos, neg bool
	sameMagnitude := true
	first := math.Abs(nonZero[0].Amount)
	for _, cf := range nonZero {
		if cf.Amount > 0 {
			pos = true
		} else {
			neg = true
		}
		if math.Abs(math.Abs(cf.Amount)-first) > 1e-12*math.Max(1, first) {
			sameMagnitude = false
		}
	}
	if !pos || !neg {
		return nil, nil, fmt.Errorf("%w: all cash flows share one sign", ErrUnsolvable)
	}
	if sameMagnitude {
		return nil, nil, fmt.Errorf("%w: all cash flows have the same magnitude", ErrUnsolvable)
	}

	base := earliest(nonZero)
	years := make([]float64, len(nonZero))
	amounts := make([]float64, len(nonZero))
	for i, cf := range nonZero {
		years[i] = yearFraction(base, cf.Date)
		amounts[i] = cf.Amount
	}
	return years, amounts, nil
}

func earliest(flows []types.CashFlow) time.Time {
	base := flows[0].Date
	for _, cf := range flows[1:] {
		if cf.Date.Before(base) {
			base = cf.Date
		}
	}
	return base
}

func yearFraction(base, d time.Time) float64 {
	return d.Sub(base).Hours() / 24 / DaysPerYear
}

func valid(r float64, opts Options) bool {
	return !math.IsNaN(r) && r > opts.MinRate && r < opts.MaxRate
}

// secant runs a damped secant iteration. Steps are capped at MaxSecantStep
// and never cross -1, where the discount factor is undefined.
func secant(f func(float64) float64, opts Options) (float64, int, bool) {
	r0, r1 := opts.Guess0, opts.Guess1
	f0, f1 := f(r0), f(r1)
	for i := 1; i <= opts.MaxIterations; i++ {
		if math.IsNaN(f1) || math.IsInf(f1, 0) {
			return 0, i, false
		}
		if math.Abs(f1) < opts.Tolerance {
			return r1, i, true
		}
		denom := f1 - f0
		if denom == 0 {
			return 0, i, false
		}

		step := -f1 * (r1 - r0) / denom
		if step > MaxSecantStep {
			step = MaxSecantStep
		} else if step < -MaxSecantStep {
			step = -MaxSecantStep
		}
		r2 := r1 + step
		if r2 <= -1 {
			r2 = (r1 - 1) / 2
		}
		if r2 < opts.BracketLow || r2 > opts.BracketHigh {
			return 0, i, false
		}

		r0, f0 = r1, f1
		r1, f1 = r2, f(r2)
	}
	return 0, opts.MaxIterations, false
}

// bisect finds the first sign change on a scan of the bracket, closest to
// zero first, and halves it until |XNPV| or the interval is small enough.
func bisect(f func(float64) float64, opts Options) (float64, int, bool) {
	lo, hi, ok := findBracket(f, opts.BracketLow, opts.BracketHigh)
	if !ok {
		return 0, 0, false
	}
	flo := f(lo)
	const maxBisect = 200
	for i := 1; i <= maxBisect; i++ {
		mid := (lo + hi) / 2
		fm := f(mid)
		if math.Abs(fm) < opts.Tolerance || (hi-lo)/2 < 1e-12 {
			return mid, i, true
		}
		if (fm < 0) == (flo < 0) {
			lo, flo = mid, fm
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2, maxBisect, true
}

// findBracket scans [low, high] for an interval whose endpoints give XNPV of
// opposite signs. Intervals nearer to zero are preferred so that, for flow
// sets with more than one root, the economically plausible one wins.
func findBracket(f func(float64) float64, low, high float64) (float64, float64, bool) {
	points := make([]float64, 0, bracketScanPoints+1)
	for i := 0; i <= bracketScanPoints; i++ {
		points = append(points, low+(high-low)*float64(i)/bracketScanPoints)
	}
	values := make([]float64, len(points))
	for i, p := range points {
		values[i] = f(p)
	}

	best := -1
	bestDist := math.Inf(1)
	for i := 0; i+1 < len(points); i++ {
		a, b := values[i], values[i+1]
		if math.IsNaN(a) || math.IsNaN(b) || math.IsInf(a, 0) || math.IsInf(b, 0) {
			continue
		}
		if a == 0 {
			return points[i], points[i], true
		}
		if (a < 0) != (b < 0) {
			dist := math.Min(math.Abs(points[i]), math.Abs(points[i+1]))
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}
	}
	if best < 0 {
		return 0, 0, false
	}
	return points[best], points[best+1], true
}
