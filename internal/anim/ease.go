package anim

// Ease maps linear progress in [0,1] onto eased progress.
type Ease func(t float64) float64

// Linear is the identity curve.
func Linear(t float64) float64 { return clamp01(t) }

// FastOutSlowIn is the cubic-bezier(0.4, 0, 0.2, 1) curve.
var FastOutSlowIn = CubicBezier(0.4, 0, 0.2, 1)

// CubicBezier returns an Ease for the CSS-style control points (x1,y1),(x2,y2).
func CubicBezier(x1, y1, x2, y2 float64) Ease {
	bez := func(t, p1, p2 float64) float64 {
		u := 1 - t
		return 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t
	}
	return func(x float64) float64 {
		x = clamp01(x)
		if x == 0 || x == 1 {
			return x
		}
		// Bisection on x(t); the curve is monotonic for x1,x2 in [0,1].
		lo, hi := 0.0, 1.0
		t := x
		for i := 0; i < 32; i++ {
			t = (lo + hi) / 2
			if bez(t, x1, x2) < x {
				lo = t
			} else {
				hi = t
			}
		}
		return bez(t, y1, y2)
	}
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// Lerp interpolates between a and b.
func Lerp(a, b, f float64) float64 {
	return a + (b-a)*f
}
