// Package interp provides the easing curves used by vehicle lift animations.
package interp

// Curve maps progress in [0, 1] to an eased value.
type Curve func(a float64) float64

// Apply eases between start and end.
func (c Curve) Apply(start, end, a float64) float64 {
	return start + (end-start)*c(a)
}

// Pow2 is a quadratic ease-in-out.
func Pow2(a float64) float64 {
	a = clamp01(a)
	if a <= 0.5 {
		return (2 * a) * (2 * a) / 2
	}
	b := (a - 1) * 2
	return b*b/-2 + 1
}

var (
	bounceWidths  = [4]float64{0.68, 0.34, 0.2, 0.15}
	bounceHeights = [4]float64{1, 0.26, 0.11, 0.03}
)

// BounceOut settles into 1 with four decaying bounces.
func BounceOut(a float64) float64 {
	a = clamp01(a)
	if a == 1 {
		return 1
	}
	a += bounceWidths[0] / 2
	var width, height float64
	for i := range bounceWidths {
		width = bounceWidths[i]
		if a <= width {
			height = bounceHeights[i]
			break
		}
		a -= width
	}
	a /= width
	z := 4 / width * height * a
	return 1 - (z-z*a)*width
}

func clamp01(a float64) float64 {
	switch {
	case a < 0:
		return 0
	case a > 1:
		return 1
	}
	return a
}
