package nanomesh

import (
	"math"
	"math/big"

	"gonum.org/v1/gonum/spatial/r2"
)

// Error bounds of the floating point orientation and in-circle determinants.
// Results whose magnitude exceeds the bound have the correct sign; the rest
// are recomputed exactly.
var (
	machineEps  = math.Ldexp(1, -53)
	ccwErrBound = (3 + 16*machineEps) * machineEps
	iccErrBound = (10 + 96*machineEps) * machineEps
)

// orient returns twice the signed area of abc, positive when counter-clockwise.
// The sign is exact.
func orient(a, b, c r2.Vec) float64 {
	bx, by := b.X-a.X, b.Y-a.Y
	cx, cy := c.X-a.X, c.Y-a.Y
	// a difference of floats is zero only when they are equal
	if (bx == 0 || cy == 0) && (by == 0 || cx == 0) {
		return 0
	}
	left, right := bx*cy, by*cx
	det := left - right
	if bound := ccwErrBound * (math.Abs(left) + math.Abs(right)); det > bound || -det > bound {
		return det
	}
	return exactOrient(a, b, c, det)
}

// inCircle is positive when d lies inside the circumcircle of the
// counter-clockwise triangle abc, negative outside and zero on it. The sign
// is exact.
func inCircle(a, b, c, d r2.Vec) float64 {
	adx, ady := a.X-d.X, a.Y-d.Y
	bdx, bdy := b.X-d.X, b.Y-d.Y
	cdx, cdy := c.X-d.X, c.Y-d.Y

	bdxcdy, cdxbdy := bdx*cdy, cdx*bdy
	cdxady, adxcdy := cdx*ady, adx*cdy
	adxbdy, bdxady := adx*bdy, bdx*ady
	alift := adx*adx + ady*ady
	blift := bdx*bdx + bdy*bdy
	clift := cdx*cdx + cdy*cdy

	det := alift*(bdxcdy-cdxbdy) + blift*(cdxady-adxcdy) + clift*(adxbdy-bdxady)
	permanent := (math.Abs(bdxcdy)+math.Abs(cdxbdy))*alift +
		(math.Abs(cdxady)+math.Abs(adxcdy))*blift +
		(math.Abs(adxbdy)+math.Abs(bdxady))*clift
	if bound := iccErrBound * permanent; det > bound || -det > bound {
		return det
	}
	return exactInCircle(a, b, c, d, det)
}

func finite(vs ...r2.Vec) bool {
	for _, v := range vs {
		if math.IsNaN(v.X) || math.IsInf(v.X, 0) || math.IsNaN(v.Y) || math.IsInf(v.Y, 0) {
			return false
		}
	}
	return true
}

func ratSub(x, y float64) *big.Rat {
	return new(big.Rat).Sub(new(big.Rat).SetFloat64(x), new(big.Rat).SetFloat64(y))
}

func ratMul(x, y *big.Rat) *big.Rat { return new(big.Rat).Mul(x, y) }

// ratFloat rounds r to a float64 keeping its sign when it underflows.
func ratFloat(r *big.Rat) float64 {
	f, _ := r.Float64()
	if f == 0 && r.Sign() != 0 {
		return float64(r.Sign()) * math.SmallestNonzeroFloat64
	}
	return f
}

func exactOrient(a, b, c r2.Vec, approx float64) float64 {
	if !finite(a, b, c) {
		return approx
	}
	bx, by := ratSub(b.X, a.X), ratSub(b.Y, a.Y)
	cx, cy := ratSub(c.X, a.X), ratSub(c.Y, a.Y)
	return ratFloat(new(big.Rat).Sub(ratMul(bx, cy), ratMul(by, cx)))
}

func exactInCircle(a, b, c, d r2.Vec, approx float64) float64 {
	if !finite(a, b, c, d) {
		return approx
	}
	adx, ady := ratSub(a.X, d.X), ratSub(a.Y, d.Y)
	bdx, bdy := ratSub(b.X, d.X), ratSub(b.Y, d.Y)
	cdx, cdy := ratSub(c.X, d.X), ratSub(c.Y, d.Y)
	lift := func(x, y *big.Rat) *big.Rat {
		return new(big.Rat).Add(ratMul(x, x), ratMul(y, y))
	}
	cross := func(x1, y1, x2, y2 *big.Rat) *big.Rat {
		return new(big.Rat).Sub(ratMul(x1, y2), ratMul(x2, y1))
	}
	det := ratMul(lift(adx, ady), cross(bdx, bdy, cdx, cdy))
	det.Add(det, ratMul(lift(bdx, bdy), cross(cdx, cdy, adx, ady)))
	det.Add(det, ratMul(lift(cdx, cdy), cross(adx, ady, bdx, bdy)))
	return ratFloat(det)
}
