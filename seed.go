package nanomesh

import (
	"image/color"
)

// prng is a Park-Miller minimal standard generator.
type prng struct {
	a         int
	m         int
	randomNum int
	div       float64
}

func newPRNG(seed int) *prng {
	p := &prng{
		a:   16807,
		m:   0x7fffffff,
		div: 1.0 / 0x7fffffff,
	}
	p.randomNum = seed & p.m
	if p.randomNum == 0 {
		p.randomNum = 1
	}
	return p
}

func (prng *prng) nextLongRand(seed int) int {
	lo := prng.a * (seed & 0xffff)
	hi := prng.a * (seed >> 16)
	lo += (hi & 0x7fff) << 16

	if lo > prng.m {
		lo &= prng.m
		lo++
	}
	lo += hi >> 15
	if lo > prng.m {
		lo &= prng.m
		lo++
	}
	return lo
}

func (prng *prng) randomSeed() float64 {
	prng.randomNum = prng.nextLongRand(prng.randomNum)
	return float64(prng.randomNum) * prng.div
}

// LabelColor returns the plotting color of a region label. The same label
// always maps to the same color.
func LabelColor(label int) color.NRGBA {
	rng := newPRNG(label*7919 + 104729)
	// the first draws of nearby seeds are correlated
	for i := 0; i < 4; i++ {
		rng.randomSeed()
	}
	channel := func() uint8 {
		return uint8(64 + rng.randomSeed()*160)
	}
	return color.NRGBA{R: channel(), G: channel(), B: channel(), A: 255}
}

// Palette returns the colors of the given labels.
func Palette(labels []int) map[int]color.NRGBA {
	p := make(map[int]color.NRGBA, len(labels))
	for _, l := range labels {
		p[l] = LabelColor(l)
	}
	return p
}
