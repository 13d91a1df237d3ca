// Package pivot implements the zhongshu (pivot) finder (C6): a pure function
// over a chronological list of stroke or segment endpoints that identifies
// overlap zones.
package pivot

import (
	"time"

	"github.com/sawpanic/czsc/internal/fractal"
)

// Point is a stroke or segment endpoint, the common input shape for FindZS.
type Point struct {
	DT    time.Time
	Mark  fractal.Mark
	Price float64
}

// Pivot is a consolidation zone formed by four or more overlapping points.
type Pivot struct {
	ZD        float64
	ZG        float64
	D, DD     float64
	G, GG     float64
	Points    []Point
	ThirdBuy  *Point
	ThirdSell *Point
}

// FindZS scans points for overlap zones. Fewer than 5 points yields no
// pivots. The sliding buffer grows to 5 candidates, computes ZD/ZG from the
// first four; once ZG > ZD a pivot exists and subsequent points either widen
// it, trigger a third-buy/third-sell emission, or get folded in.
func FindZS(points []Point) []Pivot {
	if len(points) < 5 {
		return nil
	}

	var pivots []Pivot
	var buf []Point
	i := 0

	for i < len(points) {
		if len(buf) < 5 {
			buf = append(buf, points[i])
			i++
			continue
		}

		zd, zg := computeZDZG(buf[:4])
		if zg <= zd {
			buf = append(buf[1:], points[i])
			i++
			continue
		}

		p := points[i]
		switch {
		case p.Mark == fractal.Bottom && p.Price > zg:
			pivots = append(pivots, buildPivot(buf, thirdBuyOf(p)))
			buf = []Point{buf[len(buf)-1], p}
		case p.Mark == fractal.Top && p.Price < zd:
			pivots = append(pivots, buildPivot(buf, thirdSellOf(p)))
			buf = []Point{buf[len(buf)-1], p}
		default:
			buf = append(buf, p)
		}
		i++
	}

	if len(buf) >= 5 {
		pivots = append(pivots, buildPivot(buf, pivotThirds{}))
	}

	return pivots
}

// pivotThirds carries the optional third-buy/third-sell annotation for a
// pivot about to be built.
type pivotThirds struct {
	buy, sell *Point
}

func thirdBuyOf(p Point) pivotThirds  { return pivotThirds{buy: &p} }
func thirdSellOf(p Point) pivotThirds { return pivotThirds{sell: &p} }

func buildPivot(members []Point, third pivotThirds) Pivot {
	zd, zg := computeZDZG(members[:4])

	var d, dd, g, gg float64

	// D/DD over all bottom members, G/GG over all top members.
	firstBottom, firstTop := true, true
	for _, m := range members {
		switch m.Mark {
		case fractal.Bottom:
			if firstBottom {
				d, dd = m.Price, m.Price
				firstBottom = false
			} else {
				if m.Price > d {
					d = m.Price
				}
				if m.Price < dd {
					dd = m.Price
				}
			}
		case fractal.Top:
			if firstTop {
				g, gg = m.Price, m.Price
				firstTop = false
			} else {
				if m.Price < g {
					g = m.Price
				}
				if m.Price > gg {
					gg = m.Price
				}
			}
		}
	}

	out := make([]Point, len(members))
	copy(out, members)

	return Pivot{
		ZD:        zd,
		ZG:        zg,
		D:         d,
		DD:        dd,
		G:         g,
		GG:        gg,
		Points:    out,
		ThirdBuy:  third.buy,
		ThirdSell: third.sell,
	}
}

// computeZDZG derives ZD (max of the bottom prices) and ZG (min of the top
// prices) among the given members.
func computeZDZG(members []Point) (zd, zg float64) {
	firstBottom, firstTop := true, true
	for _, m := range members {
		switch m.Mark {
		case fractal.Bottom:
			if firstBottom || m.Price > zd {
				zd = m.Price
				firstBottom = false
			}
		case fractal.Top:
			if firstTop || m.Price < zg {
				zg = m.Price
				firstTop = false
			}
		}
	}
	return zd, zg
}
