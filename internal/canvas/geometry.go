package canvas

import "math"

// minDenom floors near-zero denominators so boundary math between shapes
// with coincident centers degrades to a zero-length connector instead of
// producing NaN or Inf.
const minDenom = 1e-9

// Point is a position on the canvas.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Center returns the midpoint of a node's bounding box.
func Center(n Node) Point {
	return Point{X: n.X + n.Width/2, Y: n.Y + n.Height/2}
}

// EdgePoint returns the point on n's boundary where the ray from n's center
// toward `toward` exits the shape. The boundary curve is chosen by the
// node's visual family: rectangular kinds use the box edge, elliptical kinds
// the ellipse. Unknown kinds fall back to the center, which still yields a
// drawable (if less pretty) connector.
func EdgePoint(n Node, toward Point) Point {
	c := Center(n)
	hw := n.Width / 2
	hh := n.Height / 2

	switch n.Type.Family() {
	case FamilyRectangular:
		return edgePointOnRect(c, hw, hh, toward)
	case FamilyElliptical:
		return edgePointOnEllipse(c, hw, hh, toward)
	default:
		return c
	}
}

// edgePointOnRect computes the exit point of the ray center→toward on an
// axis-aligned rectangle of the given half-extents, via the standard
// minimum-of-axis-ratios parametric method.
func edgePointOnRect(center Point, hw, hh float64, toward Point) Point {
	dx := toward.X - center.X
	dy := toward.Y - center.Y
	if dx == 0 && dy == 0 {
		return center
	}

	tx := hw / math.Max(math.Abs(dx), minDenom)
	ty := hh / math.Max(math.Abs(dy), minDenom)
	t := math.Min(tx, ty)

	return Point{X: center.X + dx*t, Y: center.Y + dy*t}
}

// edgePointOnEllipse computes the exit point of the ray center→toward on an
// ellipse of the given half-extents by scaling the direction vector with
// 1/sqrt(dx²/hw² + dy²/hh²).
func edgePointOnEllipse(center Point, hw, hh float64, toward Point) Point {
	dx := toward.X - center.X
	dy := toward.Y - center.Y
	if dx == 0 && dy == 0 {
		return center
	}

	hw = math.Max(hw, minDenom)
	hh = math.Max(hh, minDenom)
	norm := math.Sqrt(dx*dx/(hw*hw) + dy*dy/(hh*hh))
	t := 1 / math.Max(norm, minDenom)

	return Point{X: center.X + dx*t, Y: center.Y + dy*t}
}
