package cpsolver

import (
	"github.com/chewxy/math32"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/jakecoffman/cp"
	"github.com/milk9111/rigidphys/phys/filter"
	"github.com/milk9111/rigidphys/solver"
)

// Box is an axis-aligned box centered on the body origin. Depth only feeds
// the 3D mass properties; the simulation uses Width and Height.
type Box struct {
	Width  float32
	Height float32
	Depth  float32
}

func (b *Box) Kind() solver.ShapeKind         { return solver.ShapeBox }
func (b *Box) Children() []solver.Shape       { return nil }
func (b *Box) ChildFilterInfo(int) uint32     { return filter.AllCollide }
func (b *Box) SetChildFilterInfo(int, uint32) {}

func (b *Box) depth() float32 {
	if b.Depth <= 0 {
		return 1
	}
	return b.Depth
}

func (b *Box) MassProperties(mass float32) solver.MassProperties {
	w, h, d := b.Width, b.Height, b.depth()
	k := mass / 12
	return solver.MassProperties{
		Volume: w * h * d,
		InertiaDiagonal: mgl32.Vec3{
			k * (h*h + d*d),
			k * (w*w + d*d),
			float32(cp.MomentForBox(float64(mass), float64(w), float64(h))),
		},
	}
}

func (b *Box) Aabb(transform mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	half := mgl32.Vec3{b.Width / 2, b.Height / 2, b.depth() / 2}
	return transformedBounds(transform, half.Mul(-1), half)
}

// Circle is a disc in the simulation plane and a sphere for mass purposes.
type Circle struct {
	Radius float32
}

func (c *Circle) Kind() solver.ShapeKind         { return solver.ShapeCircle }
func (c *Circle) Children() []solver.Shape       { return nil }
func (c *Circle) ChildFilterInfo(int) uint32     { return filter.AllCollide }
func (c *Circle) SetChildFilterInfo(int, uint32) {}

func (c *Circle) MassProperties(mass float32) solver.MassProperties {
	r := float64(c.Radius)
	sphere := 2 * mass * c.Radius * c.Radius / 5
	return solver.MassProperties{
		Volume:          float32(cp.AreaForCircle(0, r)) * c.Radius * 4 / 3,
		InertiaDiagonal: mgl32.Vec3{sphere, sphere, float32(cp.MomentForCircle(float64(mass), 0, r, cp.Vector{}))},
	}
}

func (c *Circle) Aabb(transform mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	center := transform.Col(3).Vec3()
	r := mgl32.Vec3{c.Radius, c.Radius, c.Radius}
	return center.Sub(r), center.Add(r)
}

// List is a compound shape whose children may override the body filter.
type List struct {
	Items   []solver.Shape
	filters []uint32
}

func NewList(items ...solver.Shape) *List {
	l := &List{Items: items, filters: make([]uint32, len(items))}
	for i := range l.filters {
		l.filters[i] = filter.AllCollide
	}
	return l
}

func (l *List) Kind() solver.ShapeKind   { return solver.ShapeList }
func (l *List) Children() []solver.Shape { return l.Items }

func (l *List) ChildFilterInfo(i int) uint32 {
	if i < 0 || i >= len(l.filters) {
		return filter.AllCollide
	}
	return l.filters[i]
}

func (l *List) SetChildFilterInfo(i int, info uint32) {
	if i < 0 || i >= len(l.filters) {
		return
	}
	l.filters[i] = info
}

// MassProperties distributes mass over the children by volume.
func (l *List) MassProperties(mass float32) solver.MassProperties {
	var total float32
	props := make([]solver.MassProperties, len(l.Items))
	for i, item := range l.Items {
		props[i] = item.MassProperties(1)
		total += props[i].Volume
	}
	out := solver.MassProperties{Volume: total}
	if total <= 0 {
		return out
	}
	for i, item := range l.Items {
		share := mass * props[i].Volume / total
		p := item.MassProperties(share)
		out.CenterOfMass = out.CenterOfMass.Add(p.CenterOfMass.Mul(props[i].Volume / total))
		out.InertiaDiagonal = out.InertiaDiagonal.Add(p.InertiaDiagonal)
	}
	return out
}

func (l *List) Aabb(transform mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	if len(l.Items) == 0 {
		c := transform.Col(3).Vec3()
		return c, c
	}
	lo, hi := l.Items[0].Aabb(transform)
	for _, item := range l.Items[1:] {
		a, b := item.Aabb(transform)
		for k := 0; k < 3; k++ {
			lo[k] = math32.Min(lo[k], a[k])
			hi[k] = math32.Max(hi[k], b[k])
		}
	}
	return lo, hi
}

// Wrapper wraps a single child shape, the way a bounding volume tree wraps
// its collection.
type Wrapper struct {
	Child solver.Shape
}

func (w *Wrapper) Kind() solver.ShapeKind         { return solver.ShapeWrapper }
func (w *Wrapper) Children() []solver.Shape       { return []solver.Shape{w.Child} }
func (w *Wrapper) ChildFilterInfo(int) uint32     { return filter.AllCollide }
func (w *Wrapper) SetChildFilterInfo(int, uint32) {}

func (w *Wrapper) MassProperties(mass float32) solver.MassProperties {
	return w.Child.MassProperties(mass)
}

func (w *Wrapper) Aabb(transform mgl32.Mat4) (mgl32.Vec3, mgl32.Vec3) {
	return w.Child.Aabb(transform)
}

func transformedBounds(transform mgl32.Mat4, lo, hi mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	inf := math32.Inf(1)
	outLo := mgl32.Vec3{inf, inf, inf}
	outHi := outLo.Mul(-1)
	for i := 0; i < 8; i++ {
		corner := mgl32.Vec3{lo[0], lo[1], lo[2]}
		if i&1 != 0 {
			corner[0] = hi[0]
		}
		if i&2 != 0 {
			corner[1] = hi[1]
		}
		if i&4 != 0 {
			corner[2] = hi[2]
		}
		p := mgl32.TransformCoordinate(corner, transform)
		for k := 0; k < 3; k++ {
			outLo[k] = math32.Min(outLo[k], p[k])
			outHi[k] = math32.Max(outHi[k], p[k])
		}
	}
	return outLo, outHi
}

// buildShapes creates the cp shapes for s on body, shifted by -com. filters
// receives the override word for each leaf, or filter.AllCollide.
func buildShapes(body *cp.Body, s solver.Shape, com cp.Vector) ([]*cp.Shape, []uint32) {
	if s == nil {
		return nil, nil
	}
	switch v := s.(type) {
	case *Box:
		bb := cp.NewBBForExtents(com.Neg(), float64(v.Width)/2, float64(v.Height)/2)
		return []*cp.Shape{cp.NewBox2(body, bb, 0)}, []uint32{filter.AllCollide}
	case *Circle:
		return []*cp.Shape{cp.NewCircle(body, float64(v.Radius), com.Neg())}, []uint32{filter.AllCollide}
	}
	if s.Kind() != solver.ShapeList && s.Kind() != solver.ShapeWrapper {
		return nil, nil
	}
	var shapes []*cp.Shape
	var filters []uint32
	for i, item := range s.Children() {
		sub, subFilters := buildShapes(body, item, com)
		for k := range sub {
			if s.Kind() == solver.ShapeList {
				filters = append(filters, s.ChildFilterInfo(i))
			} else {
				filters = append(filters, subFilters[k])
			}
		}
		shapes = append(shapes, sub...)
	}
	return shapes, filters
}
