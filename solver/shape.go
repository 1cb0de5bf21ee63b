package solver

import "github.com/go-gl/mathgl/mgl32"

type ShapeKind int

const (
	ShapeBox ShapeKind = iota
	ShapeCircle
	// ShapeList holds children that each carry their own filter word.
	ShapeList
	// ShapeWrapper wraps a single child, like a bounding volume tree.
	ShapeWrapper
)

func (k ShapeKind) String() string {
	switch k {
	case ShapeBox:
		return "box"
	case ShapeCircle:
		return "circle"
	case ShapeList:
		return "list"
	case ShapeWrapper:
		return "wrapper"
	default:
		return "unknown"
	}
}

// Shape is the collision geometry attached to a body.
type Shape interface {
	Kind() ShapeKind
	Children() []Shape
	ChildFilterInfo(i int) uint32
	SetChildFilterInfo(i int, info uint32)
	MassProperties(mass float32) MassProperties
	Aabb(transform mgl32.Mat4) (min, max mgl32.Vec3)
}
