package world

import "math"

// Vector3 is a point or size in world space.
type Vector3 struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
	Z float32 `json:"z"`
}

// Vec constructs a Vector3.
func Vec(x, y, z float32) Vector3 {
	return Vector3{X: x, Y: y, Z: z}
}

// Distance returns the euclidean distance between v and o.
func (v Vector3) Distance(o Vector3) float64 {
	return math.Sqrt(v.distanceSq(o))
}

func (v Vector3) distanceSq(o Vector3) float64 {
	dx := float64(v.X - o.X)
	dy := float64(v.Y - o.Y)
	dz := float64(v.Z - o.Z)
	return dx*dx + dy*dy + dz*dz
}
