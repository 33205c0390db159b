package world

// PickSpawn returns a spawn point: the top centre of a random spawn brick,
// or a random spot above the baseplate when there are none.
func (w *World) PickSpawn() Vector3 {
	if n := len(w.spawns); n > 0 {
		b := w.spawns[w.rng.IntN(n)]
		return Vec(
			b.Position.X+b.Scale.X/2,
			b.Position.Y+b.Scale.Y/2,
			b.Position.Z+b.Scale.Z/2,
		)
	}
	half := int(w.env.BaseSize / 2)
	return Vec(
		float32(w.randomInt(-half, half)),
		float32(w.randomInt(-half, half)),
		float32(w.env.BaseSize)/2,
	)
}

// randomInt returns an integer in [min, max].
func (w *World) randomInt(min, max int) int {
	return min + w.rng.IntN(max-min+1)
}
