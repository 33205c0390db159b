package world

import "slices"

// tick runs the periodic touch detection for bricks and bots that have
// touch observers.
func (w *World) tick() {
	if len(w.players) == 0 {
		return
	}
	for _, b := range slices.Clone(w.bricks) {
		if b.watchesTouch() {
			b.detectTouch(w.players)
		}
	}
	for _, p := range slices.Clone(w.players) {
		for _, b := range slices.Clone(p.LocalBricks) {
			if b.watchesTouch() {
				b.detectTouch(nil)
			}
		}
	}
	for _, b := range slices.Clone(w.bots) {
		if b.Touching.Len() > 0 {
			b.detectTouch(w.players)
		}
	}
}
