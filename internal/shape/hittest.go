package shape

// Hit is the result of a successful hit test.
type Hit struct {
	Index Index

	// Local is the hit point relative to the bounding box min.
	Local Vec2
}

// BoundingBox returns the bounding box of shape i in framebuffer pixels.
func (s *Store) BoundingBox(i Index) (AABB, bool) {
	g, err := s.GeometryOf(i)
	if err != nil {
		return AABB{}, false
	}
	p, _ := s.positions.Get(uint32(i))
	return g.LocalBounds().Translate(p.Center), true
}

// HitTest reports whether p falls in the bounding box of shape i and
// returns p relative to the box min.
func (s *Store) HitTest(i Index, p Vec2) (Vec2, bool) {
	box, ok := s.BoundingBox(i)
	if !ok || !box.Contains(p) {
		return Vec2{}, false
	}
	return p.Sub(box.Min), true
}

// FindHovered returns the lowest-index shape containing p.
func (s *Store) FindHovered(p Vec2) (Hit, bool) {
	for i := range s.Len() {
		if local, ok := s.HitTest(Index(i), p); ok {
			return Hit{Index: Index(i), Local: local}, true
		}
	}
	return Hit{}, false
}
