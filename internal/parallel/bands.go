package parallel

// minBandRows keeps bands large enough that scheduling cost stays below the
// per-pixel shader cost.
const minBandRows = 8

// Band is a half-open row range [Y0, Y1).
type Band struct {
	Y0, Y1 int
}

// SplitRows divides height rows into at most parts contiguous bands of at
// least minBandRows rows each. Bands cover [0, height) in order.
func SplitRows(height, parts int) []Band {
	if height <= 0 {
		return nil
	}
	if parts < 1 {
		parts = 1
	}
	if maxParts := (height + minBandRows - 1) / minBandRows; parts > maxParts {
		parts = maxParts
	}
	bands := make([]Band, 0, parts)
	rows := height / parts
	extra := height % parts
	y := 0
	for i := range parts {
		n := rows
		if i < extra {
			n++
		}
		bands = append(bands, Band{Y0: y, Y1: y + n})
		y += n
	}
	return bands
}

// ForRows runs fn over every band of height rows using pool, and waits.
// A nil pool runs fn once over the whole range on the calling goroutine.
func ForRows(pool *WorkerPool, height int, fn func(b Band)) {
	if height <= 0 {
		return
	}
	if pool == nil {
		fn(Band{Y0: 0, Y1: height})
		return
	}
	bands := SplitRows(height, pool.Workers()*2)
	work := make([]func(), len(bands))
	for i, b := range bands {
		work[i] = func() { fn(b) }
	}
	pool.ExecuteAll(work)
}
