package machine

// arrayIterCore walks a flat or heap array in order. Collecting one back
// into an array is zero-copy when the iterator was never advanced
// (spec §9's "array round-trips through an iterator without copying").
type arrayIterCore struct {
	heap     bool
	flatVals []uint64
	heapVals []Value
	pos      int
}

func newArrayIterCore(v Value) *arrayIterCore {
	switch a := v.(type) {
	case *ArrayFlat:
		return &arrayIterCore{heap: false, flatVals: a.Vals}
	case *ArrayHeap:
		return &arrayIterCore{heap: true, heapVals: a.Vals}
	default:
		return &arrayIterCore{}
	}
}

func (c *arrayIterCore) IsHeap() bool { return c.heap }

func (c *arrayIterCore) Next() (uint64, Value, bool, error) {
	if c.heap {
		if c.pos >= len(c.heapVals) {
			return 0, nil, false, nil
		}
		v := c.heapVals[c.pos]
		c.pos++
		return 0, v, true, nil
	}
	if c.pos >= len(c.flatVals) {
		return 0, nil, false, nil
	}
	v := c.flatVals[c.pos]
	c.pos++
	return v, nil, true, nil
}

// collectUnread turns an arrayIterCore that was never advanced back into
// an array over the same backing slice instead of copying element by
// element; it reports false once any element has been read.
func (c *arrayIterCore) collectUnread() (Value, bool) {
	if c.pos != 0 {
		return nil, false
	}
	if c.heap {
		return &ArrayHeap{Vals: c.heapVals}, true
	}
	return &ArrayFlat{Vals: c.flatVals}, true
}

// rangeIterCore walks a half-open Int range: the start is included, the end
// excluded, and the direction is implied by the sign of end-start (spec §9
// resolves the `to` Open Question this way).
type rangeIterCore struct {
	cur, end int64
	step     int64
	done     bool
}

func newRangeIterCore(start, end int64) *rangeIterCore {
	step := int64(1)
	if end < start {
		step = -1
	}
	return &rangeIterCore{cur: start, end: end, step: step, done: start == end}
}

func (c *rangeIterCore) IsHeap() bool { return false }

func (c *rangeIterCore) Next() (uint64, Value, bool, error) {
	if c.done {
		return 0, nil, false, nil
	}
	v := c.cur
	c.cur += c.step
	if c.cur == c.end {
		c.done = true
	}
	return uint64(v), nil, true, nil
}

// mapIterCore applies fn to each element of source as it's pulled. The
// output shape comes from fn's own declared return shape (a Closure's
// Chunk.RetType, or a NativeFunction's RetHeap), since the Map opcode
// itself carries no operand naming it.
type mapIterCore struct {
	th     *Thread
	fn     Value
	source anyIter
	heap   bool
}

func newMapIterCore(th *Thread, fn Value, source anyIter) *mapIterCore {
	return &mapIterCore{th: th, fn: fn, source: source, heap: fnReturnsHeap(fn)}
}

func (c *mapIterCore) IsHeap() bool { return c.heap }

func (c *mapIterCore) Next() (uint64, Value, bool, error) {
	var flatArgs []uint64
	var heapArgs []Value
	if c.source.IsHeap() {
		_, hv, ok, err := c.source.Next()
		if err != nil || !ok {
			return 0, nil, ok, err
		}
		heapArgs = []Value{hv}
	} else {
		fv, _, ok, err := c.source.Next()
		if err != nil || !ok {
			return 0, nil, ok, err
		}
		flatArgs = []uint64{fv}
	}
	flat, heap, isHeap, err := c.th.callValue(c.fn, flatArgs, heapArgs)
	if err != nil {
		return 0, nil, false, err
	}
	if isHeap != c.heap {
		c.heap = isHeap
	}
	return flat, heap, true, nil
}

// filterIterCore yields elements of source, in order, that satisfy pred.
type filterIterCore struct {
	th     *Thread
	pred   Value
	source anyIter
}

func newFilterIterCore(th *Thread, pred Value, source anyIter) *filterIterCore {
	return &filterIterCore{th: th, pred: pred, source: source}
}

func (c *filterIterCore) IsHeap() bool { return c.source.IsHeap() }

func (c *filterIterCore) Next() (uint64, Value, bool, error) {
	for {
		flat, heap, ok, err := c.source.Next()
		if err != nil || !ok {
			return 0, nil, ok, err
		}
		var flatArgs []uint64
		var heapArgs []Value
		if c.source.IsHeap() {
			heapArgs = []Value{heap}
		} else {
			flatArgs = []uint64{flat}
		}
		keepFlat, _, _, err := c.th.callValue(c.pred, flatArgs, heapArgs)
		if err != nil {
			return 0, nil, false, err
		}
		if keepFlat != 0 {
			return flat, heap, true, nil
		}
	}
}

// zipMapIterCore applies fn across the corresponding elements of several
// sources in lockstep, ending at the first source to run dry.
type zipMapIterCore struct {
	th      *Thread
	fn      Value
	sources []anyIter
	heap    bool
}

func newZipMapIterCore(th *Thread, fn Value, sources []anyIter) *zipMapIterCore {
	return &zipMapIterCore{th: th, fn: fn, sources: sources, heap: fnReturnsHeap(fn)}
}

func (c *zipMapIterCore) IsHeap() bool { return c.heap }

func (c *zipMapIterCore) Next() (uint64, Value, bool, error) {
	flatArgs := make([]uint64, 0, len(c.sources))
	heapArgs := make([]Value, 0, len(c.sources))
	for _, s := range c.sources {
		fv, hv, ok, err := s.Next()
		if err != nil || !ok {
			return 0, nil, ok, err
		}
		if s.IsHeap() {
			heapArgs = append(heapArgs, hv)
		} else {
			flatArgs = append(flatArgs, fv)
		}
	}
	flat, heap, isHeap, err := c.th.callValue(c.fn, flatArgs, heapArgs)
	if err != nil {
		return 0, nil, false, err
	}
	c.heap = isHeap
	return flat, heap, true, nil
}

// scanIterCore is the Reduce opcode's internal accumulator walk: spec §9
// names ScanIter as a running-total stream, but the closed bytecode set has
// no opcode that produces one standalone (only Reduce, which is
// scan-then-take-last) — so this core exists purely to be driven to
// completion by Reduce's handler, never reachable as a user-visible value.
type scanIterCore struct {
	th      *Thread
	fn      Value
	source  anyIter
	flatAcc uint64
	heapAcc Value
	accHeap bool
}

func newScanIterCore(th *Thread, fn Value, source anyIter, flatInit uint64, heapInit Value, initHeap bool) *scanIterCore {
	return &scanIterCore{th: th, fn: fn, source: source, flatAcc: flatInit, heapAcc: heapInit, accHeap: initHeap}
}

func (c *scanIterCore) IsHeap() bool { return c.accHeap }

func (c *scanIterCore) Next() (uint64, Value, bool, error) {
	fv, hv, ok, err := c.source.Next()
	if err != nil || !ok {
		return 0, nil, ok, err
	}
	flatArgs := make([]uint64, 0, 2)
	heapArgs := make([]Value, 0, 2)
	if c.accHeap {
		heapArgs = append(heapArgs, c.heapAcc)
	} else {
		flatArgs = append(flatArgs, c.flatAcc)
	}
	if c.source.IsHeap() {
		heapArgs = append(heapArgs, hv)
	} else {
		flatArgs = append(flatArgs, fv)
	}
	flat, heap, isHeap, err := c.th.callValue(c.fn, flatArgs, heapArgs)
	if err != nil {
		return 0, nil, false, err
	}
	c.accHeap = isHeap
	c.flatAcc = flat
	c.heapAcc = heap
	return flat, heap, true, nil
}

// fnReturnsHeap reports whether calling fn yields a heap-shaped result,
// without actually calling it, so an iterator core can be constructed
// before it's ever driven.
func fnReturnsHeap(fn Value) bool {
	switch f := fn.(type) {
	case *Closure:
		return f.Chunk.RetType.HeapShaped()
	case *NativeFunction:
		return f.RetHeap
	default:
		return false
	}
}
