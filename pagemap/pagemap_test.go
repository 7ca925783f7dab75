package pagemap

import (
	"math/rand"
	"testing"
)

func checkBeginEnd(t *testing.T, m *Map[int], expBegin uint64, expOk bool, expEnd uint64) {
	t.Helper()
	begin, ok := m.Begin()
	if ok != expOk || begin != expBegin {
		t.Errorf("Unexpected Begin() (%d, %v) != (%d, %v)", begin, ok, expBegin, expOk)
	}
	end := m.End()
	if end != expEnd {
		t.Errorf("Unexpected End() %d != %d", end, expEnd)
	}
}

func TestBeginEnd(t *testing.T) {
	var m Map[int]
	checkBeginEnd(t, &m, 0, false, 0)

	m.Set(1234, 123, 1)
	checkBeginEnd(t, &m, 1234, true, 1357)
	m.Set(1230, 4, 2)
	checkBeginEnd(t, &m, 1230, true, 1357)
	m.Set(1230, 1, 3)
	checkBeginEnd(t, &m, 1230, true, 1357)
	m.Set(1229, 1, 4)
	checkBeginEnd(t, &m, 1229, true, 1357)

	m.Set(1345, 5, 5)
	checkBeginEnd(t, &m, 1229, true, 1357)
	m.Set(1350, 9, 6)
	checkBeginEnd(t, &m, 1229, true, 1359)

	// Stress test
	const MaxOffset = 100000
	const MaxLength = 1000
	rnd := rand.New(rand.NewSource(1))
	begin, _ := m.Begin()
	end := m.End()
	for i := 0; i < 1000; i++ {
		off := uint64(rnd.Int63n(MaxOffset))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i)
		if off < begin {
			begin = off
		}
		if (off + length) > end {
			end = off + length
		}
		checkBeginEnd(t, &m, begin, true, end)
	}
}

func TestSetGet(t *testing.T) {
	const SpaceSize = 100000
	values := make([]int, SpaceSize)

	var m Map[int]
	const MaxLength = 1000
	const Iterations = 100
	rnd := rand.New(rand.NewSource(2))
	for i := 1; i < Iterations; i++ {
		off := uint64(rnd.Int63n(SpaceSize - MaxLength))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i)
		for j := uint64(0); j < length; j++ {
			values[off+j] = i
		}

		for j, v := range values {
			gv, ok := m.Get(uint64(j))
			if v == 0 {
				if ok {
					t.Errorf("Get(%d) expected !ok", j)
				}
			} else {
				if !ok || gv != v {
					t.Errorf("Get(%d) (%d, %v) != (%d, true)", j, gv, ok, v)
				}
			}
		}
	}
}

func TestNext(t *testing.T) {
	const SpaceSize = 100000
	values := make([]int, SpaceSize)

	var m Map[int]
	const MaxLength = 1000
	const Iterations = 100
	rnd := rand.New(rand.NewSource(3))
	for i := 1; i < Iterations; i++ {
		off := uint64(rnd.Int63n(SpaceSize - MaxLength))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i)
		for j := uint64(0); j < length; j++ {
			values[off+j] = i
		}
	}

	for i, v := range values {
		nextSet, ok := m.NextSet(uint64(i))
		nextUnset := m.NextUnset(uint64(i))
		if v == 0 {
			if nextUnset != uint64(i) {
				t.Errorf("NextUnset(%d) %d != %d", i, nextUnset, i)
			}

			// Find the next set byte in the model.
			j := uint64(i)
			for ; j < SpaceSize && values[j] == 0; j++ {
			}
			if j >= SpaceSize {
				if ok {
					t.Errorf("NextSet(%d) ok", i)
				}
			} else {
				if !ok || nextSet != j {
					t.Errorf("NextSet(%d) (%d, %v) != (%d, true)", i, nextSet, ok, j)
				}
			}
		} else {
			if !ok || nextSet != uint64(i) {
				t.Errorf("NextSet(%d) (%d, %v) != (%d, true)", i, nextSet, ok, i)
			}

			// Find the next unset byte in the model.
			j := uint64(i)
			for ; j < SpaceSize && values[j] != 0; j++ {
			}
			if nextUnset != j {
				t.Errorf("NextUnset(%d) %d != %d", i, nextUnset, j)
			}
		}
	}
}

func TestIterateRuns(t *testing.T) {
	const SpaceSize = 10000
	values := make([]int, SpaceSize)

	var m Map[int]
	const MaxLength = 1000
	const Iterations = 10
	rnd := rand.New(rand.NewSource(4))
	for i := 1; i < Iterations; i++ {
		off := uint64(rnd.Int63n(SpaceSize - MaxLength))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i)
		for j := uint64(0); j < length; j++ {
			values[off+j] = i
		}
	}

	for start := range values {
		prevEnd := uint64(0)
		setCount := uint64(0)
		m.IterateRuns(uint64(start), func(r Run[int]) bool {
			if r.Offset < uint64(start) {
				t.Errorf("Offset %d < start %d", r.Offset, start)
			}
			if r.Offset < prevEnd {
				t.Errorf("Offset %d < prevEnd %d", r.Offset, prevEnd)
			}

			for i := r.Offset; i < r.End(); i++ {
				if values[i] != r.Value {
					t.Errorf("values[%d] %d != r.Value %d", i, values[i], r.Value)
				}
			}

			prevEnd = r.End()
			setCount += r.Length
			return true
		})
		end := m.End()
		if uint64(start) < end && prevEnd != end {
			t.Errorf("IterateRuns end %d != End() %d", prevEnd, end)
		}

		actualSet := uint64(0)
		for i := start; i < SpaceSize; i++ {
			if values[i] != 0 {
				actualSet++
			}
		}
		if setCount != actualSet {
			t.Errorf("setCount %d != actual %d", setCount, actualSet)
		}
	}
}

func BenchmarkGet(b *testing.B) {
	const SpaceSize = 1000000
	var m Map[int]

	const MaxLength = 1000
	const Iterations = 1000
	rnd := rand.New(rand.NewSource(5))
	for i := 1; i < Iterations; i++ {
		off := uint64(rnd.Int63n(SpaceSize - MaxLength))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i)
	}

	randOffsets := make([]uint64, b.N)
	for i := range randOffsets {
		randOffsets[i] = uint64(rnd.Int63n(SpaceSize))
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		m.Get(randOffsets[i])
	}
}

func BenchmarkSet(b *testing.B) {
	const SpaceSize = 1000000
	const MaxLength = 512
	var m Map[int]
	rnd := rand.New(rand.NewSource(6))

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		off := uint64(rnd.Int63n(SpaceSize - MaxLength))
		length := uint64(rnd.Int63n(MaxLength) + 1)
		m.Set(off, length, i+1)
	}
}
