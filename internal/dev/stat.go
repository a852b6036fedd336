package dev

import (
	"bytes"
	"sort"
	"strconv"
	"sync"

	"github.com/google/pprof/profile"

	"beeos/internal/defs"
)

/// StatDevice_t is the D_STAT device: spec.md's expansion of §4.9,
/// serializing per-task scheduler tick/wait counts as a pprof
/// *profile.Profile so the same tool this reference module already
/// depends on (github.com/google/pprof) can visualize them.
type StatDevice_t struct {
	mu    sync.Mutex
	ticks map[int]int64
	waits map[int]int64
}

/// NewStatDevice creates an empty counter set.
func NewStatDevice() *StatDevice_t {
	return &StatDevice_t{ticks: make(map[int]int64), waits: make(map[int]int64)}
}

/// RecordTick accounts one scheduler tick charged to pid.
func (s *StatDevice_t) RecordTick(pid int) {
	s.mu.Lock()
	s.ticks[pid]++
	s.mu.Unlock()
}

/// RecordWait accounts one suspension (cond_wait/nanosleep/waitpid) by
/// pid, per spec.md §5's named suspension points.
func (s *StatDevice_t) RecordWait(pid int) {
	s.mu.Lock()
	s.waits[pid]++
	s.mu.Unlock()
}

func (s *StatDevice_t) snapshot() *profile.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	pids := make(map[int]bool)
	for pid := range s.ticks {
		pids[pid] = true
	}
	for pid := range s.waits {
		pids[pid] = true
	}
	sorted := make([]int, 0, len(pids))
	for pid := range pids {
		sorted = append(sorted, pid)
	}
	sort.Ints(sorted)

	p := &profile.Profile{
		SampleType: []*profile.ValueType{
			{Type: "ticks", Unit: "count"},
			{Type: "waits", Unit: "count"},
		},
		PeriodType: &profile.ValueType{Type: "ticks", Unit: "count"},
		Period:     1,
	}
	for _, pid := range sorted {
		p.Sample = append(p.Sample, &profile.Sample{
			Value: []int64{s.ticks[pid], s.waits[pid]},
			Label: map[string][]string{"pid": {strconv.Itoa(pid)}},
		})
	}
	return p
}

/// IO implements Handler_i for the D_STAT major: a read serializes the
/// current counters as an encoded pprof profile; writes are rejected.
func (s *StatDevice_t) IO(rw RW_t, off int64, buf []byte) (int, bool, defs.Err_t) {
	if rw != DEV_READ {
		return 0, false, defs.EACCES
	}
	var out bytes.Buffer
	if err := s.snapshot().Write(&out); err != nil {
		return 0, false, defs.EIO
	}
	encoded := out.Bytes()
	if off >= int64(len(encoded)) {
		return 0, true, 0
	}
	n := copy(buf, encoded[off:])
	return n, off+int64(n) >= int64(len(encoded)), 0
}
