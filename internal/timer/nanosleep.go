package timer

/// SleepHandle_t tracks one in-flight nanosleep: natural expiry sets
/// Fired via the scheduled callback; Interrupt models early wake by
/// signal delivery, per spec.md §4.6: "early wake (signal delivery)
/// returns -EINTR with remaining time; natural expiry returns zeros."
type SleepHandle_t struct {
	clock   *Clock_t
	eventID int
	fired   bool
}

/// Nanosleep schedules h to fire after ticks, matching the task being
/// put SLEEPING by the caller and a timer event set to wake it.
func (c *Clock_t) Nanosleep(ticks uint64) *SleepHandle_t {
	h := &SleepHandle_t{clock: c}
	h.eventID = c.Schedule(ticks, func() { h.fired = true })
	return h
}

/// Fired reports whether the sleep ran its full course.
func (h *SleepHandle_t) Fired() bool { return h.fired }

/// Interrupt cancels a still-pending sleep early, returning the ticks
/// that remained and true. If the sleep already fired naturally, it
/// returns (0, false) and the caller should report natural expiry
/// instead of EINTR.
func (h *SleepHandle_t) Interrupt() (remaining uint64, interrupted bool) {
	if h.fired {
		return 0, false
	}
	remaining, ok := h.clock.Cancel(h.eventID)
	if !ok {
		// fired between the Fired() check and here is impossible since
		// Tick runs callbacks synchronously before returning; ok==false
		// here means it already fired.
		return 0, false
	}
	return remaining, true
}
