package runloop

// LoopWarningThreshold is the number of consecutive identical tool names
// after which the detector reports repetition.
const LoopWarningThreshold = 3

// LoopDetector tracks consecutive identical tool invocations within one
// run. It raises a warning signal only; breaking out of a pathological loop
// is left to the iteration ceiling.
type LoopDetector struct {
	lastTool    string
	consecutive int
}

// Track records one dispatched tool name. A different name resets the
// streak to 1.
func (d *LoopDetector) Track(name string) {
	if name == d.lastTool {
		d.consecutive++
		return
	}
	d.lastTool = name
	d.consecutive = 1
}

// Repeating reports whether the current streak has reached the warning
// threshold.
func (d *LoopDetector) Repeating() bool {
	return d.consecutive >= LoopWarningThreshold
}

// Count returns the current streak length.
func (d *LoopDetector) Count() int {
	return d.consecutive
}

// Reset clears the detector state.
func (d *LoopDetector) Reset() {
	d.lastTool = ""
	d.consecutive = 0
}
