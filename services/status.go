package services

// Occupancy status labels shared by every read path.
const (
	StatusFull    = "full"
	StatusMedium  = "medium"
	StatusLow     = "low"
	StatusUnknown = "unknown"
)

// statusRank orders statuses by collection urgency. Unknown sorts last.
var statusRank = map[string]int{
	StatusFull:    0,
	StatusMedium:  1,
	StatusLow:     2,
	StatusUnknown: 3,
}

// ClassifyOccupancy maps a windowed detection count to an occupancy status.
// A nil count means no detections were observed in the window, which is
// distinct from a confirmed zero: nil classifies as unknown, zero as low.
// Branches are evaluated top-down; the thresholds are taken as supplied and
// an inverted pair is not rejected.
func ClassifyOccupancy(count *int, fullThreshold, mediumThreshold int) string {
	if count == nil {
		return StatusUnknown
	}
	if *count >= fullThreshold {
		return StatusFull
	}
	if *count >= mediumThreshold {
		return StatusMedium
	}
	return StatusLow
}
