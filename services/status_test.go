package services

import "testing"

func TestClassifyOccupancy(t *testing.T) {
	testCases := []struct {
		name     string
		count    *int
		full     int
		medium   int
		expected string
	}{
		{
			name:     "Absent count is unknown",
			count:    nil,
			full:     50,
			medium:   20,
			expected: StatusUnknown,
		},
		{
			name:     "Zero is a confirmed low, not unknown",
			count:    intPtr(0),
			full:     50,
			medium:   20,
			expected: StatusLow,
		},
		{
			name:     "Below medium threshold is low",
			count:    intPtr(19),
			full:     50,
			medium:   20,
			expected: StatusLow,
		},
		{
			name:     "Exactly medium threshold is medium",
			count:    intPtr(20),
			full:     50,
			medium:   20,
			expected: StatusMedium,
		},
		{
			name:     "Between thresholds is medium",
			count:    intPtr(49),
			full:     50,
			medium:   20,
			expected: StatusMedium,
		},
		{
			name:     "Exactly full threshold is full",
			count:    intPtr(50),
			full:     50,
			medium:   20,
			expected: StatusFull,
		},
		{
			name:     "Above full threshold is full",
			count:    intPtr(200),
			full:     50,
			medium:   20,
			expected: StatusFull,
		},
		{
			// Inverted thresholds are not rejected; the first matching
			// branch wins top-down.
			name:     "Inverted thresholds, count above both",
			count:    intPtr(30),
			full:     10,
			medium:   20,
			expected: StatusFull,
		},
		{
			name:     "Inverted thresholds, count between",
			count:    intPtr(15),
			full:     20,
			medium:   10,
			expected: StatusMedium,
		},
	}

	for _, tc := range testCases {
		if got := ClassifyOccupancy(tc.count, tc.full, tc.medium); got != tc.expected {
			t.Errorf("%s: expected %s, got %s", tc.name, tc.expected, got)
		}
	}
}
