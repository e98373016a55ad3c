package aggregate

import (
	"fmt"

	"github.com/pkg/errors"
)

// monthIndex maps a YYYY-MM bucket onto a month counter so offsets are plain subtraction
func monthIndex(month string) (int, error) {
	var year, m int
	if _, err := fmt.Sscanf(month, "%4d-%2d", &year, &m); err != nil {
		return 0, errors.Wrapf(err, "invalid month bucket %q", month)
	}
	if m < 1 || m > 12 {
		return 0, errors.Errorf("invalid month bucket %q", month)
	}
	return year*12 + (m - 1), nil
}

func formatMonth(index int) string {
	return fmt.Sprintf("%04d-%02d", index/12, index%12+1)
}
