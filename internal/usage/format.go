package usage

import (
	"fmt"
	"math"
)

var byteUnits = []string{"KB", "MB", "GB", "TB"}

// FormatBytes renders a byte count for humans: "512 B", "1.50 KB", "2.00 GB".
func FormatBytes(b int64) string {
	if b < 1024 {
		return fmt.Sprintf("%d B", b)
	}
	v := float64(b)
	i := -1
	for {
		v /= 1024
		i++
		if v < 1024 || i == len(byteUnits)-1 {
			break
		}
	}
	return fmt.Sprintf("%.2f %s", v, byteUnits[i])
}

// Percent is used/limit as a whole percentage capped at 100.
func Percent(used, limit int64) int {
	if limit <= 0 || used <= 0 {
		return 0
	}
	return int(math.Min(100, math.Round(float64(used)/float64(limit)*100)))
}
