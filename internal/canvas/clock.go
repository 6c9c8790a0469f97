package canvas

import (
	"time"

	"pin/internal/color"
)

func wallClockSeconds() int64 { return time.Now().Unix() }

func colorFromIndex(i int) (color.Color, bool) { return color.FromIndex(i) }
