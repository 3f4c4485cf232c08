package pricing

import "math"

// Round2 四舍五入到分
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// CeilDollar 向上取整到整元
func CeilDollar(v float64) float64 {
	return math.Ceil(v)
}

// HalfDollarUp 向上取整到半元
func HalfDollarUp(v float64) float64 {
	return math.Ceil(v*2) / 2
}
