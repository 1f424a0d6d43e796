package analytics

import "math"

func clamp(value, lower, upper float64) float64 {
	if value < lower {
		return lower
	}
	if value > upper {
		return upper
	}
	return value
}

// Round2 rounds to two decimal places, the precision every stored score uses.
func Round2(value float64) float64 {
	return math.Round(value*100) / 100
}

func mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var total float64
	for _, v := range values {
		total += v
	}
	return total / float64(len(values))
}

// coefficientOfVariation returns the population stddev divided by the mean.
func coefficientOfVariation(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	avg := mean(values)
	if avg == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		diff := v - avg
		sum += diff * diff
	}
	return math.Sqrt(sum/float64(len(values))) / avg
}
