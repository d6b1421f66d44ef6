package indicator

import "math"

// SMA calculates Simple Moving Average aligned to prices.
// The first period-1 values are NaN.
func SMA(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period <= 0 || len(prices) < period {
		return result
	}

	// Calculate first SMA
	var sum float64
	for i := 0; i < period; i++ {
		sum += prices[i]
	}
	result[period-1] = sum / float64(period)

	// Rolling calculation
	for i := period; i < len(prices); i++ {
		sum = sum - prices[i-period] + prices[i]
		result[i] = sum / float64(period)
	}

	return result
}

// EMA calculates the recursive Exponential Moving Average with smoothing
// 2/(span+1), seeded with the first price so every index has a value.
func EMA(prices []float64, span int) []float64 {
	result := nanSlice(len(prices))
	if span <= 0 || len(prices) == 0 {
		return result
	}

	alpha := 2.0 / float64(span+1)
	ema := prices[0]
	result[0] = ema
	for i := 1; i < len(prices); i++ {
		ema = alpha*prices[i] + (1-alpha)*ema
		result[i] = ema
	}

	return result
}

// MACD returns the MACD line (EMA fast - EMA slow), its signal line and the
// histogram.
func MACD(prices []float64, fast, slow, signal int) (line, sig, hist []float64) {
	fastEMA := EMA(prices, fast)
	slowEMA := EMA(prices, slow)

	line = make([]float64, len(prices))
	for i := range prices {
		line[i] = fastEMA[i] - slowEMA[i]
	}
	sig = EMA(line, signal)

	hist = make([]float64, len(prices))
	for i := range prices {
		hist[i] = line[i] - sig[i]
	}
	return line, sig, hist
}

// RSI calculates the Relative Strength Index over close-to-close changes,
// averaging gains and losses with a bias-corrected exponential mean of
// center of mass period-1. Values before period changes are NaN.
func RSI(prices []float64, period int) []float64 {
	result := nanSlice(len(prices))
	if period <= 0 || len(prices) <= period {
		return result
	}

	decay := 1 - 1/float64(period)
	var upNum, downNum, den float64
	for i := 1; i < len(prices); i++ {
		delta := prices[i] - prices[i-1]
		up, down := math.Max(delta, 0), math.Max(-delta, 0)

		upNum = up + decay*upNum
		downNum = down + decay*downNum
		den = 1 + decay*den

		if i < period {
			continue
		}
		rs := (upNum / den) / (downNum / den)
		result[i] = 100 - 100/(1+rs)
	}

	return result
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}
