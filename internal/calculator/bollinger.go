package calculator

// Bands are Bollinger Bands evaluated at the last close.
type Bands struct {
	Middle float64
	Upper  float64
	Lower  float64
}

// Bollinger computes SMA(period) ± mult × population stddev(period).
func Bollinger(closes []float64, period int, mult float64) (Bands, error) {
	mid, err := SMA(closes, period)
	if err != nil {
		return Bands{}, err
	}
	sd, err := StdDev(closes, period)
	if err != nil {
		return Bands{}, err
	}
	return Bands{
		Middle: mid,
		Upper:  mid + mult*sd,
		Lower:  mid - mult*sd,
	}, nil
}
