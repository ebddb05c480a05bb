package indicator

import "math"

// Bands is a Bollinger envelope. Positions with fewer than Length samples
// behind them are NaN in all three series.
type Bands struct {
	Length int       `json:"length"`
	NumStd float64   `json:"num_std"`
	Mean   []float64 `json:"mean"`
	Upper  []float64 `json:"upper"`
	Lower  []float64 `json:"lower"`
}

// Bollinger computes the trailing mean and sample standard deviation over
// length bars and returns mean ± numStd·stddev.
func Bollinger(prices []float64, length int, numStd float64) (*Bands, error) {
	if length < 2 {
		return nil, &InsufficientDataError{Indicator: "bollinger", Need: 2, Have: length}
	}
	if err := requireLen("bollinger", len(prices), length); err != nil {
		return nil, err
	}

	b := &Bands{
		Length: length,
		NumStd: numStd,
		Mean:   make([]float64, len(prices)),
		Upper:  make([]float64, len(prices)),
		Lower:  make([]float64, len(prices)),
	}
	nan := math.NaN()
	for i := 0; i < length-1; i++ {
		b.Mean[i], b.Upper[i], b.Lower[i] = nan, nan, nan
	}

	for i := length - 1; i < len(prices); i++ {
		window := prices[i-length+1 : i+1]
		var sum float64
		for _, v := range window {
			sum += v
		}
		mean := sum / float64(length)

		var sq float64
		for _, v := range window {
			d := v - mean
			sq += d * d
		}
		sd := math.Sqrt(sq / float64(length-1))

		b.Mean[i] = mean
		b.Upper[i] = mean + numStd*sd
		b.Lower[i] = mean - numStd*sd
	}
	return b, nil
}
