package indicators

import (
	"github.com/markcheno/go-talib"

	"delphi/internal/domain/marketdata"
	"delphi/pkg/errors"
)

// OBVResult holds the latest On-Balance Volume reading and its short trend
type OBVResult struct {
	OBV   Value  `json:"obv"`
	Trend string `json:"trend,omitempty"` // rising, falling, or flat over the last 10 bars
}

// OBV computes On-Balance Volume. The trend compares the latest reading
// against 10 bars back with a 5 percent flat band.
func OBV(s *marketdata.Series) (OBVResult, error) {
	if s == nil {
		return OBVResult{}, errors.Wrap(errors.ErrInvalidInput, "obv: nil series")
	}

	var res OBVResult
	if s.Len() < 2 {
		return res, nil
	}

	values := talib.Obv(s.Closes(), s.Volumes())
	res.OBV = Some(round2(last(values)))

	if len(values) >= 10 {
		recent := values[len(values)-1]
		ago := values[len(values)-10]
		band := 0.05 * abs(ago)
		switch {
		case recent-ago > band:
			res.Trend = "rising"
		case ago-recent > band:
			res.Trend = "falling"
		default:
			res.Trend = "flat"
		}
	}
	return res, nil
}

// OBVSeries returns the raw cumulative On-Balance Volume aligned
// index-for-index with closes, or nil when the inputs are too short or
// mismatched.
func OBVSeries(closes, volumes []float64) []float64 {
	if len(closes) < 2 || len(closes) != len(volumes) {
		return nil
	}
	return talib.Obv(closes, volumes)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
