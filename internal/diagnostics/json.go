package diagnostics

import (
	"encoding/json"
	"math"
)

// paramSummaryJSON is the wire form of ParamSummary. Statistics that are not
// finite, such as R-hat from a single draw, are written as null.
type paramSummaryJSON struct {
	Name     string   `json:"name"`
	Mean     *float64 `json:"mean"`
	SD       *float64 `json:"sd"`
	HDILow   *float64 `json:"hdi_low"`
	HDIHigh  *float64 `json:"hdi_high"`
	MCSEMean *float64 `json:"mcse_mean"`
	ESSBulk  *float64 `json:"ess_bulk"`
	ESSTail  *float64 `json:"ess_tail"`
	RHat     *float64 `json:"r_hat"`
}

// MarshalJSON encodes non-finite statistics as null.
func (s ParamSummary) MarshalJSON() ([]byte, error) {
	return json.Marshal(paramSummaryJSON{
		Name:     s.Name,
		Mean:     finite(s.Mean),
		SD:       finite(s.SD),
		HDILow:   finite(s.HDILow),
		HDIHigh:  finite(s.HDIHigh),
		MCSEMean: finite(s.MCSEMean),
		ESSBulk:  finite(s.ESSBulk),
		ESSTail:  finite(s.ESSTail),
		RHat:     finite(s.RHat),
	})
}

// UnmarshalJSON decodes null statistics as NaN.
func (s *ParamSummary) UnmarshalJSON(data []byte) error {
	var w paramSummaryJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = ParamSummary{
		Name:     w.Name,
		Mean:     orNaN(w.Mean),
		SD:       orNaN(w.SD),
		HDILow:   orNaN(w.HDILow),
		HDIHigh:  orNaN(w.HDIHigh),
		MCSEMean: orNaN(w.MCSEMean),
		ESSBulk:  orNaN(w.ESSBulk),
		ESSTail:  orNaN(w.ESSTail),
		RHat:     orNaN(w.RHat),
	}
	return nil
}

func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

func orNaN(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}
