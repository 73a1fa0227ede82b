package fixedpoint

import "encoding/json"

type decimalJSON struct {
	Exact    string `json:"exact"`
	Decimals uint8  `json:"decimals"`
	Value    string `json:"value,omitempty"`
}

// MarshalJSON encodes the exact integer and scale, plus a readable value.
func (d Decimal) MarshalJSON() ([]byte, error) {
	return json.Marshal(decimalJSON{
		Exact:    d.int().String(),
		Decimals: d.decimals,
		Value:    d.String(),
	})
}

// UnmarshalJSON decodes the exact integer and scale; the readable value is ignored.
func (d *Decimal) UnmarshalJSON(data []byte) error {
	var raw decimalJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromExact(raw.Exact, raw.Decimals)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
