package backend

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Count decodes a backend counter leniently: JSON integers, floats
// (truncated toward zero), numeric strings and null (zero) are accepted.
// Anything else is a decode error.
type Count int

func (c *Count) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	if raw == "null" {
		*c = 0
		return nil
	}

	if strings.HasPrefix(raw, `"`) {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("invalid count %q", s)
		}
		*c = Count(n)
		return nil
	}

	var f float64
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("invalid count %s", raw)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > 1<<53 {
		return fmt.Errorf("count out of range: %s", raw)
	}
	*c = Count(int(f))
	return nil
}
