// Package device describes the records served by the boiler controller API.
package device

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// StatusRecord is the current-state snapshot returned by api/getInfo.
type StatusRecord struct {
	SwVer   string  `json:"SwVer,omitempty"`
	Mode    Mode    `json:"Mode"`
	State   State   `json:"State"`
	Status  Status  `json:"Status"`
	Flame   int     `json:"Flame"`
	Fan     int     `json:"Fan"`
	Tset    int     `json:"Tset"`
	Tboiler int     `json:"Tboiler"`
	DHW     int     `json:"DHW"`
	TBMP    float64 `json:"TBMP"`
	CHPump  Flag    `json:"CHPump"`
	DHWPump Flag    `json:"DHWPump"`
	Power   int     `json:"Power"`
}

// HistoryRecord is one sample returned by api/getStats.
type HistoryRecord struct {
	Date           string  `json:"Date"`
	Tset           float64 `json:"Tset"`
	Tboiler        float64 `json:"Tboiler"`
	TDS18          float64 `json:"TDS18"`
	DHW            float64 `json:"DHW"`
	KTYPE          float64 `json:"KTYPE"`
	TBMP           float64 `json:"TBMP"`
	Flame          float64 `json:"Flame"`
	Power          int     `json:"Power"`
	ThermostatStop Flag    `json:"ThermostatStop"`
}

// ConsumptionRecord is one hourly bucket returned by api/getConsumptionStats.
type ConsumptionRecord struct {
	Timestamp  string          `json:"Timestamp"`
	FFWorkTime decimal.Decimal `json:"FFWorkTime"`
}

// MonthlyRecord is one month returned by api/getConsumptionByMonth. Both
// fields are optional on the wire.
type MonthlyRecord struct {
	YearMonth *string          `json:"yr_mon"`
	FFWork    *decimal.Decimal `json:"FFWork"`
}

// Flag decodes booleans the controller may send as true/false, 0/1 or
// quoted variants of either.
type Flag bool

// UnmarshalJSON implements json.Unmarshaler.
func (f *Flag) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = false
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	switch raw {
	case "true", "1":
		*f = true
	case "false", "0", "":
		*f = false
	default:
		return fmt.Errorf("device: invalid flag %s", string(data))
	}
	return nil
}

// MarshalJSON implements json.Marshaler.
func (f Flag) MarshalJSON() ([]byte, error) {
	return json.Marshal(bool(f))
}
