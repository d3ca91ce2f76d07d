package attendance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/warp/attendance-engine/generic"
)

// =============================================================================
// PUNCH NORMALIZER
// =============================================================================
// Vendor payload:
//
//   {"InOutPunchData": [
//     {"Empcode": "E001", "DateString": "05/03/2024", "INTime": "09:00", "OUTTime": "18:00"},
//     {"Empcode": 1002,   "DateString": "05/03/2024", "INTime": "--:--", "OUTTime": "18:00"}
//   ]}
//
// Rows missing either side of the pair are dropped, never half-recorded.

// NoPunch is the vendor's "no punch" sentinel.
const NoPunch = "--:--"

// PunchPayload is the vendor's JSON envelope.
type PunchPayload struct {
	InOutPunchData []VendorRow `json:"InOutPunchData"`
}

// VendorRow is one raw punch row.
type VendorRow struct {
	Empcode    Code   `json:"Empcode"`
	DateString string `json:"DateString"`
	INTime     string `json:"INTime"`
	OUTTime    string `json:"OUTTime"`
}

// Code accepts a JSON string or number.
type Code string

func (c *Code) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Code(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("Empcode: %w", err)
	}
	*c = Code(n.String())
	return nil
}

// NormalizePayload decodes an uploaded punch file and normalizes its rows.
func NormalizePayload(raw []byte) (*PunchSet, error) {
	var payload PunchPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, &generic.ParseError{Input: "upload", Layout: "biometric JSON", Err: err}
	}
	if len(payload.InOutPunchData) == 0 {
		return nil, &generic.ParseError{Input: "upload", Layout: "biometric JSON", Err: fmt.Errorf("InOutPunchData is missing or empty")}
	}
	return NormalizeRows(payload.InOutPunchData)
}

// NormalizeRows builds the (code, date) lookup. A malformed date or time
// fails the whole set so that no batch runs on half-understood input.
func NormalizeRows(rows []VendorRow) (*PunchSet, error) {
	set := NewPunchSet()
	for i, row := range rows {
		p, ok, err := normalizeRow(row)
		if err != nil {
			return nil, fmt.Errorf("punch row %d: %w", i, err)
		}
		if ok {
			set.Put(p)
		}
	}
	return set, nil
}

func normalizeRow(row VendorRow) (Punch, bool, error) {
	code := strings.TrimSpace(string(row.Empcode))
	if code == "" || strings.TrimSpace(row.DateString) == "" {
		return Punch{}, false, nil
	}
	if isNoPunch(row.INTime) || isNoPunch(row.OUTTime) {
		return Punch{}, false, nil
	}

	date, err := generic.ParseVendorDate(row.DateString)
	if err != nil {
		return Punch{}, false, err
	}
	in, err := generic.ParseClockTime(row.INTime)
	if err != nil {
		return Punch{}, false, err
	}
	out, err := generic.ParseClockTime(row.OUTTime)
	if err != nil {
		return Punch{}, false, err
	}

	inAt := date.At(in)
	return Punch{
		EmployeeCode: code,
		Date:         date,
		In:           inAt,
		Out:          generic.ApplyOvernightCorrection(inAt, date.At(out)),
	}, true, nil
}

func isNoPunch(s string) bool {
	s = strings.TrimSpace(s)
	return s == "" || s == NoPunch
}
