package compiler

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sukanihq/sukani/model"
)

// engineDateLayout matches the engine's variable date format.
const engineDateLayout = "2006-01-02T15:04:05.000-0700"

// CheckValue reports whether a variable's raw value parses under its
// declared type. It is advisory only: the compiler never coerces or
// rejects, so an operator can stage a half-typed value and fix it later.
// The preview surface uses the returned error to annotate the row.
func CheckValue(v model.PlanVariable) error {
	raw := strings.TrimSpace(v.Value)
	switch v.Type {
	case model.VarTypeString, "":
		return nil
	case model.VarTypeBoolean:
		if _, err := strconv.ParseBool(raw); err != nil {
			return fmt.Errorf("%q is not a boolean", v.Value)
		}
	case model.VarTypeInteger:
		if _, err := strconv.ParseInt(raw, 10, 32); err != nil {
			return fmt.Errorf("%q is not a 32-bit integer", v.Value)
		}
	case model.VarTypeLong:
		if _, err := strconv.ParseInt(raw, 10, 64); err != nil {
			return fmt.Errorf("%q is not a 64-bit integer", v.Value)
		}
	case model.VarTypeDouble:
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			return fmt.Errorf("%q is not a number", v.Value)
		}
	case model.VarTypeObject, model.VarTypeJSON:
		if !json.Valid([]byte(v.Value)) {
			return fmt.Errorf("value is not valid JSON")
		}
	case model.VarTypeDate:
		if _, err := time.Parse(engineDateLayout, raw); err != nil {
			return fmt.Errorf("%q is not a date in format %s", v.Value, engineDateLayout)
		}
	default:
		return fmt.Errorf("unknown variable type %q", v.Type)
	}
	return nil
}
