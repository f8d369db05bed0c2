package algorithms

import (
	"github.com/pkg/errors"
)

// floatParam reads a numeric parameter; sliders deliver float64 but
// programmatic callers often pass ints.
func floatParam(params map[string]interface{}, name string, def float64) float64 {
	val, ok := params[name]
	if !ok {
		return def
	}
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	}
	return def
}

func intParam(params map[string]interface{}, name string, def int) int {
	return int(floatParam(params, name, float64(def)))
}

func boolParam(params map[string]interface{}, name string, def bool) bool {
	if v, ok := params[name].(bool); ok {
		return v
	}
	return def
}

func rangeParam(params map[string]interface{}, name string, lo, hi float64) error {
	if _, ok := params[name]; !ok {
		return nil
	}
	v := floatParam(params, name, lo-1)
	if v < lo || v > hi {
		return errors.Errorf("%s must be between %g and %g", name, lo, hi)
	}
	return nil
}

func modeParam(params map[string]interface{}, name string, def ThresholdMode) (ThresholdMode, error) {
	val, ok := params[name]
	if !ok {
		return def, nil
	}
	switch v := val.(type) {
	case ThresholdMode:
		return v, nil
	case string:
		return ParseThresholdMode(v)
	}
	return def, errors.Errorf("%s must be a threshold mode name", name)
}
