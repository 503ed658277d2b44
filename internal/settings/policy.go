package settings

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
)

// Policy is an immutable snapshot of the enforcement configuration.
// Engines receive it by value so a single evaluation pass is
// deterministic even if an admin updates settings mid-run.
type Policy struct {
	AllowConfigOverrun     bool
	GracePercent           float64
	GraceBytes             int64
	TimeExpiryGraceMinutes int
	SyncIntervalMinutes    int
	ResetCooldown          time.Duration
}

// LoadPolicy builds a Policy from the current settings snapshot,
// applying defaults and clamping the sync interval to its bounds.
func LoadPolicy() Policy {
	p := Policy{
		AllowConfigOverrun:     DefaultAllowConfigOverrun,
		GracePercent:           DefaultAutoDisableGracePercent,
		GraceBytes:             DefaultAutoDisableGraceBytes,
		TimeExpiryGraceMinutes: DefaultTimeExpiryGraceMinutes,
		SyncIntervalMinutes:    DefaultUsageSyncIntervalMinutes,
		ResetCooldown:          DefaultResetCooldown,
	}

	if raw, ok := DBConfigValue(AllowConfigOverrunKey); ok {
		if parsed, okParse := parseConfigBool(raw); okParse {
			p.AllowConfigOverrun = parsed
		}
	}
	if raw, ok := DBConfigValue(AutoDisableGracePercentKey); ok {
		if parsed, okParse := parseConfigFloat(raw); okParse && parsed >= 0 {
			p.GracePercent = parsed
		}
	}
	if raw, ok := DBConfigValue(AutoDisableGraceBytesKey); ok {
		if parsed, okParse := parseConfigInt(raw); okParse && parsed >= 0 {
			p.GraceBytes = int64(parsed)
		}
	}
	if raw, ok := DBConfigValue(TimeExpiryGraceMinutesKey); ok {
		if parsed, okParse := parseConfigInt(raw); okParse && parsed >= 0 {
			p.TimeExpiryGraceMinutes = parsed
		}
	}
	if raw, ok := DBConfigValue(UsageSyncIntervalMinutesKey); ok {
		if parsed, okParse := parseConfigInt(raw); okParse {
			p.SyncIntervalMinutes = parsed
		}
	}
	if raw, ok := DBConfigValue(ResetCooldownHoursKey); ok {
		if parsed, okParse := parseConfigInt(raw); okParse && parsed >= 0 {
			p.ResetCooldown = time.Duration(parsed) * time.Hour
		}
	}

	p.SyncIntervalMinutes = ClampSyncInterval(p.SyncIntervalMinutes)
	return p
}

// ClampSyncInterval bounds a sync interval to the allowed minute range.
func ClampSyncInterval(minutes int) int {
	if minutes < MinUsageSyncIntervalMinutes {
		return MinUsageSyncIntervalMinutes
	}
	if minutes > MaxUsageSyncIntervalMinutes {
		return MaxUsageSyncIntervalMinutes
	}
	return minutes
}

// parseConfigInt extracts an integer from a raw JSON setting value.
// Values may be stored as numbers, numeric strings, or wrapped in a
// {"value": ...} object by older admin UIs.
func parseConfigInt(raw json.RawMessage) (int, bool) {
	raw = trimRawSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var n int
	if errUnmarshal := json.Unmarshal(raw, &n); errUnmarshal == nil {
		return n, true
	}
	if f, ok := parseConfigFloat(raw); ok {
		return int(math.Round(f)), true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.Atoi(strings.TrimSpace(s))
		if errParse == nil {
			return parsed, true
		}
	}
	if inner, ok := unwrapConfigValue(raw); ok {
		return parseConfigInt(inner)
	}
	return 0, false
}

// parseConfigFloat extracts a float from a raw JSON setting value.
func parseConfigFloat(raw json.RawMessage) (float64, bool) {
	raw = trimRawSpace(raw)
	if len(raw) == 0 {
		return 0, false
	}
	var f float64
	if errUnmarshal := json.Unmarshal(raw, &f); errUnmarshal == nil {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		parsed, errParse := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if errParse == nil && !math.IsNaN(parsed) && !math.IsInf(parsed, 0) {
			return parsed, true
		}
	}
	if inner, ok := unwrapConfigValue(raw); ok {
		return parseConfigFloat(inner)
	}
	return 0, false
}

// parseConfigBool extracts a boolean from a raw JSON setting value.
func parseConfigBool(raw json.RawMessage) (bool, bool) {
	raw = trimRawSpace(raw)
	if len(raw) == 0 {
		return false, false
	}
	var b bool
	if errUnmarshal := json.Unmarshal(raw, &b); errUnmarshal == nil {
		return b, true
	}
	var s string
	if errUnmarshal := json.Unmarshal(raw, &s); errUnmarshal == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "true", "1", "on":
			return true, true
		case "false", "0", "off":
			return false, true
		}
	}
	if inner, ok := unwrapConfigValue(raw); ok {
		return parseConfigBool(inner)
	}
	return false, false
}

func unwrapConfigValue(raw json.RawMessage) (json.RawMessage, bool) {
	var wrapper struct {
		Value json.RawMessage `json:"value"`
	}
	if errUnmarshal := json.Unmarshal(raw, &wrapper); errUnmarshal == nil && len(wrapper.Value) > 0 {
		return wrapper.Value, true
	}
	return nil, false
}

func trimRawSpace(input json.RawMessage) json.RawMessage {
	start := 0
	end := len(input)
	for start < end && input[start] <= ' ' {
		start++
	}
	for end > start && input[end-1] <= ' ' {
		end--
	}
	return input[start:end]
}
