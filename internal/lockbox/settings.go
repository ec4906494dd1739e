package lockbox

import (
	"fmt"
	"strings"
)

// Keys accepted by SetSetting.
const (
	SettingName                = "name"
	SettingServoOpenPosition   = "servo_open_position"
	SettingServoClosedPosition = "servo_closed_position"
)

// SettingKeys lists the keys accepted by SetSetting.
var SettingKeys = []string{
	SettingName,
	SettingServoOpenPosition,
	SettingServoClosedPosition,
}

// ValidateSetting checks a key/value pair before it is sent.
func ValidateSetting(key, value string) error {
	if value == "" {
		return fmt.Errorf("%w: empty value for %q", ErrInvalidSetting, key)
	}
	for _, k := range SettingKeys {
		if key == k {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown key %q (valid: %s)", ErrInvalidSetting, key, strings.Join(SettingKeys, ", "))
}

// ParseSetting splits "key=value" on the first '=' and validates the pair.
func ParseSetting(s string) (key, value string, err error) {
	key, value, _ = strings.Cut(s, "=")
	if err := ValidateSetting(key, value); err != nil {
		return "", "", err
	}
	return key, value, nil
}
