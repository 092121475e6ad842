package enums

import "fmt"

// SettingValueType discriminates how a raw setting value is parsed.
type SettingValueType string

const (
	SettingValueTypeString  SettingValueType = "string"
	SettingValueTypeNumber  SettingValueType = "number"
	SettingValueTypeBoolean SettingValueType = "boolean"
	SettingValueTypeJSON    SettingValueType = "json"
)

var validSettingValueTypes = []SettingValueType{
	SettingValueTypeString,
	SettingValueTypeNumber,
	SettingValueTypeBoolean,
	SettingValueTypeJSON,
}

// String implements fmt.Stringer.
func (s SettingValueType) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettingValueType.
func (s SettingValueType) IsValid() bool {
	for _, candidate := range validSettingValueTypes {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettingValueType converts raw input into a SettingValueType.
func ParseSettingValueType(value string) (SettingValueType, error) {
	for _, candidate := range validSettingValueTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid setting value type %q", value)
}
