package command

import (
	"fmt"
)

type PowerMode int

const (
	PowerModeNormal     PowerMode = 0
	PowerModeLightSleep PowerMode = 1
	PowerModeAuto       PowerMode = 2
	PowerModeOutOfRange PowerMode = 3
)

func (m PowerMode) String() string {
	switch m {
	case PowerModeNormal:
		return "normal"
	case PowerModeLightSleep:
		return "light_sleep"
	case PowerModeAuto:
		return "auto"
	default:
		return fmt.Sprintf("UnknownPowerMode%d", int(m))
	}
}

func (m PowerMode) MarshalText() ([]byte, error) {
	if m < PowerModeNormal || m >= PowerModeOutOfRange {
		return nil, fmt.Errorf("PowerMode %d is invalid", int(m))
	}
	return []byte(m.String()), nil
}

func (m *PowerMode) UnmarshalText(b []byte) error {
	switch string(b) {
	case "normal":
		*m = PowerModeNormal
	case "light_sleep":
		*m = PowerModeLightSleep
	case "auto":
		*m = PowerModeAuto
	default:
		return fmt.Errorf("invalid power mode '%s'", string(b))
	}
	return nil
}
