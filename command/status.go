package command

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// Status is what the controller publishes on its status topic after
// most commands.
//
// Example: {"status":"online","read_period_minutes":1,"solenoid_state":false,
// "solenoid_enabled":true,"power_save_enabled":true,"power_save_mode":"auto",
// "uptime_seconds":1700000000,"timestamp":1700000000000,"datetime":"2023-11-14 22:13:20"}
//
// A restart is acknowledged with {"message":"Restarting ESP32 in 3 seconds..."}
type Status struct {
	Status            *string    `json:"status"`
	ReadPeriodMinutes *int       `json:"read_period_minutes"`
	SolenoidState     *bool      `json:"solenoid_state"`
	SolenoidEnabled   *bool      `json:"solenoid_enabled"`
	PowerSaveEnabled  *bool      `json:"power_save_enabled"`
	PowerSaveMode     *PowerMode `json:"power_save_mode"`
	UptimeSeconds     *int64     `json:"uptime_seconds"`
	Timestamp         *int64     `json:"timestamp"`
	Datetime          *string    `json:"datetime"`
	Message           *string    `json:"message"`
}

func (s *Status) empty() bool {
	return s.Status == nil && s.ReadPeriodMinutes == nil && s.SolenoidState == nil && s.SolenoidEnabled == nil &&
		s.PowerSaveEnabled == nil && s.PowerSaveMode == nil && s.UptimeSeconds == nil && s.Timestamp == nil &&
		s.Datetime == nil && s.Message == nil
}

// ParseStatus decodes a status reply. Unknown fields are tolerated,
// newer firmware adds them, but at least one known field must be
// present.
func ParseStatus(b []byte) (*Status, error) {
	var s Status
	err := json.Unmarshal(b, &s)
	if err != nil {
		return nil, err
	}
	if s.empty() {
		return nil, errors.New("no status fields set")
	}
	if s.ReadPeriodMinutes != nil && (*s.ReadPeriodMinutes < READ_PERIOD_MIN_MINUTES || *s.ReadPeriodMinutes > READ_PERIOD_MAX_MINUTES) {
		return nil, fmt.Errorf("read period out of range: %d", *s.ReadPeriodMinutes)
	}
	return &s, nil
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// Summary describes s on one line, with the device timestamp shown in
// loc.
func (s *Status) Summary(loc *time.Location) string {
	var parts []string
	if s.Message != nil {
		parts = append(parts, *s.Message)
	}
	if s.Status != nil {
		parts = append(parts, "status "+*s.Status)
	}
	if s.ReadPeriodMinutes != nil {
		parts = append(parts, fmt.Sprintf("read period %d min", *s.ReadPeriodMinutes))
	}
	if s.SolenoidState != nil {
		parts = append(parts, "solenoid "+onOff(*s.SolenoidState))
	}
	if s.SolenoidEnabled != nil && !*s.SolenoidEnabled {
		parts = append(parts, "solenoid disabled")
	}
	if s.PowerSaveEnabled != nil {
		ps := "power save " + onOff(*s.PowerSaveEnabled)
		if s.PowerSaveMode != nil {
			ps += fmt.Sprintf(" (%v)", *s.PowerSaveMode)
		}
		parts = append(parts, ps)
	}
	if s.Timestamp != nil {
		parts = append(parts, "at "+time.UnixMilli(*s.Timestamp).In(loc).Format("2006-01-02 15:04:05 MST"))
	} else if s.Datetime != nil {
		parts = append(parts, "at "+*s.Datetime)
	}
	return strings.Join(parts, ", ")
}
