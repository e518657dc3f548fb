package command

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
)

const (
	TOPIC_COMMANDS = "esp32/commands"
	TOPIC_CONFIG   = "esp32/config"
	TOPIC_STATUS   = "esp32/status"
	TOPIC_ALERTS   = "esp32/alerts"

	// Everything the controller publishes or is sent
	TOPIC_WILDCARD = "esp32/#"

	// The controller clamps read periods to this range
	READ_PERIOD_MIN_MINUTES = 1
	READ_PERIOD_MAX_MINUTES = 1440
)

// Name is a command verb understood by the controller.
type Name string

const (
	CmdSolenoidOn    Name = "solenoid_on"
	CmdSolenoidOff   Name = "solenoid_off"
	CmdPublishAll    Name = "publish_all"
	CmdSetReadPeriod Name = "set_read_period"
	CmdGetStatus     Name = "get_status"
	CmdRestart       Name = "restart"
	CmdPowerSaveOn   Name = "power_save_on"
	CmdPowerSaveOff  Name = "power_save_off"
	CmdSetPowerMode  Name = "set_power_mode"
	CmdPowerStats    Name = "power_stats"
)

// Payload is the JSON body sent on the commands topic.
//
// Example: {"command":"set_read_period","minutes":5}
type Payload struct {
	Command Name       `json:"command"`
	Minutes *int       `json:"minutes,omitempty"`
	Mode    *PowerMode `json:"mode,omitempty"`
}

func (p *Payload) Validate() error {
	switch p.Command {
	case CmdSolenoidOn, CmdSolenoidOff, CmdPublishAll, CmdGetStatus, CmdRestart, CmdPowerSaveOn, CmdPowerSaveOff, CmdPowerStats:
	case CmdSetReadPeriod:
		if p.Minutes == nil {
			return errors.New("set_read_period without minutes")
		}
		if *p.Minutes < READ_PERIOD_MIN_MINUTES || *p.Minutes > READ_PERIOD_MAX_MINUTES {
			return fmt.Errorf("read period %d minutes out of range", *p.Minutes)
		}
	case CmdSetPowerMode:
		if p.Mode == nil {
			return errors.New("set_power_mode without mode")
		}
		if *p.Mode < PowerModeNormal || *p.Mode >= PowerModeOutOfRange {
			return fmt.Errorf("PowerMode %d is invalid", *p.Mode)
		}
	default:
		return fmt.Errorf("unknown command '%s'", p.Command)
	}
	return nil
}

// Marshal returns the compact JSON for p. The controller matches
// commands with a substring search for "command":"<verb>", so there
// must be no whitespace.
func (p *Payload) Marshal() ([]byte, error) {
	err := p.Validate()
	if err != nil {
		return nil, err
	}
	return json.Marshal(p)
}
