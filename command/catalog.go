package command

import (
	"strconv"
	"strings"

	"golang.org/x/exp/slices"
)

// Entry is one numbered menu choice.
type Entry struct {
	Key     string
	Name    string
	Payload Payload
}

type Catalog []Entry

func intp(i int) *int {
	return &i
}

func modep(m PowerMode) *PowerMode {
	return &m
}

// Default returns the menu. Keys run from 1 upwards with no gaps; 0
// is reserved for leaving the menu.
func Default() Catalog {
	return Catalog{
		{"1", "Turn solenoid on", Payload{Command: CmdSolenoidOn}},
		{"2", "Turn solenoid off", Payload{Command: CmdSolenoidOff}},
		{"3", "Publish all data", Payload{Command: CmdPublishAll}},
		{"4", "Set read period (1 min)", Payload{Command: CmdSetReadPeriod, Minutes: intp(1)}},
		{"5", "Set read period (5 min)", Payload{Command: CmdSetReadPeriod, Minutes: intp(5)}},
		{"6", "Set read period (10 min)", Payload{Command: CmdSetReadPeriod, Minutes: intp(10)}},
		{"7", "Request system status", Payload{Command: CmdGetStatus}},
		{"8", "Restart ESP32 (CAREFUL!)", Payload{Command: CmdRestart}},
		{"9", "Enable power saving", Payload{Command: CmdPowerSaveOn}},
		{"10", "Disable power saving", Payload{Command: CmdPowerSaveOff}},
		{"11", "Power mode: auto", Payload{Command: CmdSetPowerMode, Mode: modep(PowerModeAuto)}},
		{"12", "Power mode: light sleep", Payload{Command: CmdSetPowerMode, Mode: modep(PowerModeLightSleep)}},
		{"13", "Power mode: normal", Payload{Command: CmdSetPowerMode, Mode: modep(PowerModeNormal)}},
		{"14", "Report power statistics", Payload{Command: CmdPowerStats}},
	}
}

func (c Catalog) Lookup(key string) (*Entry, bool) {
	key = strings.TrimSpace(key)
	ix := slices.IndexFunc(c, func(e Entry) bool { return e.Key == key })
	if ix < 0 {
		return nil, false
	}
	e := c[ix]
	return &e, true
}

// MaxKey is the highest numeric key, for prompts like "0-14".
func (c Catalog) MaxKey() int {
	highest := 0
	for _, e := range c {
		k, err := strconv.Atoi(e.Key)
		if err == nil && k > highest {
			highest = k
		}
	}
	return highest
}
