package command

import (
	"testing"
)

func TestDefaultPayloads(t *testing.T) {
	want := map[string]string{
		"1":  `{"command":"solenoid_on"}`,
		"2":  `{"command":"solenoid_off"}`,
		"3":  `{"command":"publish_all"}`,
		"4":  `{"command":"set_read_period","minutes":1}`,
		"5":  `{"command":"set_read_period","minutes":5}`,
		"6":  `{"command":"set_read_period","minutes":10}`,
		"7":  `{"command":"get_status"}`,
		"8":  `{"command":"restart"}`,
		"9":  `{"command":"power_save_on"}`,
		"10": `{"command":"power_save_off"}`,
		"11": `{"command":"set_power_mode","mode":"auto"}`,
		"12": `{"command":"set_power_mode","mode":"light_sleep"}`,
		"13": `{"command":"set_power_mode","mode":"normal"}`,
		"14": `{"command":"power_stats"}`,
	}
	cat := Default()
	if len(cat) != len(want) {
		t.Fatalf("catalog has %d entries, want %d", len(cat), len(want))
	}
	for i, e := range cat {
		if e.Name == "" {
			t.Errorf("entry %d has no name", i)
		}
		got, err := e.Payload.Marshal()
		if err != nil {
			t.Fatalf("marshalling entry '%s': %v", e.Key, err)
		}
		if string(got) != want[e.Key] {
			t.Errorf("entry '%s', got '%s', want '%s'", e.Key, string(got), want[e.Key])
		}
	}
}

func TestPayloadValidate(t *testing.T) {
	bad := PowerModeOutOfRange
	tests := []struct {
		p         Payload
		wantError bool
	}{
		{Payload{Command: CmdGetStatus}, false},
		{Payload{Command: CmdSetReadPeriod, Minutes: intp(1440)}, false},
		{Payload{Command: CmdSetReadPeriod}, true},
		{Payload{Command: CmdSetReadPeriod, Minutes: intp(0)}, true},
		{Payload{Command: CmdSetReadPeriod, Minutes: intp(1441)}, true},
		{Payload{Command: CmdSetPowerMode}, true},
		{Payload{Command: CmdSetPowerMode, Mode: &bad}, true},
		{Payload{Command: "self_destruct"}, true},
		{Payload{}, true},
	}
	for _, tc := range tests {
		err := tc.p.Validate()
		if tc.wantError != (err != nil) {
			t.Errorf("validating %+v, wanted error %v, got %v", tc.p, tc.wantError, err)
		}
		_, err = tc.p.Marshal()
		if tc.wantError != (err != nil) {
			t.Errorf("marshalling %+v, wanted error %v, got %v", tc.p, tc.wantError, err)
		}
	}
}

func TestLookup(t *testing.T) {
	cat := Default()
	tests := []struct {
		key     string
		wantOK  bool
		wantCmd Name
	}{
		{"1", true, CmdSolenoidOn},
		{" 7\n", true, CmdGetStatus},
		{"14", true, CmdPowerStats},
		{"0", false, ""},
		{"15", false, ""},
		{"", false, ""},
		{"one", false, ""},
	}
	for _, tc := range tests {
		e, ok := cat.Lookup(tc.key)
		if ok != tc.wantOK {
			t.Fatalf("Lookup(%q), got ok %v, want %v", tc.key, ok, tc.wantOK)
		}
		if ok && e.Payload.Command != tc.wantCmd {
			t.Errorf("Lookup(%q), got %s, want %s", tc.key, e.Payload.Command, tc.wantCmd)
		}
	}
	if got := cat.MaxKey(); got != 14 {
		t.Errorf("MaxKey, got %d, want 14", got)
	}
}

func TestPowerModeText(t *testing.T) {
	for _, m := range []PowerMode{PowerModeNormal, PowerModeLightSleep, PowerModeAuto} {
		b, err := m.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%d): %v", m, err)
		}
		var got PowerMode
		err = got.UnmarshalText(b)
		if err != nil {
			t.Fatalf("UnmarshalText('%s'): %v", string(b), err)
		}
		if got != m {
			t.Errorf("round trip of %v gave %v", m, got)
		}
	}
	var m PowerMode
	if err := m.UnmarshalText([]byte("turbo")); err == nil {
		t.Error("no error for invalid power mode")
	}
	if got := PowerMode(7).String(); got != "UnknownPowerMode7" {
		t.Errorf("got '%s' for unknown mode", got)
	}
}
