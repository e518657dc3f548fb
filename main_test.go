package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/Jon-Bright/estufa/plant"
	"github.com/Jon-Bright/estufa/testutil"
	mochi "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/packets"
	"github.com/nsf/jsondiff"
)

// lockedBuffer collects output that paho's callback goroutine may still
// be writing while the test reads it.
type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

func execute(t *testing.T, in string, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), in, args...)
}

func executeContext(t *testing.T, ctx context.Context, in string, args ...string) (string, error) {
	t.Helper()
	root, err := newRootCmd()
	if err != nil {
		t.Fatalf("newRootCmd: %v", err)
	}
	var out lockedBuffer
	root.SetIn(strings.NewReader(in))
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append(args, "--logfile="+filepath.Join(t.TempDir(), "estufa.log")))
	err = root.ExecuteContext(ctx)
	return out.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	fn := filepath.Join(t.TempDir(), name)
	err := os.WriteFile(fn, []byte(content), 0644)
	if err != nil {
		t.Fatalf("writing %s: %v", fn, err)
	}
	return fn
}

func jsonEqual(t *testing.T, desc string, got []byte, want string) {
	t.Helper()
	opts := jsondiff.DefaultConsoleOptions()
	diff, s := jsondiff.Compare(got, []byte(want), &opts)
	if diff != jsondiff.FullMatch {
		t.Errorf("%s: JSON mismatch (%v): %s", desc, diff, s)
	}
}

func wantContains(t *testing.T, output string, want ...string) {
	t.Helper()
	for _, s := range want {
		if !strings.Contains(output, s) {
			t.Errorf("output lacks %q", s)
		}
	}
	if t.Failed() {
		t.Logf("output:\n%s", output)
	}
}

func TestConfigHelp(t *testing.T) {
	out, err := execute(t, "", "config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	wantContains(t, out, "Usage:", "estufa config --config tomate", "--disable-auto", "--broker_url")
}

func TestAnyLocalFlag(t *testing.T) {
	tests := []struct {
		args []string
		want bool
	}{
		{[]string{"config"}, false},
		{[]string{"config", "--logfile=x.log"}, false},
		{[]string{"config", "--list"}, true},
		{[]string{"config", "-t", "20"}, true},
		{[]string{"config", "--logfile=x.log", "--broker_timeout=1s"}, true},
	}
	for _, tc := range tests {
		root, err := newRootCmd()
		if err != nil {
			t.Fatalf("newRootCmd: %v", err)
		}
		cmd, rest, err := root.Find(tc.args)
		if err != nil {
			t.Fatalf("%v: finding command: %v", tc.args, err)
		}
		err = cmd.ParseFlags(rest)
		if err != nil {
			t.Fatalf("%v: parsing flags: %v", tc.args, err)
		}
		if got := anyLocalFlag(cmd); got != tc.want {
			t.Errorf("%v: got %v, want %v", tc.args, got, tc.want)
		}
	}
}

func TestCapitalize(t *testing.T) {
	tests := []struct {
		s, want string
	}{
		{"tomate", "Tomate"},
		{"érva-doce", "Érva-doce"},
		{"", ""},
		{"\xffoo", "\xffoo"},
	}
	for _, tc := range tests {
		if got := capitalize(tc.s); got != tc.want {
			t.Errorf("capitalize(%q): got %q, want %q", tc.s, got, tc.want)
		}
	}
}

func TestConfigList(t *testing.T) {
	out, err := execute(t, "", "config", "--list")
	if err != nil {
		t.Fatalf("config --list: %v", err)
	}
	wantContains(t, out,
		"\nAvailable plants:\n",
		"\nTomate\n",
		"\nManjericao\n",
		"Temperature:          15°C - 22°C\n",
		"UV exposure:          40% - 80%\n",
	)
	if n := strings.Count(out, "Auto-irrigation:      ENABLED"); n != 4 {
		t.Errorf("got %d summaries, want 4", n)
	}
}

func TestConfigProfiles(t *testing.T) {
	t.Cleanup(func() { plant.ResetProfiles() })
	fn := writeFile(t, "profiles.json", `[{"name": "morango", "config": {"soil_moisture_min": 65, "soil_moisture_max": 80}}]`)
	out, err := execute(t, "", "config", "--profiles", fn, "-l")
	if err != nil {
		t.Fatalf("config --profiles: %v", err)
	}
	wantContains(t, out, "\nMorango\n", "Soil moisture:        65% - 80%\n", "Temperature:          ?°C - ?°C\n")
}

func TestConfigProfilesNonASCII(t *testing.T) {
	t.Cleanup(func() { plant.ResetProfiles() })
	fn := writeFile(t, "profiles.json", `[{"name": "érva-doce", "config": {"uv_min": 30, "uv_max": 60}}]`)
	out, err := execute(t, "", "config", "--profiles", fn, "--list")
	if err != nil {
		t.Fatalf("config --profiles: %v", err)
	}
	if !utf8.ValidString(out) {
		t.Errorf("output isn't valid UTF-8: %q", out)
	}
	wantContains(t, out, "\nÉrva-doce\n", "UV exposure:          30% - 60%\n")
}

func TestConfigBuild(t *testing.T) {
	dir := t.TempDir()
	saved := filepath.Join(dir, "tomate.json")
	out, err := execute(t, "", "config", "-c", "tomate", "-t", "30", "--enable-auto", "--disable-auto", "-o", saved)
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	compact := `{"temperature_min":18,"temperature_max":28,"humidity_min":60,"humidity_max":80,` +
		`"soil_moisture_min":60,"soil_moisture_max":80,"uv_min":30,"uv_max":70,"irrigation_threshold":30,"auto_irrigation":false}`
	wantContains(t, out,
		"\nUsing predefined configuration: TOMATE\n"+
			"\nIrrigation threshold set: 30%\n"+
			"\nAutomatic irrigation ENABLED\n"+
			"\nAutomatic irrigation DISABLED\n",
		"\nGenerated configuration\n",
		"Irrigation threshold: -30%\n",
		"Auto-irrigation:      DISABLED\n",
		"\nJSON to publish over MQTT:\n"+strings.Repeat("-", 60)+"\n{\n  \"temperature_min\": 18,\n",
		"   2. Topic: esp32/config\n",
		"\nConfiguration saved to: "+saved+"\n",
		"   echo '"+compact+"' | xclip -selection clipboard\n",
	)
	b, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	jsonEqual(t, "saved file", b, compact)
	if !bytes.HasPrefix(b, []byte("{\n  \"")) {
		t.Errorf("saved file not indented: %s", string(b))
	}
}

func TestConfigCustom(t *testing.T) {
	custom := writeFile(t, "custom.json", `{"uv_max": 90, "irrigation_threshold": 15}`)
	saved := filepath.Join(t.TempDir(), "out.json")
	out, err := execute(t, "", "config", "-c", "alface", "--custom", custom, "-o", saved, "--topic", "greenhouse/2/config")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	wantContains(t, out, "\nCustom configuration loaded from: "+custom+"\n", "   2. Topic: greenhouse/2/config\n")
	b, err := os.ReadFile(saved)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	jsonEqual(t, "custom over alface", b, `{"temperature_min":15,"temperature_max":22,"humidity_min":70,"humidity_max":85,
		"soil_moisture_min":70,"soil_moisture_max":85,"uv_min":20,"uv_max":90,"irrigation_threshold":15,"auto_irrigation":true}`)
}

func TestConfigEmpty(t *testing.T) {
	out, err := execute(t, "", "config", "--topic", "esp32/other")
	if err != nil {
		t.Fatalf("config: %v", err)
	}
	wantContains(t, out, "\nNo configuration specified. Use --help to see the options.\n")
	if strings.Contains(out, "JSON to publish") {
		t.Error("JSON printed for an empty configuration")
	}
}

func TestConfigErrors(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.json")
	typo := writeFile(t, "typo.json", `{"irrigation_treshold": 20}`)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"config", "-c", "banana"}, "choose from: tomate, alface, pimentao, manjericao"},
		{[]string{"config", "--custom", missing}, "error reading file " + missing},
		{[]string{"config", "--custom", typo}, "error reading file " + typo},
		{[]string{"config", "-t", "150"}, "irrigation_threshold"},
		{[]string{"config", "-t", "many"}, "invalid argument"},
		{[]string{"config", "tomate"}, "unknown command"},
		{[]string{"config", "-c", "tomate", "-o", filepath.Join(missing, "out.json")}, "error saving file"},
	}
	for _, tc := range tests {
		out, err := execute(t, "", tc.args...)
		if err == nil {
			t.Errorf("%v: no error", tc.args)
			continue
		}
		if !strings.Contains(out, tc.want) {
			t.Errorf("%v: output lacks %q, got:\n%s", tc.args, tc.want, out)
		}
	}
}

func TestConfigPublish(t *testing.T) {
	server, addr := testutil.StartBroker(t, nil)
	got := make(chan []byte, 1)
	err := server.Subscribe("esp32/config", 1, func(cl *mochi.Client, sub packets.Subscription, pk packets.Packet) {
		got <- pk.Payload
	})
	if err != nil {
		t.Fatalf("inline subscribe: %v", err)
	}
	out, err := execute(t, "", "config", "-c", "pimentao", "--publish",
		"--broker_url=tcp://"+addr, "--broker_client_id=config-test", "--broker_timeout=5s")
	if err != nil {
		t.Fatalf("config --publish: %v", err)
	}
	wantContains(t, out, "\nPublished to 'esp32/config' on tcp://"+addr+"\n")
	select {
	case b := <-got:
		jsonEqual(t, "published", b, `{"temperature_min":20,"temperature_max":30,"humidity_min":60,"humidity_max":75,
			"soil_moisture_min":65,"soil_moisture_max":80,"uv_min":35,"uv_max":75,"irrigation_threshold":25,"auto_irrigation":true}`)
		if bytes.ContainsAny(b, " \n") {
			t.Errorf("published payload not compact: %s", string(b))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("broker received nothing on esp32/config")
	}
}
