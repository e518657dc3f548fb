package plant

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/goccy/go-json"
	"golang.org/x/exp/slices"
)

// Config is the plant configuration accepted by the controller on
// its config topic. Unset fields are left out of the JSON and keep
// their current value on the device.
type Config struct {
	TemperatureMin      *int  `json:"temperature_min,omitempty"`
	TemperatureMax      *int  `json:"temperature_max,omitempty"`
	HumidityMin         *int  `json:"humidity_min,omitempty"`
	HumidityMax         *int  `json:"humidity_max,omitempty"`
	SoilMoistureMin     *int  `json:"soil_moisture_min,omitempty"`
	SoilMoistureMax     *int  `json:"soil_moisture_max,omitempty"`
	UVMin               *int  `json:"uv_min,omitempty"`
	UVMax               *int  `json:"uv_max,omitempty"`
	IrrigationThreshold *int  `json:"irrigation_threshold,omitempty"`
	AutoIrrigation      *bool `json:"auto_irrigation,omitempty"`
}

type Profile struct {
	Name   string `json:"name"`
	Config Config `json:"config"`
}

var (
	//go:embed profiles.json
	builtinProfiles []byte

	profiles []Profile
)

func init() {
	err := ResetProfiles()
	if err != nil {
		panic(fmt.Sprintf("Built-in profiles broken: %v", err))
	}
}

// ResetProfiles drops any loaded profiles and goes back to the
// built-in set.
func ResetProfiles() error {
	var p []Profile
	err := pickyUnmarshal(builtinProfiles, &p)
	if err != nil {
		return fmt.Errorf("failed unmarshalling built-in profiles: %w", err)
	}
	profiles = p
	return nil
}

// LoadProfiles adds the profiles in the named file to the
// registry. A profile with a known name replaces the existing one in
// place, new names are appended.
func LoadProfiles(name string) error {
	m, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	var loaded []Profile
	err = pickyUnmarshal(m, &loaded)
	if err != nil {
		return fmt.Errorf("failed unmarshalling profiles from %s: %w", name, err)
	}
	for _, p := range loaded {
		if p.Name == "" {
			return fmt.Errorf("profile without a name in %s", name)
		}
		err = p.Config.Validate()
		if err != nil {
			return fmt.Errorf("profile '%s' in %s invalid: %w", p.Name, name, err)
		}
	}
	for _, p := range loaded {
		ix := slices.IndexFunc(profiles, func(e Profile) bool { return e.Name == p.Name })
		if ix >= 0 {
			profiles[ix] = p
		} else {
			profiles = append(profiles, p)
		}
	}
	return nil
}

func Names() []string {
	n := make([]string, 0, len(profiles))
	for _, p := range profiles {
		n = append(n, p.Name)
	}
	return n
}

// Get returns a copy of the named profile. Config fields are only
// ever replaced, never written through, so the copy can't alter the
// registry.
func Get(name string) (*Profile, error) {
	ix := slices.IndexFunc(profiles, func(e Profile) bool { return e.Name == name })
	if ix < 0 {
		return nil, fmt.Errorf("profile '%s' not found, choose from: %s", name, strings.Join(Names(), ", "))
	}
	p := profiles[ix]
	return &p, nil
}

func GetDB() any {
	return &profiles
}

// Merge overwrites c with every field that is set in o.
func (c *Config) Merge(o *Config) {
	if o.TemperatureMin != nil {
		c.TemperatureMin = o.TemperatureMin
	}
	if o.TemperatureMax != nil {
		c.TemperatureMax = o.TemperatureMax
	}
	if o.HumidityMin != nil {
		c.HumidityMin = o.HumidityMin
	}
	if o.HumidityMax != nil {
		c.HumidityMax = o.HumidityMax
	}
	if o.SoilMoistureMin != nil {
		c.SoilMoistureMin = o.SoilMoistureMin
	}
	if o.SoilMoistureMax != nil {
		c.SoilMoistureMax = o.SoilMoistureMax
	}
	if o.UVMin != nil {
		c.UVMin = o.UVMin
	}
	if o.UVMax != nil {
		c.UVMax = o.UVMax
	}
	if o.IrrigationThreshold != nil {
		c.IrrigationThreshold = o.IrrigationThreshold
	}
	if o.AutoIrrigation != nil {
		c.AutoIrrigation = o.AutoIrrigation
	}
}

func (c *Config) empty() bool {
	return c.TemperatureMin == nil && c.TemperatureMax == nil && c.HumidityMin == nil && c.HumidityMax == nil &&
		c.SoilMoistureMin == nil && c.SoilMoistureMax == nil && c.UVMin == nil && c.UVMax == nil &&
		c.IrrigationThreshold == nil && c.AutoIrrigation == nil
}

func (c *Config) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

func (c *Config) MarshalIndent() ([]byte, error) {
	return json.MarshalIndent(c, "", "  ")
}
