package plant

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

var ErrEmptyConfig = errors.New("no configuration specified")

// Builder assembles a Config from a profile, an override file and
// individual settings, noting each source it applied.
type Builder struct {
	cfg   Config
	notes []string
}

// Options lists the sources for Build. Threshold is only applied when
// set.
type Options struct {
	Profile      string
	OverrideFile string
	Threshold    *int
	EnableAuto   bool
	DisableAuto  bool
}

// Build applies the sources in o in a fixed order: profile, override
// file, threshold, enable, disable. Disable therefore wins if both
// auto-irrigation flags are given.
func Build(o Options) (*Builder, error) {
	b := &Builder{}
	if o.Profile != "" {
		err := b.ApplyProfile(o.Profile)
		if err != nil {
			return nil, err
		}
	}
	if o.OverrideFile != "" {
		err := b.ApplyOverrideFile(o.OverrideFile)
		if err != nil {
			return nil, err
		}
	}
	if o.Threshold != nil {
		b.SetThreshold(*o.Threshold)
	}
	if o.EnableAuto {
		b.SetAutoIrrigation(true)
	}
	if o.DisableAuto {
		b.SetAutoIrrigation(false)
	}
	return b, nil
}

func (b *Builder) ApplyProfile(name string) error {
	p, err := Get(name)
	if err != nil {
		return err
	}
	b.cfg = p.Config
	b.note("Using predefined configuration: %s", strings.ToUpper(p.Name))
	return nil
}

func (b *Builder) ApplyOverrideFile(name string) error {
	m, err := os.ReadFile(name)
	if err != nil {
		return fmt.Errorf("error reading file %s: %w", name, err)
	}
	err = ValidateJSON(m)
	if err != nil {
		return fmt.Errorf("error reading file %s: %w", name, err)
	}
	var o Config
	err = pickyUnmarshal(m, &o)
	if err != nil {
		return fmt.Errorf("error reading file %s: %w", name, err)
	}
	b.cfg.Merge(&o)
	b.note("Custom configuration loaded from: %s", name)
	return nil
}

func (b *Builder) SetThreshold(t int) {
	b.cfg.IrrigationThreshold = &t
	b.note("Irrigation threshold set: %d%%", t)
}

func (b *Builder) SetAutoIrrigation(on bool) {
	b.cfg.AutoIrrigation = &on
	if on {
		b.note("Automatic irrigation ENABLED")
	} else {
		b.note("Automatic irrigation DISABLED")
	}
}

func (b *Builder) note(format string, a ...any) {
	b.notes = append(b.notes, fmt.Sprintf(format, a...))
}

// Notes returns one line per applied source, in order.
func (b *Builder) Notes() []string {
	return b.notes
}

// Config returns the merged, validated configuration.
func (b *Builder) Config() (*Config, error) {
	if b.cfg.empty() {
		return nil, ErrEmptyConfig
	}
	err := b.cfg.Validate()
	if err != nil {
		return nil, err
	}
	c := b.cfg
	return &c, nil
}
