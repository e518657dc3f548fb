package plant

import (
	_ "embed"
	"errors"
	"fmt"

	"github.com/xeipuuv/gojsonschema"
)

var (
	//go:embed config.schema.json
	configSchemaJSON string

	configSchema *gojsonschema.Schema
)

func init() {
	var err error
	configSchema, err = gojsonschema.NewSchema(gojsonschema.NewStringLoader(configSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("Config schema broken: %v", err))
	}
}

func validateSchema(loader gojsonschema.JSONLoader) error {
	result, err := configSchema.Validate(loader)
	if err != nil {
		return fmt.Errorf("cannot validate config: %w", err)
	}
	if !result.Valid() {
		err := "the config is not valid:\n"
		for _, e := range result.Errors() {
			err += fmt.Sprintf("- %s\n", e)
		}
		return errors.New(err)
	}
	return nil
}

// ValidateJSON checks raw config JSON, e.g. an override file, against
// the config schema.
func ValidateJSON(data []byte) error {
	return validateSchema(gojsonschema.NewBytesLoader(data))
}

// Validate checks c against the config schema and makes sure that no
// minimum lies above its maximum.
func (c *Config) Validate() error {
	err := validateSchema(gojsonschema.NewGoLoader(c))
	if err != nil {
		return err
	}
	pairs := []struct {
		name     string
		min, max *int
	}{
		{"temperature", c.TemperatureMin, c.TemperatureMax},
		{"humidity", c.HumidityMin, c.HumidityMax},
		{"soil moisture", c.SoilMoistureMin, c.SoilMoistureMax},
		{"UV", c.UVMin, c.UVMax},
	}
	for _, p := range pairs {
		if p.min != nil && p.max != nil && *p.min > *p.max {
			return fmt.Errorf("%s minimum %d is above maximum %d", p.name, *p.min, *p.max)
		}
	}
	return nil
}
