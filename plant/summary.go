package plant

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

const RULER_WIDTH = 60

func orUnknown(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}

// PrintSummary writes a framed, human-readable view of c. Unset
// values show as '?', and unset auto-irrigation counts as disabled.
func PrintSummary(w io.Writer, title string, c *Config) {
	ruler := strings.Repeat("=", RULER_WIDTH)
	auto := "DISABLED"
	if c.AutoIrrigation != nil && *c.AutoIrrigation {
		auto = "ENABLED"
	}
	fmt.Fprintf(w, "\n%s\n", ruler)
	fmt.Fprintf(w, "%s\n", title)
	fmt.Fprintf(w, "%s\n", ruler)
	fmt.Fprintf(w, "Temperature:          %s°C - %s°C\n", orUnknown(c.TemperatureMin), orUnknown(c.TemperatureMax))
	fmt.Fprintf(w, "Air humidity:         %s%% - %s%%\n", orUnknown(c.HumidityMin), orUnknown(c.HumidityMax))
	fmt.Fprintf(w, "Soil moisture:        %s%% - %s%%\n", orUnknown(c.SoilMoistureMin), orUnknown(c.SoilMoistureMax))
	fmt.Fprintf(w, "UV exposure:          %s%% - %s%%\n", orUnknown(c.UVMin), orUnknown(c.UVMax))
	fmt.Fprintf(w, "Irrigation threshold: -%s%%\n", orUnknown(c.IrrigationThreshold))
	fmt.Fprintf(w, "Auto-irrigation:      %s\n", auto)
	fmt.Fprintf(w, "%s\n", ruler)
}
