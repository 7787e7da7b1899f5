package fp300

import (
	"fmt"
	"strings"
)

// EnumOption is one named value of an enum8 attribute.
type EnumOption struct {
	Name  string
	Value uint8
}

// Enum maps option names to wire values for an enum-typed attribute.
type Enum struct {
	Name    string
	Options []EnumOption
}

// Parse resolves an option name, case-insensitively.
func (e *Enum) Parse(name string) (uint8, error) {
	for _, o := range e.Options {
		if strings.EqualFold(o.Name, name) {
			return o.Value, nil
		}
	}
	return 0, fmt.Errorf("%s: unknown option %q (want one of %s)", e.Name, name, strings.Join(e.Names(), ", "))
}

// Format returns the option name for a wire value.
func (e *Enum) Format(v uint8) (string, bool) {
	for _, o := range e.Options {
		if o.Value == v {
			return o.Name, true
		}
	}
	return "", false
}

// Names lists the option names in declaration order.
func (e *Enum) Names() []string {
	names := make([]string, len(e.Options))
	for i, o := range e.Options {
		names[i] = o.Name
	}
	return names
}

var (
	MotionSensitivity = &Enum{
		Name: "motion_sensitivity",
		Options: []EnumOption{
			{"low", 1},
			{"medium", 2},
			{"high", 3},
		},
	}

	PresenceDetectionMode = &Enum{
		Name: "presence_detection_options",
		Options: []EnumOption{
			{"both", 0},
			{"mmwave_only", 1},
			{"pir_only", 2},
		},
	}

	// Sampling applies to both temperature/humidity and illuminance.
	Sampling = &Enum{
		Name: "sampling",
		Options: []EnumOption{
			{"off", 0},
			{"low", 1},
			{"medium", 2},
			{"high", 3},
			{"custom", 4},
		},
	}

	// ReportMode is only honoured while the matching sampling is custom.
	ReportMode = &Enum{
		Name: "report_mode",
		Options: []EnumOption{
			{"threshold", 1},
			{"interval", 2},
			{"threshold_and_interval", 3},
		},
	}
)
