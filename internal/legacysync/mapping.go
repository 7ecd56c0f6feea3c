package legacysync

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/orthoflow/practice-service/internal/appointment"
)

// Mapping translates legacy status and service strings into appointment
// status and type. Keys are matched case-insensitively after trimming.
type Mapping struct {
	Statuses map[string]string `yaml:"statuses"`
	Services map[string]string `yaml:"services"`
}

// DefaultMapping covers the values the legacy booking form produces.
func DefaultMapping() Mapping {
	return Mapping{
		Statuses: map[string]string{
			"confirmed": appointment.StatusConfirmed,
			"pending":   appointment.StatusScheduled,
			"booked":    appointment.StatusScheduled,
			"completed": appointment.StatusCompleted,
			"done":      appointment.StatusCompleted,
			"cancelled": appointment.StatusCancelled,
			"canceled":  appointment.StatusCancelled,
			"no-show":   appointment.StatusNoShow,
			"no_show":   appointment.StatusNoShow,
			"noshow":    appointment.StatusNoShow,
		},
		Services: map[string]string{
			"consultation":      appointment.TypeConsultation,
			"free consultation": appointment.TypeConsultation,
			"initial exam":      appointment.TypeConsultation,
			"check-up":          appointment.TypeCheckup,
			"checkup":           appointment.TypeCheckup,
			"control":           appointment.TypeCheckup,
			"adjustment":        appointment.TypeAdjustment,
			"wire change":       appointment.TypeAdjustment,
			"bonding":           appointment.TypeBracesFitting,
			"braces placement":  appointment.TypeBracesFitting,
			"debonding":         appointment.TypeBracesRemoval,
			"braces removal":    appointment.TypeBracesRemoval,
			"retainer":          appointment.TypeRetainer,
			"retainer check":    appointment.TypeRetainer,
			"emergency":         appointment.TypeEmergency,
		},
	}
}

// LoadMapping reads a YAML override file and merges it over the defaults.
// An empty path returns the defaults.
func LoadMapping(path string) (Mapping, error) {
	m := DefaultMapping()
	if path == "" {
		return m, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return m, fmt.Errorf("read legacy mapping: %w", err)
	}
	var override Mapping
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return m, fmt.Errorf("parse legacy mapping: %w", err)
	}

	for k, v := range override.Statuses {
		v = strings.ToUpper(strings.TrimSpace(v))
		if !appointment.IsValidStatus(v) {
			return m, fmt.Errorf("legacy mapping: status %q maps to unknown appointment status %q", k, v)
		}
		m.Statuses[normalizeKey(k)] = v
	}
	for k, v := range override.Services {
		v = strings.ToUpper(strings.TrimSpace(v))
		if !appointment.IsValidType(v) {
			return m, fmt.Errorf("legacy mapping: service %q maps to unknown appointment type %q", k, v)
		}
		m.Services[normalizeKey(k)] = v
	}
	return m, nil
}

func normalizeKey(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// Status maps a legacy status; unknown values become SCHEDULED.
func (m Mapping) Status(legacy string) string {
	if v, ok := m.Statuses[normalizeKey(legacy)]; ok {
		return v
	}
	return appointment.StatusScheduled
}

// Type maps a legacy service name; unknown values become OTHER.
func (m Mapping) Type(service string) string {
	if v, ok := m.Services[normalizeKey(service)]; ok {
		return v
	}
	return appointment.TypeOther
}
