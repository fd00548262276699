package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ServiceMode names a surface the specops binary can run.
type ServiceMode string

const (
	// ServiceModeWebhook serves the notification webhook and delivery log.
	ServiceModeWebhook ServiceMode = "webhook"
	// ServiceModeWatch serves the job-watch API backed by the reconciliation loop.
	ServiceModeWatch ServiceMode = "watch"
)

var serviceModes = []ServiceMode{ServiceModeWebhook, ServiceModeWatch}

// ValidServiceModes lists every known mode.
func ValidServiceModes() []ServiceMode {
	return slices.Clone(serviceModes)
}

// ParseServices turns "webhook, watch" into a set. Blank entries are ignored;
// unknown names and an empty result are errors.
func ParseServices(list string) (map[ServiceMode]bool, error) {
	enabled := make(map[ServiceMode]bool, len(serviceModes))
	if strings.TrimSpace(list) == "" {
		return enabled, errors.New("at least one service must be specified")
	}

	for name := range strings.SplitSeq(list, ",") {
		mode := ServiceMode(strings.TrimSpace(name))
		if mode == "" {
			continue
		}
		if !slices.Contains(serviceModes, mode) {
			return nil, fmt.Errorf("invalid service name: %q (valid options: webhook, watch)", string(mode))
		}
		enabled[mode] = true
	}
	if len(enabled) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}
	return enabled, nil
}
