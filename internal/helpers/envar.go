// Copyright (C) 2025 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package helpers holds small process-level utilities shared by commands.
package helpers

import (
	"os"
	"strings"
)

// GetBoolEnv reads a boolean environment variable.
// "true", "1", "yes", "on", "enable" and "enabled" are true, their opposites
// are false (case insensitive). Unset or empty returns defaultValue; any other
// non-empty value is treated as true.
func GetBoolEnv(envVar string, defaultValue bool) bool {
	v, ok := parseBool(os.Getenv(envVar))
	if !ok {
		return defaultValue
	}
	return v
}

// GetBoolEnvAny returns the value of the first variable in envVars that is
// set to a non-empty value, or defaultValue when none are.
func GetBoolEnvAny(defaultValue bool, envVars ...string) bool {
	for _, name := range envVars {
		if v, ok := parseBool(os.Getenv(name)); ok {
			return v
		}
	}
	return defaultValue
}

// GetEnvOrDefault returns the trimmed value of envVar, or def when unset.
func GetEnvOrDefault(envVar, def string) string {
	if v := strings.TrimSpace(os.Getenv(envVar)); v != "" {
		return v
	}
	return def
}

func parseBool(raw string) (value bool, set bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "1", "yes", "on", "enable", "enabled":
		return true, true
	case "false", "0", "no", "off", "disable", "disabled":
		return false, true
	case "":
		return false, false
	default:
		return true, true
	}
}
