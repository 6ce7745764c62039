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

package dbopen

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

var ErrDatabaseNotConfigured = errors.New("database connection configuration is unavailable")

var defaultPorts = map[string]string{
	"postgresql": "5432",
	"mysql":      "3306",
}

// GetDatabaseURLFromEnv returns PREFIX_URL when set. Otherwise it builds a
// URL from PREFIX_HOST, PREFIX_DBNAME and the optional PREFIX_SCHEME,
// PREFIX_PORT, PREFIX_USER, PREFIX_PASSWORD and PREFIX_SSLMODE. If PREFIX
// does not end in "_", it will be added automatically.
//
// SCHEME defaults to "postgresql" and may also be "mysql". HOST and DBNAME
// are required; the error wraps ErrDatabaseNotConfigured and lists what is
// missing.
func GetDatabaseURLFromEnv(prefix string) (string, error) {
	if !strings.HasSuffix(prefix, "_") {
		prefix += "_"
	}

	if urlStr := os.Getenv(prefix + "URL"); urlStr != "" {
		return urlStr, nil
	}

	scheme := strings.ToLower(os.Getenv(prefix + "SCHEME"))
	switch scheme {
	case "", "postgres", "postgresql":
		scheme = "postgresql"
	case "mysql":
	default:
		return "", fmt.Errorf("unsupported %sSCHEME %q", prefix, scheme)
	}

	host := os.Getenv(prefix + "HOST")
	dbname := os.Getenv(prefix + "DBNAME")

	var missing []string
	if host == "" {
		missing = append(missing, prefix+"HOST")
	}
	if dbname == "" {
		missing = append(missing, prefix+"DBNAME")
	}
	if len(missing) > 0 {
		return "", fmt.Errorf("%w: missing required environment variable(s): %s",
			ErrDatabaseNotConfigured, strings.Join(missing, ", "))
	}

	port := os.Getenv(prefix + "PORT")
	if port == "" {
		port = defaultPorts[scheme]
	}

	u := &url.URL{
		Scheme: scheme,
		Host:   host + ":" + port,
		Path:   dbname,
	}

	user := os.Getenv(prefix + "USER")
	pass := os.Getenv(prefix + "PASSWORD")
	if user != "" {
		if pass != "" {
			u.User = url.UserPassword(user, pass)
		} else {
			u.User = url.User(user)
		}
	}

	if scheme == "postgresql" {
		q := u.Query()
		if sslmode := os.Getenv(prefix + "SSLMODE"); sslmode != "" {
			q.Set("sslmode", sslmode)
		}
		if appName := applicationName(os.Getenv("OTEL_SERVICE_NAME")); appName != "" {
			q.Set("application_name", appName)
		}
		u.RawQuery = q.Encode()
	}

	return u.String(), nil
}

// applicationName keeps only alphanumerics, '-' and '_' and caps the result
// at the Postgres identifier limit.
func applicationName(name string) string {
	if name == "" {
		return ""
	}
	name = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') ||
			(r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') ||
			r == '-' || r == '_' {
			return r
		}
		return '_'
	}, name)
	if len(name) > 63 {
		name = name[:63]
	}
	return name
}
