package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"
)

// Database is the normalized connection descriptor produced by
// ResolveDatabase. URL never carries credentials; User and Password hold
// the resolved ones, which DSN injects back when the driver connects.
type Database struct {
	URL      string
	User     string
	Password string
}

// ResolveDatabase derives the connection descriptor from the config.
// It never fails: a usable DATABASE_URL is normalized to the
// postgresql:// scheme, anything unrecognizable degrades to a URL
// synthesized from the discrete host/port/database fields.
//
// Credential precedence: PGUSER/PGPASSWORD win over credentials
// embedded in DATABASE_URL, which in turn win over none at all.
func (c *Config) ResolveDatabase() Database {
	var extractedUser, extractedPassword string

	resolved := ""
	if c.DatabaseURL != "" {
		working := c.DatabaseURL

		working, extractedUser, extractedPassword = stripCredentials(working)

		switch {
		case strings.HasPrefix(working, "postgres://"):
			resolved = "postgresql://" + strings.TrimPrefix(working, "postgres://")
		case strings.HasPrefix(working, "postgresql://"):
			resolved = working
		default:
			log.Warn().Str("url", c.DatabaseURL).Msg("Unrecognized DATABASE_URL scheme, building connection URL from PG* variables")
			resolved = c.synthesizeURL()
		}

		if _, err := url.Parse(resolved); err != nil {
			log.Warn().Err(err).Msg("Malformed DATABASE_URL, building connection URL from PG* variables")
			resolved = c.synthesizeURL()
		}
	} else {
		resolved = c.synthesizeURL()
	}

	user := c.User
	password := c.Password
	if user == "" && extractedUser != "" {
		user = extractedUser
		log.Debug().Str("user", user).Msg("Using username extracted from DATABASE_URL")
	}
	if password == "" && extractedPassword != "" {
		password = extractedPassword
		log.Debug().Msg("Using password extracted from DATABASE_URL")
	}

	return Database{URL: resolved, User: user, Password: password}
}

// stripCredentials removes a user:password@ segment from the authority
// of a URL-shaped string, returning the remainder and the credentials
// it carried. Strings without both a scheme separator and an @ pass
// through untouched.
func stripCredentials(raw string) (stripped, user, password string) {
	schemeIdx := strings.Index(raw, "://")
	if schemeIdx < 0 || !strings.Contains(raw, "@") {
		return raw, "", ""
	}

	scheme := raw[:schemeIdx]
	rest := raw[schemeIdx+3:]

	at := strings.Index(rest, "@")
	if at < 0 {
		return raw, "", ""
	}

	creds := rest[:at]
	hostAndRest := rest[at+1:]

	if colon := strings.Index(creds, ":"); colon >= 0 {
		user = creds[:colon]
		password = creds[colon+1:]
	} else {
		user = creds
	}

	return scheme + "://" + hostAndRest, user, password
}

// synthesizeURL builds a connection URL from the discrete fields.
// Hosted PostgreSQL requires TLS, so the synthesized form always asks
// for it.
func (c *Config) synthesizeURL() string {
	return fmt.Sprintf("postgresql://%s:%s/%s?sslmode=require", c.Host, c.Port, c.Database)
}

// DSN returns the URL with the resolved credentials injected, in the
// form the pgx driver accepts.
func (d Database) DSN() string {
	if d.User == "" && d.Password == "" {
		return d.URL
	}

	u, err := url.Parse(d.URL)
	if err != nil {
		return d.URL
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	return u.String()
}

// Redacted returns the DSN with the password masked, safe for logs.
func (d Database) Redacted() string {
	u, err := url.Parse(d.DSN())
	if err != nil {
		return d.URL
	}
	return u.Redacted()
}
