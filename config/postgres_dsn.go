package config

import (
	"errors"
	"net/url"

	"github.com/jackc/pgx/v5/pgconn"
)

// DefaultURL is a local insecure CockroachDB node with the movr database.
const DefaultURL = "postgres://root@localhost:26257/movr?sslmode=disable"

const (
	applicationNameParam = "application_name"
	applicationName      = "movr"
)

var (
	// ErrInvalidURL is returned for connection URLs that are not postgres:// or postgresql:// URLs.
	ErrInvalidURL = errors.New("invalid connection URL")
)

// PostgresDSN validates a connection URL and tags the connections with the application name,
// unless the URL already sets one.
func PostgresDSN(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}

	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return "", errors.Join(ErrInvalidURL, errors.New("scheme must be postgres or postgresql"))
	}

	query := u.Query()
	if query.Get(applicationNameParam) == "" {
		query.Set(applicationNameParam, applicationName)
		u.RawQuery = query.Encode()
	}

	dsn := u.String()

	if _, err = pgconn.ParseConfig(dsn); err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}

	return dsn, nil
}
