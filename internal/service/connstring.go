package service

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"

	"sqlinsight/internal/core"
)

// Credentials describe how to reach a target database.
type Credentials struct {
	Provider core.Provider
	Host     string
	Port     int
	DBName   string
	Username string
	Password string
}

// ResolveConnectionString builds the driver-qualified URI for the credentials.
// SQLite is file based, so only the database name (its path) is used.
func ResolveConnectionString(c Credentials) (string, error) {
	addr := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	switch c.Provider {
	case core.ProviderPostgres:
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     addr,
			Path:     "/" + c.DBName,
			RawQuery: "sslmode=disable",
		}
		return u.String(), nil

	case core.ProviderMySQL, core.ProviderMariaDB:
		cfg := mysql.NewConfig()
		cfg.User = c.Username
		cfg.Passwd = c.Password
		cfg.Net = "tcp"
		cfg.Addr = addr
		cfg.DBName = c.DBName
		cfg.ParseTime = true
		return string(c.Provider) + "://" + cfg.FormatDSN(), nil

	case core.ProviderSQLite:
		return "sqlite://" + c.DBName, nil

	case core.ProviderSQLServer:
		q := url.Values{}
		q.Set("database", c.DBName)
		u := url.URL{
			Scheme:   "sqlserver",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     addr,
			RawQuery: q.Encode(),
		}
		return u.String(), nil
	}

	return "", &core.UnsupportedProviderError{Provider: string(c.Provider)}
}

// ParseConnectionString splits a URI from ResolveConnectionString into the
// database/sql driver name and the DSN that driver expects.
func ParseConnectionString(uri string) (driverName, dsn string, err error) {
	scheme, rest, ok := strings.Cut(uri, "://")
	if !ok {
		return "", "", &core.UnsupportedProviderError{Provider: uri}
	}

	switch core.Provider(strings.ToLower(scheme)) {
	case core.ProviderPostgres, "postgresql":
		return "postgres", uri, nil
	case core.ProviderMySQL, core.ProviderMariaDB:
		return "mysql", rest, nil
	case core.ProviderSQLite:
		// mode=rw stops the driver from silently creating a missing file.
		return "sqlite", "file:" + rest + "?mode=rw", nil
	case core.ProviderSQLServer:
		return "sqlserver", uri, nil
	}
	return "", "", &core.UnsupportedProviderError{Provider: scheme}
}

// providerOf reports the provider tag a URI was built for.
func providerOf(uri string) core.Provider {
	scheme, _, _ := strings.Cut(uri, "://")
	if scheme == "postgresql" {
		return core.ProviderPostgres
	}
	return core.Provider(strings.ToLower(scheme))
}
