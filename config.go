package prefixdb

import (
	"net"
	"net/url"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

// Supported values for Config.Driver. The names follow the driver names
// used by existing configuration files, so "pgsql" rather than "postgres".
const (
	DriverMySQL  = "mysql"
	DriverPgSQL  = "pgsql"
	DriverSQLite = "sqlite"
)

// Config describes a single logical database connection.
// Driver, Host, Port and Prefix are optional; User, Password and DBName are required.
type Config struct {
	Driver   string `yaml:"driver" json:"driver"`     // Database driver (default: "mysql")
	Host     string `yaml:"host" json:"host"`         // Server hostname or IP address (default: "localhost")
	Port     int    `yaml:"port" json:"port"`         // TCP port (default: 3306, or 5432 for pgsql)
	DBName   string `yaml:"dbname" json:"dbname"`     // Database name, or file path for sqlite (required)
	User     string `yaml:"user" json:"user"`         // Authentication username (required)
	Password string `yaml:"password" json:"password"` // Authentication password (required)
	Prefix   string `yaml:"prefix" json:"prefix"`     // Table name prefix substituted for "{" (default: "")
	SSLMode  string `yaml:"sslmode" json:"sslmode"`   // pgsql only: disable, require, verify-ca or verify-full (default: "disable")
}

// driverSpec maps a configured driver onto the database/sql driver that serves it.
type driverSpec struct {
	sqlName     string // name registered with database/sql
	defaultPort int
	lastIDQuery string // query returning the last generated id on the same session
}

var drivers = map[string]driverSpec{
	DriverMySQL: {
		sqlName:     "mysql",
		defaultPort: 3306,
		lastIDQuery: "SELECT LAST_INSERT_ID()",
	},
	DriverPgSQL: {
		sqlName:     "postgres",
		defaultPort: 5432,
		lastIDQuery: "SELECT lastval()",
	},
	DriverSQLite: {
		sqlName:     "sqlite",
		lastIDQuery: "SELECT last_insert_rowid()",
	},
}

// driverAliases accepts the database/sql spelling of a driver as well.
var driverAliases = map[string]string{
	"postgres":   DriverPgSQL,
	"postgresql": DriverPgSQL,
	"sqlite3":    DriverSQLite,
}

// Validate reports the first missing required property.
// Properties are checked in a fixed order: user, password, dbname.
// Only the empty string counts as missing; "0" is a valid value.
func (c Config) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"user", c.User},
		{"password", c.Password},
		{"dbname", c.DBName},
	}
	for _, field := range required {
		if field.value == "" {
			return &ConfigurationError{Field: field.name}
		}
	}
	return nil
}

// defaultConfig fills in the optional fields of cfg.
// Required fields are never defaulted; Validate is expected to run first.
func defaultConfig(cfg Config) Config {
	if cfg.Driver == "" {
		cfg.Driver = DriverMySQL
	}
	if alias, ok := driverAliases[cfg.Driver]; ok {
		cfg.Driver = alias
	}
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Driver == DriverPgSQL && cfg.SSLMode == "" {
		cfg.SSLMode = "disable"
	}
	if cfg.Port <= 0 {
		cfg.Port = 3306
		if spec, ok := drivers[cfg.Driver]; ok && spec.defaultPort > 0 {
			cfg.Port = spec.defaultPort
		}
	}
	return cfg
}

// spec returns the driver description for an already defaulted config.
func (c Config) spec() (driverSpec, error) {
	spec, ok := drivers[c.Driver]
	if !ok {
		return driverSpec{}, &ConfigurationError{Field: "driver", Value: c.Driver}
	}
	return spec, nil
}

// dsn builds the data source name from driver, host, port and dbname,
// adding the credentials in the form the driver expects.
func (c Config) dsn() (string, error) {
	switch c.Driver {
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = c.User
		mc.Passwd = c.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
		mc.DBName = c.DBName
		mc.ParseTime = true
		return mc.FormatDSN(), nil
	case DriverPgSQL:
		u := url.URL{
			Scheme: "postgres",
			User:   url.UserPassword(c.User, c.Password),
			Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
			Path:   "/" + c.DBName,
		}
		if c.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
		}
		return u.String(), nil
	case DriverSQLite:
		return c.DBName, nil
	}
	return "", &ConfigurationError{Field: "driver", Value: c.Driver}
}
