package prefixdb

import (
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// Sentinel errors for matching with errors.Is regardless of the details
// carried by the concrete error value.
var (
	ErrConfiguration = errors.New("prefixdb: configuration error")
	ErrConnection    = errors.New("prefixdb: connection error")
	ErrQuery         = errors.New("prefixdb: query error")
	ErrClosed        = errors.New("prefixdb: connection is closed")
)

// ConfigurationError is returned for a missing required property, an
// unsupported driver or a request for an unknown named connection.
type ConfigurationError struct {
	Field      string // Missing or invalid property, e.g. "user".
	Value      string // Offending value for invalid properties.
	Connection string // Unknown connection name.
}

// Error returns a message naming the property or connection at fault.
func (e *ConfigurationError) Error() string {
	switch {
	case e.Connection != "":
		return fmt.Sprintf("prefixdb: no configuration available for connection %q", e.Connection)
	case e.Value != "":
		return fmt.Sprintf("prefixdb: unsupported %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("prefixdb: database configuration missing required property %q", e.Field)
}

// Is matches ErrConfiguration and any *ConfigurationError about the same
// field and connection.
func (e *ConfigurationError) Is(target error) bool {
	if target == ErrConfiguration {
		return true
	}
	if t, ok := target.(*ConfigurationError); ok {
		return t.Field == e.Field && t.Connection == e.Connection
	}
	return false
}

// ConnectionError is returned when the driver cannot establish a handle.
type ConnectionError struct {
	Driver string
	Err    error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("prefixdb: open %s connection: %v", e.Driver, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

func (e *ConnectionError) Is(target error) bool { return target == ErrConnection }

// QueryError wraps any failure while preparing, executing or fetching a statement.
// Number and SQLState are filled in when the server is MySQL.
type QueryError struct {
	Query    string  // Final query text sent to the driver.
	Number   uint16  // MySQL error number, zero otherwise.
	SQLState [5]byte // MySQL SQL state, zero otherwise.
	Err      error   // Underlying driver error.
}

// Error returns the message formatted with the MySQL number and state when present.
func (e *QueryError) Error() string {
	if e.Number != 0 {
		if e.SQLState != [5]byte{} {
			return fmt.Sprintf("prefixdb: Error %d (%s): %s", e.Number, e.SQLState[:], mysqlMessage(e.Err))
		}
		return fmt.Sprintf("prefixdb: Error %d: %s", e.Number, mysqlMessage(e.Err))
	}
	return fmt.Sprintf("prefixdb: query failed: %v", e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// Is matches ErrQuery and, for MySQL errors, any *QueryError with the same number.
func (e *QueryError) Is(target error) bool {
	if target == ErrQuery {
		return true
	}
	if t, ok := target.(*QueryError); ok {
		return t.Number != 0 && t.Number == e.Number
	}
	return false
}

// newQueryError wraps err for query, unpacking MySQL server errors.
// Errors that already are a *QueryError are returned unchanged.
func newQueryError(query string, err error) error {
	var qe *QueryError
	if errors.As(err, &qe) {
		return err
	}
	qe = &QueryError{Query: query, Err: err}
	var sqlErr *mysql.MySQLError
	if errors.As(err, &sqlErr) {
		qe.Number = sqlErr.Number
		qe.SQLState = sqlErr.SQLState
	}
	return qe
}

func mysqlMessage(err error) string {
	var sqlErr *mysql.MySQLError
	if errors.As(err, &sqlErr) {
		return sqlErr.Message
	}
	return err.Error()
}
