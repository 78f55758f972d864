package config

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationError names one setting that failed validation.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s %s, got %v", e.Field, e.Message, e.Value)
}

// ValidationErrors is every setting Validate rejected, in check order.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d invalid settings: %s", len(e), strings.Join(msgs, "; "))
}

// ValidDrivers returns the accepted store.driver values.
func ValidDrivers() []string {
	return []string{DriverMemory, DriverFile, DriverPostgres}
}

// ValidLogLevels returns the accepted logging.level values.
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidLogFormats returns the accepted logging.format values.
func ValidLogFormats() []string {
	return []string{"json", "text"}
}

// Validate returns every invalid value in c.
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError

	if strings.TrimSpace(c.App.Name) == "" {
		errs = append(errs, ValidationError{Field: "app.name", Value: c.App.Name, Message: "must not be empty"})
	}
	if c.Server.Addr == "" {
		errs = append(errs, ValidationError{Field: "server.addr", Value: c.Server.Addr, Message: "must not be empty"})
	}
	if c.Server.ShutdownTimeout < 0 {
		errs = append(errs, ValidationError{Field: "server.shutdown_timeout", Value: c.Server.ShutdownTimeout, Message: "must not be negative"})
	}
	for _, origin := range c.Server.CORSAllowedOrigins {
		if strings.TrimSpace(origin) == "" {
			errs = append(errs, ValidationError{Field: "server.cors_allowed_origins", Value: c.Server.CORSAllowedOrigins, Message: "must not contain empty origins"})
			break
		}
	}

	switch c.Store.Driver {
	case DriverFile:
		if c.Store.Path == "" {
			errs = append(errs, ValidationError{Field: "store.path", Value: c.Store.Path, Message: "is required for the file driver"})
		}
	case DriverPostgres:
		if c.Store.DatabaseURL == "" {
			errs = append(errs, ValidationError{Field: "store.database_url", Value: c.Store.DatabaseURL, Message: "is required for the postgres driver"})
		}
	case DriverMemory:
	default:
		errs = append(errs, ValidationError{
			Field:   "store.driver",
			Value:   c.Store.Driver,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidDrivers(), ", ")),
		})
	}

	if !slices.Contains(ValidLogLevels(), strings.ToLower(c.Logging.Level)) {
		errs = append(errs, ValidationError{
			Field:   "logging.level",
			Value:   c.Logging.Level,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
		})
	}
	if !slices.Contains(ValidLogFormats(), strings.ToLower(c.Logging.Format)) {
		errs = append(errs, ValidationError{
			Field:   "logging.format",
			Value:   c.Logging.Format,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogFormats(), ", ")),
		})
	}
	return errs
}
