package service

import (
	"github.com/godbus/dbus/v5"
)

// D-Bus error names used by the Secret Service API
const (
	ErrIsLocked     = "org.freedesktop.Secret.Error.IsLocked"
	ErrNoSession    = "org.freedesktop.Secret.Error.NoSession"
	ErrNoSuchObject = "org.freedesktop.Secret.Error.NoSuchObject"
	ErrNotSupported = "org.freedesktop.DBus.Error.NotSupported"
	ErrInvalidArgs  = "org.freedesktop.DBus.Error.InvalidArgs"
)

// NewDBusError creates a new D-Bus error
func NewDBusError(name, message string) *dbus.Error {
	return &dbus.Error{
		Name: name,
		Body: []interface{}{message},
	}
}

// ErrSessionNotFound returns a NoSession error
func ErrSessionNotFound(msg string) *dbus.Error {
	return NewDBusError(ErrNoSession, msg)
}

// ErrObjectNotFound returns a NoSuchObject error
func ErrObjectNotFound(msg string) *dbus.Error {
	return NewDBusError(ErrNoSuchObject, msg)
}

// ErrUnsupported returns a NotSupported error
func ErrUnsupported(msg string) *dbus.Error {
	return NewDBusError(ErrNotSupported, msg)
}

// ErrBadArgs returns an InvalidArgs error
func ErrBadArgs(msg string) *dbus.Error {
	return NewDBusError(ErrInvalidArgs, msg)
}
