package dbus

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func TestCollectionPath(t *testing.T) {
	path := CollectionPath(7)
	expected := dbus.ObjectPath("/org/freedesktop/secrets/collection/c7")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestItemPath(t *testing.T) {
	path := ItemPath(0)
	expected := dbus.ObjectPath("/org/freedesktop/secrets/item/i0")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestSessionPath(t *testing.T) {
	path := SessionPath(12)
	expected := dbus.ObjectPath("/org/freedesktop/secrets/session/s12")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestAliasPath(t *testing.T) {
	path := AliasPath("default")
	expected := dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
	if path != expected {
		t.Errorf("Expected %s, got %s", expected, path)
	}
}

func TestIsItemPath(t *testing.T) {
	tests := []struct {
		path     dbus.ObjectPath
		expected bool
	}{
		{"/org/freedesktop/secrets/item/i0", true},
		{"/org/freedesktop/secrets/item/i42", true},
		{"/org/freedesktop/secrets/item", false},
		{"/org/freedesktop/secrets/item/i0/extra", false},
		{"/org/freedesktop/secrets/session/s0", false},
		{"/", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.path), func(t *testing.T) {
			if got := IsItemPath(tc.path); got != tc.expected {
				t.Errorf("IsItemPath(%s) = %v, want %v", tc.path, got, tc.expected)
			}
		})
	}
}

func TestIsSessionPath(t *testing.T) {
	tests := []struct {
		path     dbus.ObjectPath
		expected bool
	}{
		{"/org/freedesktop/secrets/session/s0", true},
		{"/org/freedesktop/secrets/session", false},
		{"/org/freedesktop/secrets/item/i0", false},
	}

	for _, tc := range tests {
		t.Run(string(tc.path), func(t *testing.T) {
			if got := IsSessionPath(tc.path); got != tc.expected {
				t.Errorf("IsSessionPath(%s) = %v, want %v", tc.path, got, tc.expected)
			}
		})
	}
}

func TestParseAliasPath(t *testing.T) {
	tests := []struct {
		path     dbus.ObjectPath
		expected string
		hasError bool
	}{
		{"/org/freedesktop/secrets/aliases/default", "default", false},
		{"/org/freedesktop/secrets/collection/c0", "", true},
		{"/invalid/path", "", true},
	}

	for _, tc := range tests {
		t.Run(string(tc.path), func(t *testing.T) {
			result, err := ParseAliasPath(tc.path)
			if tc.hasError {
				if err == nil {
					t.Error("Expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if result != tc.expected {
				t.Errorf("Expected %s, got %s", tc.expected, result)
			}
		})
	}
}
