package service

import (
	"testing"

	"github.com/godbus/dbus/v5"
)

func callMessage(path dbus.ObjectPath) dbus.Message {
	return dbus.Message{
		Headers: map[dbus.HeaderField]dbus.Variant{
			dbus.FieldPath: dbus.MakeVariant(path),
		},
	}
}

func testTable() *Properties {
	labels := map[dbus.ObjectPath]string{
		"/obj/a": "alpha",
	}

	return NewProperties("com.example.Iface", map[string]*Prop{
		"Label": {
			Get: func(path dbus.ObjectPath) (interface{}, *dbus.Error) {
				label, ok := labels[path]
				if !ok {
					return nil, ErrObjectNotFound("no such object")
				}
				return label, nil
			},
			Set: func(path dbus.ObjectPath, value dbus.Variant) *dbus.Error {
				label, ok := value.Value().(string)
				if !ok {
					return ErrBadArgs("label must be a string")
				}
				labels[path] = label
				return nil
			},
		},
		"Locked": {Value: false},
	})
}

func TestPropertiesGetStatic(t *testing.T) {
	p := testTable()

	v, err := p.Get(callMessage("/obj/a"), "com.example.Iface", "Locked")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Value() != false {
		t.Errorf("Expected false, got %v", v.Value())
	}
}

func TestPropertiesGetDynamic(t *testing.T) {
	p := testTable()

	v, err := p.Get(callMessage("/obj/a"), "com.example.Iface", "Label")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Value() != "alpha" {
		t.Errorf("Expected alpha, got %v", v.Value())
	}

	// The getter sees the invoked path, so an unknown path fails
	if _, err := p.Get(callMessage("/obj/b"), "com.example.Iface", "Label"); err == nil {
		t.Error("Expected error for unknown path")
	} else if err.Name != ErrNoSuchObject {
		t.Errorf("Expected %s, got %s", ErrNoSuchObject, err.Name)
	}
}

func TestPropertiesGetUnknown(t *testing.T) {
	p := testTable()

	if _, err := p.Get(callMessage("/obj/a"), "com.example.Other", "Label"); err == nil {
		t.Error("Expected error for unknown interface")
	} else if err.Name != ErrInvalidArgs {
		t.Errorf("Expected %s, got %s", ErrInvalidArgs, err.Name)
	}

	if _, err := p.Get(callMessage("/obj/a"), "com.example.Iface", "Nope"); err == nil {
		t.Error("Expected error for unknown property")
	} else if err.Name != ErrInvalidArgs {
		t.Errorf("Expected %s, got %s", ErrInvalidArgs, err.Name)
	}
}

func TestPropertiesGetAll(t *testing.T) {
	p := testTable()

	all, err := p.GetAll(callMessage("/obj/a"), "com.example.Iface")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected two properties, got %v", all)
	}
	if all["Label"].Value() != "alpha" {
		t.Errorf("Expected alpha, got %v", all["Label"].Value())
	}

	// Failing getters are skipped rather than failing the call
	all, err = p.GetAll(callMessage("/obj/b"), "com.example.Iface")
	if err != nil {
		t.Fatalf("GetAll failed: %v", err)
	}
	if _, ok := all["Label"]; ok {
		t.Error("Expected Label to be skipped for unknown path")
	}
	if _, ok := all["Locked"]; !ok {
		t.Error("Expected static Locked to survive")
	}
}

func TestPropertiesSet(t *testing.T) {
	p := testTable()

	if err := p.Set(callMessage("/obj/a"), "com.example.Iface", "Label", dbus.MakeVariant("beta")); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	v, err := p.Get(callMessage("/obj/a"), "com.example.Iface", "Label")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Value() != "beta" {
		t.Errorf("Expected beta, got %v", v.Value())
	}
}

func TestPropertiesSetReadOnly(t *testing.T) {
	p := testTable()

	err := p.Set(callMessage("/obj/a"), "com.example.Iface", "Locked", dbus.MakeVariant(true))
	if err == nil {
		t.Fatal("Expected error for read-only property")
	}
	if err.Name != ErrInvalidArgs {
		t.Errorf("Expected %s, got %s", ErrInvalidArgs, err.Name)
	}
}

func TestMergeItemAttributes(t *testing.T) {
	merged := mergeItemAttributes(map[string]string{"app": "x"}, "/org/freedesktop/secrets/collection/default")

	if merged["app"] != "x" {
		t.Errorf("Expected app=x, got %v", merged)
	}
	if merged["xdg:collection"] != "/org/freedesktop/secrets/collection/default" {
		t.Errorf("Expected collection path, got %v", merged)
	}
	if merged["xdg:schema"] != "org.freedesktop.Secret.Generic" {
		t.Errorf("Expected default schema, got %v", merged)
	}

	// A caller-supplied schema wins over the default
	merged = mergeItemAttributes(map[string]string{"xdg:schema": "com.example.Custom"}, "/c")
	if merged["xdg:schema"] != "com.example.Custom" {
		t.Errorf("Expected custom schema, got %v", merged)
	}
}

func TestAttrsEqual(t *testing.T) {
	tests := []struct {
		name     string
		a, b     map[string]string
		expected bool
	}{
		{"equal", map[string]string{"a": "1"}, map[string]string{"a": "1"}, true},
		{"different value", map[string]string{"a": "1"}, map[string]string{"a": "2"}, false},
		{"subset", map[string]string{"a": "1"}, map[string]string{"a": "1", "b": "2"}, false},
		{"empty", map[string]string{}, map[string]string{}, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := attrsEqual(tc.a, tc.b); got != tc.expected {
				t.Errorf("attrsEqual(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.expected)
			}
		})
	}
}
