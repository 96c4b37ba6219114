package service

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	dbtypes "github.com/qba10/secretsd/internal/dbus"
)

// PropGetter computes a property value for the invoked object path
type PropGetter func(path dbus.ObjectPath) (interface{}, *dbus.Error)

// PropSetter applies a property write for the invoked object path
type PropSetter func(path dbus.ObjectPath, value dbus.Variant) *dbus.Error

// Prop describes one property: a getter, a setter, or a static value.
// The getter wins over Value when both are present; a nil setter makes
// the property read-only.
type Prop struct {
	Get   PropGetter
	Set   PropSetter
	Value interface{}
}

// Properties implements org.freedesktop.DBus.Properties for a single
// interface. Getters and setters receive the invoked object path, so
// one instance can serve a fixed path or a whole subtree of paths
// (the item fallback).
type Properties struct {
	iface string
	table map[string]*Prop
}

// NewProperties creates a property dispatcher for the given interface
func NewProperties(iface string, table map[string]*Prop) *Properties {
	return &Properties{iface: iface, table: table}
}

// Get implements org.freedesktop.DBus.Properties.Get
func (p *Properties) Get(msg dbus.Message, iface, name string) (dbus.Variant, *dbus.Error) {
	if iface != p.iface {
		return dbus.Variant{}, ErrBadArgs(fmt.Sprintf("unknown interface: %s", iface))
	}
	prop, ok := p.table[name]
	if !ok {
		return dbus.Variant{}, ErrBadArgs(fmt.Sprintf("unknown property: %s", name))
	}

	if prop.Get != nil {
		value, err := prop.Get(messagePath(msg))
		if err != nil {
			return dbus.Variant{}, err
		}
		return dbus.MakeVariant(value), nil
	}
	return dbus.MakeVariant(prop.Value), nil
}

// GetAll implements org.freedesktop.DBus.Properties.GetAll. Properties
// whose getter fails for the invoked path are left out of the result.
func (p *Properties) GetAll(msg dbus.Message, iface string) (map[string]dbus.Variant, *dbus.Error) {
	if iface != p.iface {
		return nil, ErrBadArgs(fmt.Sprintf("unknown interface: %s", iface))
	}

	path := messagePath(msg)
	all := make(map[string]dbus.Variant, len(p.table))
	for name, prop := range p.table {
		if prop.Get != nil {
			value, err := prop.Get(path)
			if err != nil {
				continue
			}
			all[name] = dbus.MakeVariant(value)
			continue
		}
		all[name] = dbus.MakeVariant(prop.Value)
	}
	return all, nil
}

// Set implements org.freedesktop.DBus.Properties.Set
func (p *Properties) Set(msg dbus.Message, iface, name string, value dbus.Variant) *dbus.Error {
	if iface != p.iface {
		return ErrBadArgs(fmt.Sprintf("unknown interface: %s", iface))
	}
	prop, ok := p.table[name]
	if !ok {
		return ErrBadArgs(fmt.Sprintf("unknown property: %s", name))
	}
	if prop.Set == nil {
		return ErrBadArgs(fmt.Sprintf("property is read-only: %s", name))
	}
	return prop.Set(messagePath(msg), value)
}

// messagePath extracts the invoked object path from a method call
func messagePath(msg dbus.Message) dbus.ObjectPath {
	v, ok := msg.Headers[dbus.FieldPath]
	if !ok {
		return dbtypes.NoObject
	}
	path, ok := v.Value().(dbus.ObjectPath)
	if !ok {
		return dbtypes.NoObject
	}
	return path
}

// introspect serves static introspection XML
type introspect string

func (i introspect) Introspect() (string, *dbus.Error) {
	return string(i), nil
}

// propertiesIntroXML is the introspection fragment shared by every
// object that exposes properties
const propertiesIntroXML = `  <interface name="org.freedesktop.DBus.Properties">
    <method name="Get">
      <arg name="interface" type="s" direction="in"/>
      <arg name="property" type="s" direction="in"/>
      <arg name="value" type="v" direction="out"/>
    </method>
    <method name="Set">
      <arg name="interface" type="s" direction="in"/>
      <arg name="property" type="s" direction="in"/>
      <arg name="value" type="v" direction="in"/>
    </method>
    <method name="GetAll">
      <arg name="interface" type="s" direction="in"/>
      <arg name="properties" type="a{sv}" direction="out"/>
    </method>
  </interface>
`
