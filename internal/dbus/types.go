package dbus

import (
	"github.com/godbus/dbus/v5"
)

// Secret represents a secret as transferred over D-Bus.
// Format: (oayays) - session path, parameters, value, content-type
type Secret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// SecretServiceInterface is the D-Bus interface name for the Secret Service
const SecretServiceInterface = "org.freedesktop.Secret.Service"

// CollectionInterface is the D-Bus interface name for collections
const CollectionInterface = "org.freedesktop.Secret.Collection"

// ItemInterface is the D-Bus interface name for items
const ItemInterface = "org.freedesktop.Secret.Item"

// SessionInterface is the D-Bus interface name for sessions
const SessionInterface = "org.freedesktop.Secret.Session"

// PropertiesInterface is the standard D-Bus properties interface
const PropertiesInterface = "org.freedesktop.DBus.Properties"

// IntrospectableInterface is the standard D-Bus introspection interface
const IntrospectableInterface = "org.freedesktop.DBus.Introspectable"

// ServiceName is the well-known D-Bus name for the Secret Service
const ServiceName = "org.freedesktop.secrets"

// ServicePath is the object path for the Secret Service
const ServicePath = dbus.ObjectPath("/org/freedesktop/secrets")

// CollectionBasePath is the base path for collections
const CollectionBasePath = "/org/freedesktop/secrets/collection"

// ItemBasePath is the base path for items. A single fallback handler
// serves every path beneath it.
const ItemBasePath = "/org/freedesktop/secrets/item"

// SessionBasePath is the base path for sessions
const SessionBasePath = "/org/freedesktop/secrets/session"

// AliasBasePath is the base path for collection aliases
const AliasBasePath = "/org/freedesktop/secrets/aliases"

// NoObject is the null object path, used where the API requires an
// object reference but none is meaningful (e.g. "no prompt needed")
const NoObject = dbus.ObjectPath("/")

// Attribute keys the service maintains on every item
const (
	AttrCollection = "xdg:collection"
	AttrSchema     = "xdg:schema"
)

// DefaultSchema is the schema recorded on items that do not name one
const DefaultSchema = "org.freedesktop.Secret.Generic"

// Item property names as they appear in CreateItem properties dicts
const (
	ItemLabelProperty      = "org.freedesktop.Secret.Item.Label"
	ItemAttributesProperty = "org.freedesktop.Secret.Item.Attributes"
)

// CollectionLabelProperty is the label key in CreateCollection properties dicts
const CollectionLabelProperty = "org.freedesktop.Secret.Collection.Label"

// Algorithm names
const (
	AlgorithmPlain = "plain"
)
