package service

import (
	"sync"

	"github.com/godbus/dbus/v5"

	dbtypes "github.com/qba10/secretsd/internal/dbus"
)

// Collection is a D-Bus object grouping items under an alias. Items
// belong to it solely through their xdg:collection attribute; the
// object itself holds only the label cache.
type Collection struct {
	svc   *Service
	path  dbus.ObjectPath
	alias string

	mu    sync.Mutex
	label string
}

func newCollection(svc *Service, path dbus.ObjectPath, alias, label string) *Collection {
	return &Collection{
		svc:   svc,
		path:  path,
		alias: alias,
		label: label,
	}
}

// Path returns the collection's D-Bus path
func (c *Collection) Path() dbus.ObjectPath {
	return c.path
}

// export publishes the collection at its canonical path and at its
// alias path.
func (c *Collection) export() error {
	conn := c.svc.conn

	for _, path := range []dbus.ObjectPath{c.path, dbtypes.AliasPath(c.alias)} {
		if err := conn.Export(c, path, dbtypes.CollectionInterface); err != nil {
			return err
		}
		if err := conn.Export(c.properties(), path, dbtypes.PropertiesInterface); err != nil {
			return err
		}
		if err := conn.Export(introspect(collectionIntroXML), path, dbtypes.IntrospectableInterface); err != nil {
			return err
		}
	}
	return nil
}

// CreateItem implements org.freedesktop.Secret.Collection.CreateItem.
// With replace set, an existing item whose attribute set equals the
// merged attribute set is overwritten instead of creating a new item.
func (c *Collection) CreateItem(properties map[string]dbus.Variant, secret dbtypes.Secret, replace bool) (dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	session, ok := c.svc.resolveSession(secret.Session)
	if !ok {
		return dbtypes.NoObject, dbtypes.NoObject, ErrSessionNotFound("session not found")
	}

	plaintext, err := session.Decrypt(secret.Parameters, secret.Value)
	if err != nil {
		return dbtypes.NoObject, dbtypes.NoObject, dbus.MakeFailedError(err)
	}

	label := ""
	if v, ok := properties[dbtypes.ItemLabelProperty]; ok {
		if l, ok := v.Value().(string); ok {
			label = l
		}
	}
	var attributes map[string]string
	if v, ok := properties[dbtypes.ItemAttributesProperty]; ok {
		if a, ok := v.Value().(map[string]string); ok {
			attributes = a
		}
	}
	attributes = mergeItemAttributes(attributes, c.path)

	if replace {
		if existing, derr := c.findEqualItem(attributes); derr != nil {
			return dbtypes.NoObject, dbtypes.NoObject, derr
		} else if existing != "" {
			if err := c.svc.store.SetSecret(string(existing), plaintext, secret.ContentType); err != nil {
				return dbtypes.NoObject, dbtypes.NoObject, dbus.MakeFailedError(err)
			}
			if err := c.svc.store.SetLabel(string(existing), label); err != nil {
				return dbtypes.NoObject, dbtypes.NoObject, dbus.MakeFailedError(err)
			}
			c.svc.emitItemChanged(c.path, existing)
			return existing, dbtypes.NoObject, nil
		}
	}

	itemPath := dbtypes.ItemPath(c.svc.allocatePathID())
	if err := c.svc.store.AddItem(string(itemPath), label, attributes, plaintext, secret.ContentType); err != nil {
		return dbtypes.NoObject, dbtypes.NoObject, dbus.MakeFailedError(err)
	}

	c.svc.emitItemCreated(c.path, itemPath)
	return itemPath, dbtypes.NoObject, nil
}

// findEqualItem returns the path of an item in this collection whose
// stored attribute set equals attrs, or "" when none does.
func (c *Collection) findEqualItem(attrs map[string]string) (dbus.ObjectPath, *dbus.Error) {
	candidates, err := c.svc.store.FindItems(attrs)
	if err != nil {
		return "", dbus.MakeFailedError(err)
	}
	for _, candidate := range candidates {
		stored, err := c.svc.store.GetAttributes(candidate)
		if err != nil {
			return "", dbus.MakeFailedError(err)
		}
		if attrsEqual(stored, attrs) {
			return dbus.ObjectPath(candidate), nil
		}
	}
	return "", nil
}

// SearchItems implements org.freedesktop.Secret.Collection.SearchItems.
// The search is scoped to this collection through the xdg:collection
// attribute.
func (c *Collection) SearchItems(attributes map[string]string) ([]dbus.ObjectPath, *dbus.Error) {
	match := make(map[string]string, len(attributes)+1)
	for k, v := range attributes {
		match[k] = v
	}
	match[dbtypes.AttrCollection] = string(c.path)

	objects, err := c.svc.store.FindItems(match)
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}

	paths := make([]dbus.ObjectPath, 0, len(objects))
	for _, object := range objects {
		paths = append(paths, dbus.ObjectPath(object))
	}
	return paths, nil
}

// Delete implements org.freedesktop.Secret.Collection.Delete
func (c *Collection) Delete() (dbus.ObjectPath, *dbus.Error) {
	return dbtypes.NoObject, ErrUnsupported("collections cannot be deleted")
}

func (c *Collection) getLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.label
}

func (c *Collection) setLabel(label string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.label = label
}

// properties builds the property table for the collection object.
// Items is computed from the store on every read.
func (c *Collection) properties() *Properties {
	return NewProperties(dbtypes.CollectionInterface, map[string]*Prop{
		"Items": {
			Get: func(dbus.ObjectPath) (interface{}, *dbus.Error) {
				objects, err := c.svc.store.FindItems(map[string]string{
					dbtypes.AttrCollection: string(c.path),
				})
				if err != nil {
					return nil, dbus.MakeFailedError(err)
				}
				paths := make([]dbus.ObjectPath, 0, len(objects))
				for _, object := range objects {
					paths = append(paths, dbus.ObjectPath(object))
				}
				return paths, nil
			},
		},
		"Label": {
			Get: func(dbus.ObjectPath) (interface{}, *dbus.Error) {
				return c.getLabel(), nil
			},
			Set: func(_ dbus.ObjectPath, value dbus.Variant) *dbus.Error {
				label, ok := value.Value().(string)
				if !ok {
					return ErrBadArgs("label must be a string")
				}
				c.setLabel(label)
				return nil
			},
		},
		"Locked":   {Value: false},
		"Created":  {Value: uint64(0)},
		"Modified": {Value: uint64(0)},
	})
}

// mergeItemAttributes ensures the xdg:collection and xdg:schema keys
// are present on every stored item.
func mergeItemAttributes(attrs map[string]string, collection dbus.ObjectPath) map[string]string {
	merged := make(map[string]string, len(attrs)+2)
	for k, v := range attrs {
		merged[k] = v
	}
	merged[dbtypes.AttrCollection] = string(collection)
	if _, ok := merged[dbtypes.AttrSchema]; !ok {
		merged[dbtypes.AttrSchema] = dbtypes.DefaultSchema
	}
	return merged
}

func attrsEqual(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if b[k] != v {
			return false
		}
	}
	return true
}

const collectionIntroXML = `<node>
` + propertiesIntroXML + `  <interface name="org.freedesktop.Secret.Collection">
    <method name="Delete">
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <method name="SearchItems">
      <arg name="attributes" type="a{ss}" direction="in"/>
      <arg name="results" type="ao" direction="out"/>
    </method>
    <method name="CreateItem">
      <arg name="properties" type="a{sv}" direction="in"/>
      <arg name="secret" type="(oayays)" direction="in"/>
      <arg name="replace" type="b" direction="in"/>
      <arg name="item" type="o" direction="out"/>
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <signal name="ItemCreated">
      <arg name="item" type="o"/>
    </signal>
    <signal name="ItemDeleted">
      <arg name="item" type="o"/>
    </signal>
    <signal name="ItemChanged">
      <arg name="item" type="o"/>
    </signal>
    <property name="Items" type="ao" access="read"/>
    <property name="Label" type="s" access="readwrite"/>
    <property name="Locked" type="b" access="read"/>
    <property name="Created" type="t" access="read"/>
    <property name="Modified" type="t" access="read"/>
  </interface>
</node>`
