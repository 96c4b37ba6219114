package service

import (
	"fmt"

	"github.com/godbus/dbus/v5"

	dbtypes "github.com/qba10/secretsd/internal/dbus"
	"github.com/qba10/secretsd/internal/store"
)

// ItemHandler is the fallback object serving every item path. It holds
// no per-item state: each call consults the store using the invoked
// object path as the key.
type ItemHandler struct {
	svc *Service
}

// Delete implements org.freedesktop.Secret.Item.Delete
func (h *ItemHandler) Delete(msg dbus.Message) (dbus.ObjectPath, *dbus.Error) {
	path := messagePath(msg)

	exists, err := h.svc.store.ItemExists(string(path))
	if err != nil {
		return dbtypes.NoObject, dbus.MakeFailedError(err)
	}
	if !exists {
		return dbtypes.NoObject, ErrObjectNotFound(fmt.Sprintf("no such item: %s", path))
	}

	collection := h.owningCollection(path)
	if err := h.svc.store.DeleteItem(string(path)); err != nil {
		return dbtypes.NoObject, dbus.MakeFailedError(err)
	}

	if collection != dbtypes.NoObject {
		h.svc.emitItemDeleted(collection, path)
	}
	return dbtypes.NoObject, nil
}

// GetSecret implements org.freedesktop.Secret.Item.GetSecret
func (h *ItemHandler) GetSecret(msg dbus.Message, sessionPath dbus.ObjectPath) (dbtypes.Secret, *dbus.Error) {
	path := messagePath(msg)

	session, ok := h.svc.resolveSession(sessionPath)
	if !ok {
		return dbtypes.Secret{}, ErrSessionNotFound("session not found")
	}

	row, err := h.svc.store.GetSecret(string(path))
	if err != nil {
		return dbtypes.Secret{}, dbus.MakeFailedError(err)
	}
	if row == nil {
		return dbtypes.Secret{}, ErrObjectNotFound(fmt.Sprintf("no such item: %s", path))
	}

	params, ciphertext, err := session.Encrypt(row.Secret)
	if err != nil {
		return dbtypes.Secret{}, dbus.MakeFailedError(err)
	}

	return dbtypes.Secret{
		Session:     sessionPath,
		Parameters:  params,
		Value:       ciphertext,
		ContentType: row.ContentType,
	}, nil
}

// SetSecret implements org.freedesktop.Secret.Item.SetSecret. Both the
// secret bytes and the content type are replaced.
func (h *ItemHandler) SetSecret(msg dbus.Message, secret dbtypes.Secret) *dbus.Error {
	path := messagePath(msg)

	session, ok := h.svc.resolveSession(secret.Session)
	if !ok {
		return ErrSessionNotFound("session not found")
	}

	plaintext, err := session.Decrypt(secret.Parameters, secret.Value)
	if err != nil {
		return dbus.MakeFailedError(err)
	}

	exists, err := h.svc.store.ItemExists(string(path))
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	if !exists {
		return ErrObjectNotFound(fmt.Sprintf("no such item: %s", path))
	}

	if err := h.svc.store.SetSecret(string(path), plaintext, secret.ContentType); err != nil {
		return dbus.MakeFailedError(err)
	}

	if collection := h.owningCollection(path); collection != dbtypes.NoObject {
		h.svc.emitItemChanged(collection, path)
	}
	return nil
}

// owningCollection resolves the collection an item belongs to through
// its xdg:collection attribute.
func (h *ItemHandler) owningCollection(path dbus.ObjectPath) dbus.ObjectPath {
	attrs, err := h.svc.store.GetAttributes(string(path))
	if err != nil {
		return dbtypes.NoObject
	}
	collection, ok := attrs[dbtypes.AttrCollection]
	if !ok {
		return dbtypes.NoObject
	}
	return dbus.ObjectPath(collection)
}

// properties builds the property table shared by all item paths. Every
// getter and setter fails NoSuchObject when the invoked path has no
// backing rows.
func (h *ItemHandler) properties() *Properties {
	return NewProperties(dbtypes.ItemInterface, map[string]*Prop{
		"Attributes": {
			Get: func(path dbus.ObjectPath) (interface{}, *dbus.Error) {
				if derr := h.requireItem(path); derr != nil {
					return nil, derr
				}
				attrs, err := h.svc.store.GetAttributes(string(path))
				if err != nil {
					return nil, dbus.MakeFailedError(err)
				}
				if _, ok := attrs[dbtypes.AttrSchema]; !ok {
					attrs[dbtypes.AttrSchema] = dbtypes.DefaultSchema
				}
				return attrs, nil
			},
			Set: func(path dbus.ObjectPath, value dbus.Variant) *dbus.Error {
				attrs, ok := value.Value().(map[string]string)
				if !ok {
					return ErrBadArgs("attributes must be a string map")
				}
				if derr := h.requireItem(path); derr != nil {
					return derr
				}
				if err := h.svc.store.SetAttributes(string(path), attrs); err != nil {
					return dbus.MakeFailedError(err)
				}
				if collection := h.owningCollection(path); collection != dbtypes.NoObject {
					h.svc.emitItemChanged(collection, path)
				}
				return nil
			},
		},
		"Label": {
			Get: func(path dbus.ObjectPath) (interface{}, *dbus.Error) {
				meta, derr := h.requireMetadata(path)
				if derr != nil {
					return nil, derr
				}
				return meta.Label, nil
			},
			Set: func(path dbus.ObjectPath, value dbus.Variant) *dbus.Error {
				label, ok := value.Value().(string)
				if !ok {
					return ErrBadArgs("label must be a string")
				}
				if derr := h.requireItem(path); derr != nil {
					return derr
				}
				if err := h.svc.store.SetLabel(string(path), label); err != nil {
					return dbus.MakeFailedError(err)
				}
				if collection := h.owningCollection(path); collection != dbtypes.NoObject {
					h.svc.emitItemChanged(collection, path)
				}
				return nil
			},
		},
		"Created": {
			Get: func(path dbus.ObjectPath) (interface{}, *dbus.Error) {
				meta, derr := h.requireMetadata(path)
				if derr != nil {
					return nil, derr
				}
				return meta.Created, nil
			},
		},
		"Modified": {
			Get: func(path dbus.ObjectPath) (interface{}, *dbus.Error) {
				meta, derr := h.requireMetadata(path)
				if derr != nil {
					return nil, derr
				}
				return meta.Modified, nil
			},
		},
		"Locked": {Value: false},
	})
}

func (h *ItemHandler) requireItem(path dbus.ObjectPath) *dbus.Error {
	exists, err := h.svc.store.ItemExists(string(path))
	if err != nil {
		return dbus.MakeFailedError(err)
	}
	if !exists {
		return ErrObjectNotFound(fmt.Sprintf("no such item: %s", path))
	}
	return nil
}

func (h *ItemHandler) requireMetadata(path dbus.ObjectPath) (*store.Metadata, *dbus.Error) {
	meta, err := h.svc.store.GetMetadata(string(path))
	if err != nil {
		return nil, dbus.MakeFailedError(err)
	}
	if meta == nil {
		return nil, ErrObjectNotFound(fmt.Sprintf("no such item: %s", path))
	}
	return meta, nil
}

const itemIntroXML = `<node>
` + propertiesIntroXML + `  <interface name="org.freedesktop.Secret.Item">
    <method name="Delete">
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <method name="GetSecret">
      <arg name="session" type="o" direction="in"/>
      <arg name="secret" type="(oayays)" direction="out"/>
    </method>
    <method name="SetSecret">
      <arg name="secret" type="(oayays)" direction="in"/>
    </method>
    <property name="Locked" type="b" access="read"/>
    <property name="Attributes" type="a{ss}" access="readwrite"/>
    <property name="Label" type="s" access="readwrite"/>
    <property name="Created" type="t" access="read"/>
    <property name="Modified" type="t" access="read"/>
  </interface>
</node>`
