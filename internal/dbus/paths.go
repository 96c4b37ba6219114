package dbus

import (
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// Object paths embed a value from the service's monotonic allocator.
// Collections use c<N>, items i<N> and sessions s<N>. The default
// collection is pinned at a fixed path so startup does not consume the
// allocator.

// DefaultCollectionPath is the object path of the default collection
const DefaultCollectionPath = dbus.ObjectPath(CollectionBasePath + "/default")

// CollectionPath returns the D-Bus object path for a collection
func CollectionPath(id uint64) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/c%d", CollectionBasePath, id))
}

// ItemPath returns the D-Bus object path for an item
func ItemPath(id uint64) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/i%d", ItemBasePath, id))
}

// SessionPath returns the D-Bus object path for a session
func SessionPath(id uint64) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/s%d", SessionBasePath, id))
}

// AliasPath returns the D-Bus object path for a collection alias
func AliasPath(alias string) dbus.ObjectPath {
	return dbus.ObjectPath(fmt.Sprintf("%s/%s", AliasBasePath, alias))
}

// IsItemPath reports whether path lies directly under the item prefix
func IsItemPath(path dbus.ObjectPath) bool {
	return isChildOf(path, ItemBasePath)
}

// IsSessionPath reports whether path lies directly under the session prefix
func IsSessionPath(path dbus.ObjectPath) bool {
	return isChildOf(path, SessionBasePath)
}

// IsCollectionPath reports whether path lies directly under the collection prefix
func IsCollectionPath(path dbus.ObjectPath) bool {
	return isChildOf(path, CollectionBasePath)
}

// ParseAliasPath extracts the alias name from a D-Bus path
func ParseAliasPath(path dbus.ObjectPath) (string, error) {
	prefix := AliasBasePath + "/"
	if !strings.HasPrefix(string(path), prefix) {
		return "", fmt.Errorf("invalid alias path: %s", path)
	}
	return strings.TrimPrefix(string(path), prefix), nil
}

func isChildOf(path dbus.ObjectPath, base string) bool {
	prefix := base + "/"
	if !strings.HasPrefix(string(path), prefix) {
		return false
	}
	rest := strings.TrimPrefix(string(path), prefix)
	return rest != "" && !strings.Contains(rest, "/")
}
