// Package service implements the org.freedesktop.Secret.Service D-Bus
// surface: the root service object, the default collection, the
// fallback item handler and per-client crypto sessions.
package service

import (
	"fmt"
	"log"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/qba10/secretsd/internal/config"
	"github.com/qba10/secretsd/internal/crypto"
	dbtypes "github.com/qba10/secretsd/internal/dbus"
	"github.com/qba10/secretsd/internal/store"
)

// Service implements the org.freedesktop.Secret.Service interface. It
// owns the session registry, the collection registry, the alias map
// and the object-path allocator.
type Service struct {
	conn     *dbus.Conn
	store    *store.Store
	cfg      *config.Config
	sessions *sessionRegistry

	mu          sync.RWMutex
	collections []*Collection
	aliases     map[string]dbus.ObjectPath

	// nextID is the monotonic object-path allocator. It is never
	// reset and never reused within a process lifetime.
	idMu   sync.Mutex
	nextID uint64
}

// New connects to the session bus and opens the database
func New(cfg *config.Config) (*Service, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}

	db, err := store.Open(cfg.Database)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return &Service{
		conn:     conn,
		store:    db,
		cfg:      cfg,
		sessions: newSessionRegistry(),
		aliases:  make(map[string]dbus.ObjectPath),
	}, nil
}

// Start exports all objects, acquires the well-known bus name and
// ensures the default collection exists.
func (s *Service) Start() error {
	if err := s.conn.Export(s, dbtypes.ServicePath, dbtypes.SecretServiceInterface); err != nil {
		return fmt.Errorf("failed to export service: %w", err)
	}
	if err := s.conn.Export(s.properties(), dbtypes.ServicePath, dbtypes.PropertiesInterface); err != nil {
		return fmt.Errorf("failed to export service properties: %w", err)
	}
	if err := s.conn.Export(introspect(serviceIntroXML), dbtypes.ServicePath, dbtypes.IntrospectableInterface); err != nil {
		return fmt.Errorf("failed to export introspection: %w", err)
	}

	// One stateless handler serves every item path beneath the prefix
	items := &ItemHandler{svc: s}
	if err := s.conn.ExportSubtree(items, dbtypes.ItemBasePath, dbtypes.ItemInterface); err != nil {
		return fmt.Errorf("failed to export item handler: %w", err)
	}
	if err := s.conn.ExportSubtree(items.properties(), dbtypes.ItemBasePath, dbtypes.PropertiesInterface); err != nil {
		return fmt.Errorf("failed to export item properties: %w", err)
	}
	if err := s.conn.ExportSubtree(introspect(itemIntroXML), dbtypes.ItemBasePath, dbtypes.IntrospectableInterface); err != nil {
		return fmt.Errorf("failed to export item introspection: %w", err)
	}

	if err := s.ensureDefaultCollection(); err != nil {
		return fmt.Errorf("failed to create default collection: %w", err)
	}

	if err := s.watchClients(); err != nil {
		return fmt.Errorf("failed to subscribe to client teardown: %w", err)
	}

	flags := dbus.NameFlagDoNotQueue
	if s.cfg.Replace {
		flags |= dbus.NameFlagReplaceExisting
	}
	reply, err := s.conn.RequestName(dbtypes.ServiceName, flags)
	if err != nil {
		return fmt.Errorf("failed to request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return fmt.Errorf("name %s already taken", dbtypes.ServiceName)
	}

	log.Printf("Acquired D-Bus name: %s", dbtypes.ServiceName)
	return nil
}

// Stop closes all sessions, releases the bus name and shuts down
func (s *Service) Stop() error {
	for _, session := range s.sessions.all() {
		session.teardown()
	}

	if _, err := s.conn.ReleaseName(dbtypes.ServiceName); err != nil {
		return err
	}
	if err := s.conn.Close(); err != nil {
		return err
	}
	return s.store.Close()
}

// allocatePathID returns the next value of the object-path allocator
func (s *Service) allocatePathID() uint64 {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.nextID
	s.nextID++
	return id
}

// OpenSession implements org.freedesktop.Secret.Service.OpenSession.
// Both supported algorithms complete the exchange in one round, so the
// session path is always returned immediately.
func (s *Service) OpenSession(sender dbus.Sender, algorithm string, input dbus.Variant) (dbus.Variant, dbus.ObjectPath, *dbus.Error) {
	var inputBytes []byte
	if v, ok := input.Value().([]byte); ok {
		inputBytes = v
	}

	cryptoSession, output, err := crypto.NewSession(algorithm, inputBytes)
	if err != nil {
		return dbus.MakeVariant([]byte{}), dbtypes.NoObject, ErrUnsupported(err.Error())
	}

	session := &Session{
		path:     dbtypes.SessionPath(s.allocatePathID()),
		sender:   string(sender),
		crypto:   cryptoSession,
		conn:     s.conn,
		registry: s.sessions,
	}

	if err := s.conn.Export(session, session.path, dbtypes.SessionInterface); err != nil {
		cryptoSession.Close()
		return dbus.MakeVariant([]byte{}), dbtypes.NoObject, dbus.MakeFailedError(err)
	}
	if err := s.conn.Export(introspect(sessionIntroXML), session.path, dbtypes.IntrospectableInterface); err != nil {
		s.conn.Export(nil, session.path, dbtypes.SessionInterface)
		cryptoSession.Close()
		return dbus.MakeVariant([]byte{}), dbtypes.NoObject, dbus.MakeFailedError(err)
	}

	s.sessions.add(session)

	return dbus.MakeVariant(output), session.path, nil
}

// CreateCollection implements org.freedesktop.Secret.Service.CreateCollection.
// Only the "default" alias is supported; it always resolves to the
// collection created at startup.
func (s *Service) CreateCollection(properties map[string]dbus.Variant, alias string) (dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if path, ok := s.aliases[alias]; ok {
		return path, dbtypes.NoObject, nil
	}
	return dbtypes.NoObject, dbtypes.NoObject, ErrUnsupported(fmt.Sprintf("unsupported alias: %q", alias))
}

// SearchItems implements org.freedesktop.Secret.Service.SearchItems.
// All collections are permanently unlocked, so the locked list is
// always empty.
func (s *Service) SearchItems(attributes map[string]string) ([]dbus.ObjectPath, []dbus.ObjectPath, *dbus.Error) {
	objects, err := s.store.FindItems(attributes)
	if err != nil {
		return nil, nil, dbus.MakeFailedError(err)
	}

	unlocked := make([]dbus.ObjectPath, 0, len(objects))
	for _, object := range objects {
		unlocked = append(unlocked, dbus.ObjectPath(object))
	}
	return unlocked, []dbus.ObjectPath{}, nil
}

// Unlock implements org.freedesktop.Secret.Service.Unlock. Everything
// is already unlocked; the input is echoed back with no prompt.
func (s *Service) Unlock(objects []dbus.ObjectPath) ([]dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	return objects, dbtypes.NoObject, nil
}

// Lock implements org.freedesktop.Secret.Service.Lock
func (s *Service) Lock(objects []dbus.ObjectPath) ([]dbus.ObjectPath, dbus.ObjectPath, *dbus.Error) {
	return nil, dbtypes.NoObject, ErrUnsupported("locking is not supported")
}

// GetSecrets implements org.freedesktop.Secret.Service.GetSecrets.
// Paths without backing rows are left out of the reply.
func (s *Service) GetSecrets(items []dbus.ObjectPath, session dbus.ObjectPath) (map[dbus.ObjectPath]dbtypes.Secret, *dbus.Error) {
	sess, ok := s.sessions.get(session)
	if !ok {
		return nil, ErrSessionNotFound("session not found")
	}

	secrets := make(map[dbus.ObjectPath]dbtypes.Secret)
	for _, path := range items {
		row, err := s.store.GetSecret(string(path))
		if err != nil {
			return nil, dbus.MakeFailedError(err)
		}
		if row == nil {
			continue
		}

		params, ciphertext, err := sess.Encrypt(row.Secret)
		if err != nil {
			return nil, dbus.MakeFailedError(err)
		}

		secrets[path] = dbtypes.Secret{
			Session:     session,
			Parameters:  params,
			Value:       ciphertext,
			ContentType: row.ContentType,
		}
	}
	return secrets, nil
}

// ReadAlias implements org.freedesktop.Secret.Service.ReadAlias
func (s *Service) ReadAlias(name string) (dbus.ObjectPath, *dbus.Error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if path, ok := s.aliases[name]; ok {
		return path, nil
	}
	return dbtypes.NoObject, nil
}

// SetAlias implements org.freedesktop.Secret.Service.SetAlias
func (s *Service) SetAlias(name string, collection dbus.ObjectPath) *dbus.Error {
	return ErrUnsupported("aliases cannot be changed")
}

// resolveSession looks up a session by path for secret transfers
func (s *Service) resolveSession(path dbus.ObjectPath) (*Session, bool) {
	return s.sessions.get(path)
}

// collectionPaths returns the paths of all live collections
func (s *Service) collectionPaths() []dbus.ObjectPath {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]dbus.ObjectPath, 0, len(s.collections))
	for _, coll := range s.collections {
		paths = append(paths, coll.Path())
	}
	return paths
}

// properties builds the property table for the service object
func (s *Service) properties() *Properties {
	return NewProperties(dbtypes.SecretServiceInterface, map[string]*Prop{
		"Collections": {
			Get: func(dbus.ObjectPath) (interface{}, *dbus.Error) {
				return s.collectionPaths(), nil
			},
		},
	})
}

// ensureDefaultCollection creates and exports the default collection.
// Its path is pinned so startup never consumes the allocator.
func (s *Service) ensureDefaultCollection() error {
	coll := newCollection(s, dbtypes.DefaultCollectionPath, "default", s.cfg.DefaultLabel)
	if err := coll.export(); err != nil {
		return err
	}

	s.mu.Lock()
	s.collections = append(s.collections, coll)
	s.aliases["default"] = coll.Path()
	s.mu.Unlock()

	log.Printf("Default collection available at %s", coll.Path())
	return nil
}

// watchClients subscribes to the bus's NameOwnerChanged signal and
// drops a peer's sessions when the peer disconnects. In-flight calls
// referencing those sessions fail NoSession afterwards.
func (s *Service) watchClients() error {
	if err := s.conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		return err
	}

	ch := make(chan *dbus.Signal, 32)
	s.conn.Signal(ch)

	go func() {
		for sig := range ch {
			if sig.Name != "org.freedesktop.DBus.NameOwnerChanged" || len(sig.Body) != 3 {
				continue
			}
			name, _ := sig.Body[0].(string)
			newOwner, _ := sig.Body[2].(string)
			if newOwner != "" {
				continue
			}
			for _, session := range s.sessions.dropSender(name) {
				log.Printf("Client %s gone, closing session %s", name, session.Path())
				session.teardown()
			}
		}
	}()
	return nil
}

// Signal emission helpers. Item signals are emitted on the owning
// collection's interface.

func (s *Service) emitItemCreated(collection, item dbus.ObjectPath) {
	s.conn.Emit(collection, dbtypes.CollectionInterface+".ItemCreated", item)
}

func (s *Service) emitItemChanged(collection, item dbus.ObjectPath) {
	s.conn.Emit(collection, dbtypes.CollectionInterface+".ItemChanged", item)
}

func (s *Service) emitItemDeleted(collection, item dbus.ObjectPath) {
	s.conn.Emit(collection, dbtypes.CollectionInterface+".ItemDeleted", item)
}

const serviceIntroXML = `<node>
` + propertiesIntroXML + `  <interface name="org.freedesktop.Secret.Service">
    <method name="OpenSession">
      <arg name="algorithm" type="s" direction="in"/>
      <arg name="input" type="v" direction="in"/>
      <arg name="output" type="v" direction="out"/>
      <arg name="result" type="o" direction="out"/>
    </method>
    <method name="CreateCollection">
      <arg name="properties" type="a{sv}" direction="in"/>
      <arg name="alias" type="s" direction="in"/>
      <arg name="collection" type="o" direction="out"/>
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <method name="SearchItems">
      <arg name="attributes" type="a{ss}" direction="in"/>
      <arg name="unlocked" type="ao" direction="out"/>
      <arg name="locked" type="ao" direction="out"/>
    </method>
    <method name="Unlock">
      <arg name="objects" type="ao" direction="in"/>
      <arg name="unlocked" type="ao" direction="out"/>
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <method name="Lock">
      <arg name="objects" type="ao" direction="in"/>
      <arg name="locked" type="ao" direction="out"/>
      <arg name="prompt" type="o" direction="out"/>
    </method>
    <method name="GetSecrets">
      <arg name="items" type="ao" direction="in"/>
      <arg name="session" type="o" direction="in"/>
      <arg name="secrets" type="a{o(oayays)}" direction="out"/>
    </method>
    <method name="ReadAlias">
      <arg name="name" type="s" direction="in"/>
      <arg name="collection" type="o" direction="out"/>
    </method>
    <method name="SetAlias">
      <arg name="name" type="s" direction="in"/>
      <arg name="collection" type="o" direction="in"/>
    </method>
    <property name="Collections" type="ao" access="read"/>
  </interface>
</node>`
