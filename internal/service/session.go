package service

import (
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/qba10/secretsd/internal/crypto"
	dbtypes "github.com/qba10/secretsd/internal/dbus"
)

// Session is the D-Bus object representing one client's transport
// crypto context. It lives from OpenSession until the client closes it
// or disconnects from the bus.
type Session struct {
	path     dbus.ObjectPath
	sender   string
	crypto   crypto.Session
	conn     *dbus.Conn
	registry *sessionRegistry
	mu       sync.Mutex
	closed   bool
}

// Path returns the session's D-Bus path
func (s *Session) Path() dbus.ObjectPath {
	return s.path
}

// Close implements org.freedesktop.Secret.Session.Close
func (s *Session) Close() *dbus.Error {
	s.teardown()
	return nil
}

func (s *Session) teardown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	if s.registry != nil {
		s.registry.remove(s.path)
	}
	s.conn.Export(nil, s.path, dbtypes.SessionInterface)
	s.conn.Export(nil, s.path, dbtypes.IntrospectableInterface)
	s.crypto.Close()
}

// Encrypt encrypts plaintext under the session's negotiated key
func (s *Session) Encrypt(plaintext []byte) (params, ciphertext []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, nil, ErrSessionNotFound("session is closed")
	}
	return s.crypto.Encrypt(plaintext)
}

// Decrypt decrypts ciphertext under the session's negotiated key
func (s *Session) Decrypt(params, ciphertext []byte) (plaintext []byte, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionNotFound("session is closed")
	}
	return s.crypto.Decrypt(params, ciphertext)
}

// sessionRegistry tracks open sessions keyed by their object path
type sessionRegistry struct {
	mu       sync.Mutex
	sessions map[dbus.ObjectPath]*Session
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{sessions: make(map[dbus.ObjectPath]*Session)}
}

func (r *sessionRegistry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.path] = s
}

func (r *sessionRegistry) get(path dbus.ObjectPath) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[path]
	return s, ok
}

func (r *sessionRegistry) remove(path dbus.ObjectPath) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, path)
}

// dropSender removes and returns every session opened by the given
// bus peer. Used when the peer's name loses its owner.
func (r *sessionRegistry) dropSender(sender string) []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	var dropped []*Session
	for path, s := range r.sessions {
		if s.sender == sender {
			dropped = append(dropped, s)
			delete(r.sessions, path)
		}
	}
	return dropped
}

// all removes and returns every session. Used at shutdown.
func (r *sessionRegistry) all() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessions := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.sessions = make(map[dbus.ObjectPath]*Session)
	return sessions
}

const sessionIntroXML = `<node>
  <interface name="org.freedesktop.Secret.Session">
    <method name="Close"/>
  </interface>
</node>`
