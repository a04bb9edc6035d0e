// Package identity resolves who owns the tracked transactions. The manager
// holds the current auth state and fans out changes to subscribers; it is
// the sole discriminant for which backend the tracker activates.
package identity

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

type (
	// Listener observes auth-state changes. signedIn=false means anonymous.
	Listener = func(ownerID string, signedIn bool)

	// Manager verifies bearer tokens and tracks the signed-in owner.
	Manager struct {
		secret   []byte
		logger   *slog.Logger
		mu       sync.Mutex
		ownerID  string
		signedIn bool
		nextID   int
		subs     map[int]Listener
	}
)

func NewManager(secret []byte, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		secret: secret,
		logger: logger,
		subs:   make(map[int]Listener),
	}
}

// Current returns the owner id when signed in.
func (m *Manager) Current() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ownerID, m.signedIn
}

// Subscribe registers a listener for auth-state changes and returns its
// unsubscribe function. The listener is not called for the current state.
func (m *Manager) Subscribe(l Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = l
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.subs, id)
	}
}

// SignIn verifies an HS256 bearer token and promotes its subject to the
// current owner. Listeners observe the change.
func (m *Manager) SignIn(tokenString string) (string, error) {
	ownerID, err := m.verify(tokenString)
	if err != nil {
		return "", err
	}

	m.setState(ownerID, true)
	m.logger.Info("Signed in", "owner_id", ownerID)
	return ownerID, nil
}

// SignOut drops the current identity. Listeners observe the change.
func (m *Manager) SignOut() {
	m.setState("", false)
	m.logger.Info("Signed out")
}

// Resolve performs the startup resolution from an optional persisted token.
// An absent or invalid token resolves to anonymous rather than failing:
// startup must always complete.
func (m *Manager) Resolve(tokenString string) {
	if tokenString == "" {
		m.setState("", false)
		return
	}
	ownerID, err := m.verify(tokenString)
	if err != nil {
		m.logger.Warn("Ignoring invalid startup token", "error", err)
		m.setState("", false)
		return
	}
	m.setState(ownerID, true)
}

func (m *Manager) verify(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return m.secret, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return "", ErrInvalidToken
	}
	return sub, nil
}

func (m *Manager) setState(ownerID string, signedIn bool) {
	m.mu.Lock()
	if m.ownerID == ownerID && m.signedIn == signedIn {
		m.mu.Unlock()
		return
	}
	m.ownerID = ownerID
	m.signedIn = signedIn
	listeners := make([]Listener, 0, len(m.subs))
	for _, l := range m.subs {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(ownerID, signedIn)
	}
}
