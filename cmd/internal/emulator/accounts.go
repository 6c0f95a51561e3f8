package emulator

import (
	"strings"
	"sync"

	"github.com/google/uuid"
)

type account struct {
	localID string
	email   string
	hash    string
}

// accounts is the in-memory user table, keyed by lowercased email.
type accounts struct {
	mu     sync.RWMutex
	params HashParams
	byKey  map[string]account
}

func newAccounts(params HashParams) *accounts {
	return &accounts{params: params, byKey: make(map[string]account)}
}

func emailKey(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

func (a *accounts) create(email, password string) (account, error) {
	key := emailKey(email)

	a.mu.RLock()
	_, exists := a.byKey[key]
	a.mu.RUnlock()
	if exists {
		return account{}, errEmailExists
	}

	// Hash outside the lock; argon2 is deliberately slow.
	hash, err := a.params.hashPassword(password)
	if err != nil {
		return account{}, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.byKey[key]; exists {
		return account{}, errEmailExists
	}
	acc := account{localID: uuid.NewString(), email: strings.TrimSpace(email), hash: hash}
	a.byKey[key] = acc
	return acc, nil
}

func (a *accounts) authenticate(email, password string) (account, error) {
	a.mu.RLock()
	acc, ok := a.byKey[emailKey(email)]
	a.mu.RUnlock()
	if !ok {
		return account{}, errEmailNotFound
	}

	match, err := verifyPassword(acc.hash, password)
	if err != nil {
		return account{}, err
	}
	if !match {
		return account{}, errInvalidPassword
	}
	return acc, nil
}

func (a *accounts) count() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.byKey)
}
