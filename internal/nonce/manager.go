// internal/nonce/manager.go
package nonce

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

var (
	// ErrUnavailable - durable nonce не настроен; вызывающий строит транзакцию на blockhash.
	ErrUnavailable = errors.New("durable nonce unavailable")
	// ErrStale - текущее значение nonce уже израсходовано.
	ErrStale = errors.New("durable nonce already used")
	// ErrNotReady - значение nonce ещё ни разу не синхронизировано с леджером.
	ErrNotReady = errors.New("durable nonce not ready")
)

// Status - состояние жизненного цикла nonce.
type Status int

const (
	StatusUninitialized Status = iota
	StatusNotReady
	StatusReady
	StatusConsumed
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusNotReady:
		return "not_ready"
	case StatusReady:
		return "ready"
	case StatusConsumed:
		return "consumed"
	default:
		return "unknown"
	}
}

// State - копия внутреннего состояния.
type State struct {
	Account   *solana.PublicKey
	Authority solana.PublicKey
	Value     solana.Hash
	Locked    bool
	Used      bool
}

// Snapshot - значение nonce, выданное одной сборке транзакции.
type Snapshot struct {
	Account   solana.PublicKey
	Authority solana.PublicKey
	Value     solana.Hash
}

// Manager охраняет единственный durable nonce, общий для всех попыток отправки.
// Переходы выполняются только под эксклюзивной блокировкой.
type Manager struct {
	mu    sync.RWMutex
	state State
}

// NewManager создаёт менеджер в состоянии Uninitialized.
func NewManager() *Manager {
	return &Manager{}
}

// Configure задаёт аккаунт nonce и его authority. Значение остаётся пустым
// до первого Refresh, поэтому TryConsume до этого вернёт ErrNotReady.
func (m *Manager) Configure(account, authority solana.PublicKey) {
	m.mu.Lock()
	defer m.mu.Unlock()

	acc := account
	m.state = State{
		Account:   &acc,
		Authority: authority,
	}
}

// Lock помечает значение как пересинхронизируемое; TryConsume вернёт ErrNotReady.
func (m *Manager) Lock() {
	m.mu.Lock()
	m.state.Locked = true
	m.mu.Unlock()
}

// Unlock снимает пометку Lock без изменения значения.
func (m *Manager) Unlock() {
	m.mu.Lock()
	m.state.Locked = false
	m.mu.Unlock()
}

// Refresh сохраняет свежее значение, наблюдаемое в леджере, и сбрасывает used.
// Значение, совпадающее с израсходованным, игнорируется: леджер ещё не продвинул nonce.
// Возвращает true, если состояние изменилось.
func (m *Manager) Refresh(value solana.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.state.Locked = false
	if m.state.Account == nil || value.IsZero() {
		return false
	}
	if value.Equals(m.state.Value) {
		return false
	}
	m.state.Value = value
	m.state.Used = false
	return true
}

// TryConsume атомарно переводит Ready в Consumed и возвращает снимок значения.
func (m *Manager) TryConsume() (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.availability(); err != nil {
		return Snapshot{}, err
	}
	m.state.Used = true
	return Snapshot{
		Account:   *m.state.Account,
		Authority: m.state.Authority,
		Value:     m.state.Value,
	}, nil
}

// Check возвращает ту же ошибку, что вернул бы TryConsume, не меняя состояния.
func (m *Manager) Check() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.availability()
}

// Release откатывает TryConsume для снимка, который так и не был отправлен.
// Откат выполняется, только если значение не сменилось после выдачи снимка.
func (m *Manager) Release(snap Snapshot) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Account == nil || !m.state.Used {
		return false
	}
	if !m.state.Account.Equals(snap.Account) || !m.state.Value.Equals(snap.Value) {
		return false
	}
	m.state.Used = false
	return true
}

// availability вызывается под блокировкой.
func (m *Manager) availability() error {
	switch {
	case m.state.Account == nil:
		return ErrUnavailable
	case m.state.Used:
		return ErrStale
	case m.state.Value.IsZero() || m.state.Locked:
		return ErrNotReady
	}
	return nil
}

// State возвращает копию текущего состояния.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := m.state
	if st.Account != nil {
		acc := *st.Account
		st.Account = &acc
	}
	return st
}

// Account возвращает настроенный аккаунт nonce.
func (m *Manager) Account() (solana.PublicKey, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.state.Account == nil {
		return solana.PublicKey{}, false
	}
	return *m.state.Account, true
}

// Status возвращает состояние жизненного цикла.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch {
	case m.state.Account == nil:
		return StatusUninitialized
	case m.state.Used:
		return StatusConsumed
	case m.state.Value.IsZero() || m.state.Locked:
		return StatusNotReady
	default:
		return StatusReady
	}
}
