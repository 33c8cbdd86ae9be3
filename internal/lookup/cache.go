// internal/lookup/cache.go
package lookup

import (
	"errors"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// ErrFrozen возвращается при попытке обновить замороженную таблицу.
var ErrFrozen = errors.New("lookup table entry is frozen")

// Entry - закешированное содержимое одной address lookup table.
type Entry struct {
	Table    solana.PublicKey
	Accounts solana.PublicKeySlice
	Frozen   bool
}

// Cache - потокобезопасный кеш таблиц, только для чтения на горячем пути.
type Cache struct {
	mu      sync.RWMutex
	entries map[solana.PublicKey]*Entry
}

// NewCache создаёт пустой кеш.
func NewCache() *Cache {
	return &Cache{entries: make(map[solana.PublicKey]*Entry)}
}

// Resolve возвращает копию списка адресов таблицы. Промах - не ошибка, а пустой список.
func (c *Cache) Resolve(table solana.PublicKey) solana.PublicKeySlice {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[table]
	if !ok {
		return solana.PublicKeySlice{}
	}
	out := make(solana.PublicKeySlice, len(entry.Accounts))
	copy(out, entry.Accounts)
	return out
}

// ResolveAll собирает карту таблиц для компиляции v0-сообщения, пропуская промахи.
func (c *Cache) ResolveAll(tables []solana.PublicKey) map[solana.PublicKey]solana.PublicKeySlice {
	out := make(map[solana.PublicKey]solana.PublicKeySlice, len(tables))
	for _, table := range tables {
		if accounts := c.Resolve(table); len(accounts) > 0 {
			out[table] = accounts
		}
	}
	return out
}

// Update заменяет список адресов таблицы.
func (c *Cache) Update(table solana.PublicKey, accounts solana.PublicKeySlice) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[table]
	if ok && entry.Frozen {
		return ErrFrozen
	}
	list := make(solana.PublicKeySlice, len(accounts))
	copy(list, accounts)
	c.entries[table] = &Entry{Table: table, Accounts: list}
	return nil
}

// MarkFrozen запрещает дальнейшие обновления таблицы.
func (c *Cache) MarkFrozen(table solana.PublicKey) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[table]; ok {
		entry.Frozen = true
		return
	}
	c.entries[table] = &Entry{Table: table, Accounts: solana.PublicKeySlice{}, Frozen: true}
}

// Entry возвращает копию записи.
func (c *Cache) Entry(table solana.PublicKey) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[table]
	if !ok {
		return Entry{}, false
	}
	out := *entry
	out.Accounts = make(solana.PublicKeySlice, len(entry.Accounts))
	copy(out.Accounts, entry.Accounts)
	return out, true
}

// Len - число записей.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
