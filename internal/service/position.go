package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gorm.io/gorm"
)

// ErrInvalidPosition is returned for reorder requests that are not a
// permutation of the scope.
var ErrInvalidPosition = errors.New("invalid position")

// positionScope identifies one ordered collection, e.g. the blocks of a page
// inside one block group. Positions inside a scope form the dense sequence
// 0..n-1. Nil condition values match NULL columns.
type positionScope struct {
	model interface{}
	table string
	conds map[string]interface{}
}

func (s positionScope) key() string {
	cols := make([]string, 0, len(s.conds))
	for col := range s.conds {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var b strings.Builder
	b.WriteString(s.table)
	for _, col := range cols {
		fmt.Fprintf(&b, "|%s=%s", col, formatScopeValue(s.conds[col]))
	}
	return b.String()
}

func formatScopeValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case *uint:
		if val == nil {
			return "null"
		}
		return fmt.Sprint(*val)
	default:
		return fmt.Sprint(val)
	}
}

func (s positionScope) query(tx *gorm.DB) *gorm.DB {
	conds := make(map[string]interface{}, len(s.conds))
	for col, v := range s.conds {
		if p, ok := v.(*uint); ok {
			if p == nil {
				conds[col] = nil
				continue
			}
			conds[col] = *p
			continue
		}
		conds[col] = v
	}
	return tx.Model(s.model).Where(conds)
}

// scopeLocks serialises writers of the same scope inside this process.
var scopeLocks keyedMutex

type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*keyedLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// withScopes runs fn in a transaction while holding the locks of every scope.
// Locks are taken in key order so two writers never wait on each other.
func withScopes(gdb *gorm.DB, scopes []positionScope, fn func(tx *gorm.DB) error) error {
	keys := make([]string, 0, len(scopes))
	seen := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		key := scope.key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		unlock := scopeLocks.lock(key)
		defer unlock()
	}
	return gdb.Transaction(fn)
}

func scopeCount(tx *gorm.DB, scope positionScope, excludeID uint) (int, error) {
	var count int64
	q := scope.query(tx)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// insertAt places id at pos in scope, shifting later rows down. A negative or
// out-of-range pos appends. The row must already carry the scope columns.
func insertAt(tx *gorm.DB, scope positionScope, id uint, pos int) (int, error) {
	n, err := scopeCount(tx, scope, id)
	if err != nil {
		return 0, err
	}
	if pos < 0 || pos > n {
		pos = n
	}
	if err := scope.query(tx).
		Where("id <> ? AND position >= ?", id, pos).
		UpdateColumn("position", gorm.Expr("position + 1")).Error; err != nil {
		return 0, err
	}
	if err := tx.Model(scope.model).Where("id = ?", id).UpdateColumn("position", pos).Error; err != nil {
		return 0, err
	}
	return pos, nil
}

// closeGap shifts rows after pos up by one once the row at pos left the scope.
func closeGap(tx *gorm.DB, scope positionScope, pos int) error {
	return scope.query(tx).
		Where("position > ?", pos).
		UpdateColumn("position", gorm.Expr("position - 1")).Error
}

// moveTo moves id from position from to position to inside one scope.
func moveTo(tx *gorm.DB, scope positionScope, id uint, from, to int) (int, error) {
	n, err := scopeCount(tx, scope, 0)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, ErrInvalidPosition
	}
	if to < 0 || to >= n {
		to = n - 1
	}

	switch {
	case to < from:
		err = scope.query(tx).
			Where("id <> ? AND position >= ? AND position < ?", id, to, from).
			UpdateColumn("position", gorm.Expr("position + 1")).Error
	case to > from:
		err = scope.query(tx).
			Where("id <> ? AND position > ? AND position <= ?", id, from, to).
			UpdateColumn("position", gorm.Expr("position - 1")).Error
	}
	if err != nil {
		return 0, err
	}
	if err := tx.Model(scope.model).Where("id = ?", id).UpdateColumn("position", to).Error; err != nil {
		return 0, err
	}
	return to, nil
}

// reorderScope assigns positions following ids, which must list every row of
// the scope exactly once.
func reorderScope(tx *gorm.DB, scope positionScope, ids []uint) error {
	var existing []uint
	if err := scope.query(tx).Pluck("id", &existing).Error; err != nil {
		return err
	}
	if len(existing) != len(ids) {
		return ErrInvalidPosition
	}
	members := make(map[uint]struct{}, len(existing))
	for _, id := range existing {
		members[id] = struct{}{}
	}
	seen := make(map[uint]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := members[id]; !ok {
			return ErrInvalidPosition
		}
		if _, dup := seen[id]; dup {
			return ErrInvalidPosition
		}
		seen[id] = struct{}{}
	}

	for idx, id := range ids {
		if err := tx.Model(scope.model).Where("id = ?", id).UpdateColumn("position", idx).Error; err != nil {
			return err
		}
	}
	return nil
}

// resequence rewrites the scope positions as 0..n-1 keeping the current order.
func resequence(tx *gorm.DB, scope positionScope) error {
	var rows []struct {
		ID       uint
		Position int
	}
	if err := scope.query(tx).Select("id, position").Order("position asc, id asc").Scan(&rows).Error; err != nil {
		return err
	}
	for idx, row := range rows {
		if row.Position == idx {
			continue
		}
		if err := tx.Model(scope.model).Where("id = ?", row.ID).UpdateColumn("position", idx).Error; err != nil {
			return err
		}
	}
	return nil
}

// scopePositions returns the positions of the scope in ascending order.
func scopePositions(tx *gorm.DB, scope positionScope) ([]int, error) {
	var positions []int
	if err := scope.query(tx).Order("position asc").Pluck("position", &positions).Error; err != nil {
		return nil, err
	}
	return positions, nil
}
