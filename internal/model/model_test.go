package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeInventory(t *testing.T) {
	snapshot := []SessionProduct{
		{ID: 1, Name: "Coffee", InitialStock: 99, CurrentStock: 99},
		{ID: 2, Name: "Tea", InitialStock: 5, CurrentStock: 5},
	}
	rows := []SessionInventory{
		{SessionID: "s1", ProductID: 1, InitialStock: 10, CurrentStock: 8},
		{SessionID: "s1", ProductID: 3, InitialStock: 4, CurrentStock: 4},
	}

	merged := MergeInventory(snapshot, rows)
	require.Len(t, merged, 2)
	assert.Equal(t, 10, merged[0].InitialStock)
	assert.Equal(t, 8, merged[0].CurrentStock)
	// Inventory is authoritative: no row means no stock.
	assert.Equal(t, 0, merged[1].InitialStock)
	assert.Equal(t, 0, merged[1].CurrentStock)
	// Input left untouched.
	assert.Equal(t, 99, snapshot[0].CurrentStock)
}

func TestSnapshotOf(t *testing.T) {
	p := Product{ID: 4, Name: "Cookie", Price: decimal.NewFromInt(5), Variations: []Variation{{ID: "big", Name: "Big", Price: decimal.NewFromInt(7)}}}
	s := SnapshotOf(p)

	assert.Equal(t, uint(4), s.ID)
	assert.Zero(t, s.CurrentStock)
	v, ok := s.FindVariation("big")
	require.True(t, ok)
	assert.True(t, decimal.NewFromInt(7).Equal(v.Price))
	_, ok = s.FindVariation("small")
	assert.False(t, ok)
}

func TestSessionToResponse(t *testing.T) {
	s := Session{
		ID:     "1700000000000-abc123",
		Date:   time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Status: SessionActive,
		Sales:  []Sale{{ID: "a"}, {ID: "b"}},
	}
	resp := s.ToResponse()
	assert.Equal(t, "2024-05-01", resp.Date)
	assert.Equal(t, []string{}, resp.Staff)
	assert.Equal(t, 2, resp.SaleCount)
	assert.True(t, SessionActive.Valid())
	assert.False(t, SessionStatus("paused").Valid())
}

func TestProfilePasswordAndPrivileges(t *testing.T) {
	p := Profile{Privileges: []Privilege{{Code: PrivSessionView}, {Code: PrivCheckoutCreate}}}
	require.NoError(t, p.SetPassword("secret1"))

	assert.NotEqual(t, "secret1", p.Password)
	assert.True(t, p.CheckPassword("secret1"))
	assert.False(t, p.CheckPassword("secret2"))
	assert.True(t, p.HasPrivilege(PrivCheckoutCreate))
	assert.False(t, p.HasPrivilege(PrivMemberDelete))
	assert.Equal(t, []string{PrivSessionView, PrivCheckoutCreate}, p.GetPrivilegeCodes())
	assert.Equal(t, "", p.RoleCode())
}
