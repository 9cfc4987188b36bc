package settings

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/shared"
)

type memoryStore struct {
	stored *Settings
	loads  int
}

func (m *memoryStore) Load(context.Context) (Settings, error) {
	m.loads++
	if m.stored == nil {
		return Settings{}, ErrNotStored
	}
	return *m.stored, nil
}

func (m *memoryStore) Save(_ context.Context, s Settings) error {
	m.stored = &s
	return nil
}

var (
	admin = shared.Principal{ID: 1, Name: "Admin"}
	allow = shared.AuthorizerFunc(func(context.Context, shared.Principal) bool { return true })
)

func TestCurrentDefaults(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store, allow, nil, "admin@example.com")

	s, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.True(t, s.AlertsEnabled)
	require.Equal(t, "admin@example.com", s.AlertEmail)
	require.Equal(t, []string{"kg", "pcs", "ltr", "box", "pack"}, s.Units)

	_, err = svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, store.loads, "each read goes to the store")
}

func TestSaveVisibleToOtherInstances(t *testing.T) {
	ctx := context.Background()
	store := &memoryStore{}
	a := NewService(store, allow, nil, "admin@example.com")
	b := NewService(store, allow, nil, "admin@example.com")

	before, err := b.Current(ctx)
	require.NoError(t, err)
	require.True(t, before.AlertsEnabled)

	_, err = a.Save(ctx, admin, SaveInput{AlertsEnabled: false, AlertEmail: "ops@example.com", Units: []string{"kg"}})
	require.NoError(t, err)

	after, err := b.Current(ctx)
	require.NoError(t, err)
	require.False(t, after.AlertsEnabled)
	require.Equal(t, "ops@example.com", after.AlertEmail)
}

func TestSaveNormalises(t *testing.T) {
	store := &memoryStore{}
	svc := NewService(store, allow, nil, "admin@example.com")

	var in SaveInput
	require.NoError(t, json.Unmarshal([]byte(`{"alerts_enabled":false,"alert_email":"not-an-email","units_list":" kg, bag,kg,, tray "}`), &in))

	s, err := svc.Save(context.Background(), admin, in)
	require.NoError(t, err)
	require.False(t, s.AlertsEnabled)
	require.Equal(t, "admin@example.com", s.AlertEmail)
	require.Equal(t, []string{"kg", "bag", "tray"}, s.Units)
	require.Equal(t, s, *store.stored)

	current, err := svc.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, s, current)
}

func TestSaveAcceptsUnitList(t *testing.T) {
	svc := NewService(&memoryStore{}, allow, nil, "")
	var in SaveInput
	require.NoError(t, json.Unmarshal([]byte(`{"alerts_enabled":true,"alert_email":"ops@example.com","units_list":[]}`), &in))

	s, err := svc.Save(context.Background(), admin, in)
	require.NoError(t, err)
	require.Equal(t, "ops@example.com", s.AlertEmail)
	require.Equal(t, DefaultUnits, s.Units)
}

func TestSaveRequiresPermission(t *testing.T) {
	deny := shared.AuthorizerFunc(func(context.Context, shared.Principal) bool { return false })
	store := &memoryStore{}
	_, err := NewService(store, deny, nil, "").Save(context.Background(), admin, SaveInput{})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.Nil(t, store.stored)
}
