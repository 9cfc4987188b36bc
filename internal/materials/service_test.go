package materials

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/stockroom/internal/quantity"
	"github.com/odyssey-erp/stockroom/internal/shared"
)

type memoryRepo struct {
	mu        sync.Mutex
	materials map[int64]Material
	txCounts  map[int64]int64
	nextID    int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{materials: make(map[int64]Material), txCounts: make(map[int64]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	snapshot := make(map[int64]Material, len(r.materials))
	for k, v := range r.materials {
		snapshot[k] = v
	}
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.materials = snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(_ context.Context, id int64) (Material, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	return m, nil
}

func (r *memoryRepo) List(_ context.Context, filter ListFilter) ([]Material, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	term := strings.ToLower(filter.Search)
	var items []Material
	for _, m := range r.materials {
		hay := strings.ToLower(m.Name + " " + m.UnitType + " " + m.Supplier)
		if term == "" || strings.Contains(hay, term) {
			items = append(items, m)
		}
	}
	desc := SortDirection(filter.Order) == "DESC"
	sort.Slice(items, func(i, j int) bool {
		if desc {
			return items[i].Name > items[j].Name
		}
		return items[i].Name < items[j].Name
	})
	total := len(items)
	if filter.PerPage > 0 {
		start := shared.Offset(filter.Page, filter.PerPage)
		if start > total {
			start = total
		}
		end := start + filter.PerPage
		if end > total {
			end = total
		}
		items = items[start:end]
	}
	return items, total, nil
}

func (tx *memoryTx) NameTaken(_ context.Context, name string, excludeID int64) (bool, error) {
	for id, m := range tx.repo.materials {
		if id != excludeID && strings.EqualFold(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) Insert(_ context.Context, m Material) (int64, error) {
	tx.repo.nextID++
	m.ID = tx.repo.nextID
	tx.repo.materials[m.ID] = m
	return m.ID, nil
}

func (tx *memoryTx) GetForUpdate(_ context.Context, id int64) (Material, error) {
	m, ok := tx.repo.materials[id]
	if !ok {
		return Material{}, ErrNotFound
	}
	return m, nil
}

func (tx *memoryTx) Update(_ context.Context, m Material) error {
	if _, ok := tx.repo.materials[m.ID]; !ok {
		return ErrNotFound
	}
	tx.repo.materials[m.ID] = m
	return nil
}

func (tx *memoryTx) CountTransactions(_ context.Context, id int64) (int64, error) {
	return tx.repo.txCounts[id], nil
}

func (tx *memoryTx) Delete(_ context.Context, id int64) error {
	delete(tx.repo.materials, id)
	return nil
}

var (
	manager = shared.Principal{ID: 7, Name: "Ana"}
	allow   = shared.AuthorizerFunc(func(context.Context, shared.Principal) bool { return true })
	deny    = shared.AuthorizerFunc(func(context.Context, shared.Principal) bool { return false })
)

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, allow, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestCreateMaterial(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	m, err := svc.Create(ctx, manager, CreateInput{
		Name: "  Flour ", UnitType: "kg", Quantity: "0", WarningQuantity: "10", Supplier: "Mill Co", Price: "2,499",
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), m.ID)
	require.Equal(t, "Flour", m.Name)
	require.True(t, dec("10").Equal(m.WarningQuantity))
	require.True(t, m.Price.Valid)
	require.True(t, dec("2.50").Equal(m.Price.Decimal))
	require.Equal(t, manager.ID, m.LastEditedBy)
	require.Equal(t, "Ana", m.LastEditedByName)
	require.False(t, m.LastUpdated.IsZero())
}

func TestCreateValidation(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	cases := []struct {
		name string
		in   CreateInput
		want error
	}{
		{"missing name", CreateInput{Name: " ", UnitType: "kg"}, ErrMissingName},
		{"missing unit", CreateInput{Name: "Sugar"}, ErrMissingUnit},
		{"negative warning", CreateInput{Name: "Sugar", UnitType: "kg", WarningQuantity: "-1"}, ErrNegativeWarning},
		{"negative quantity", CreateInput{Name: "Sugar", UnitType: "kg", Quantity: "-0.5"}, ErrNegativeQuantity},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Create(ctx, manager, tc.in)
			require.ErrorIs(t, err, tc.want)
			require.ErrorIs(t, err, shared.ErrValidation)
		})
	}

	_, err := svc.Create(ctx, manager, CreateInput{Name: strings.Repeat("x", 191), UnitType: "kg"})
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestCreateDuplicateNameIsCaseInsensitive(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg", WarningQuantity: "10"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, manager, CreateInput{Name: "flour", UnitType: "kg"})
	require.ErrorIs(t, err, ErrDuplicateName)
	require.ErrorIs(t, err, shared.ErrConflict)
}

func TestUnauthorizedShortCircuits(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo, deny, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, manager, CreateInput{})
	require.ErrorIs(t, err, shared.ErrForbidden, "authorization runs before validation")
	_, err = svc.List(ctx, manager, ListFilter{})
	require.ErrorIs(t, err, shared.ErrForbidden)
	require.ErrorIs(t, svc.Delete(ctx, manager, 1), shared.ErrForbidden)
	require.Empty(t, repo.materials)
}

func TestUpdatePartialFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	created, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg", Quantity: "5", WarningQuantity: "10", Supplier: "Mill", Price: "3"})
	require.NoError(t, err)

	editor := shared.Principal{ID: 9, Name: "Ben"}
	updated, err := svc.Update(ctx, editor, created.ID, UpdateInput{WarningQuantity: shared.Some(quantity.Raw("12,5"))})
	require.NoError(t, err)
	require.True(t, dec("12.5").Equal(updated.WarningQuantity))
	require.Equal(t, "Flour", updated.Name)
	require.Equal(t, "Mill", updated.Supplier)
	require.True(t, dec("5").Equal(updated.Quantity))
	require.Equal(t, editor.ID, updated.LastEditedBy)

	updated, err = svc.Update(ctx, editor, created.ID, UpdateInput{Price: shared.Some(quantity.Raw(""))})
	require.NoError(t, err)
	require.False(t, updated.Price.Valid, "empty price clears the stored value")

	updated, err = svc.Update(ctx, editor, created.ID, UpdateInput{Name: shared.Some("FLOUR")})
	require.NoError(t, err, "case-only rename skips the uniqueness check")
	require.Equal(t, "FLOUR", updated.Name)
}

func TestUpdateErrors(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	flour, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg", WarningQuantity: "1"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, manager, CreateInput{Name: "Sugar", UnitType: "kg"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{})
	require.ErrorIs(t, err, ErrNoFields)

	_, err = svc.Update(ctx, manager, 99, UpdateInput{Name: shared.Some("Salt")})
	require.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{Name: shared.Some("sugar")})
	require.ErrorIs(t, err, ErrDuplicateName)

	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{WarningQuantity: shared.Some(quantity.Raw("-3"))})
	require.ErrorIs(t, err, ErrNegativeWarning)

	stored, err := repo.Get(ctx, flour.ID)
	require.NoError(t, err)
	require.Equal(t, "Flour", stored.Name)
	require.True(t, dec("1").Equal(stored.WarningQuantity))
}

func TestDeleteGuardedByTransactions(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	unused, err := svc.Create(ctx, manager, CreateInput{Name: "Yeast", UnitType: "pcs"})
	require.NoError(t, err)
	used, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg"})
	require.NoError(t, err)
	repo.txCounts[used.ID] = 1

	require.NoError(t, svc.Delete(ctx, manager, unused.ID))
	_, err = repo.Get(ctx, unused.ID)
	require.ErrorIs(t, err, ErrNotFound)

	err = svc.Delete(ctx, manager, used.ID)
	require.ErrorIs(t, err, ErrHasTransactions)
	require.ErrorIs(t, err, shared.ErrReferential)
	_, err = repo.Get(ctx, used.ID)
	require.NoError(t, err)

	require.ErrorIs(t, svc.Delete(ctx, manager, 404), ErrNotFound)
}

func TestListPagination(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	for _, name := range []string{"Butter", "Flour", "Salt", "Sugar", "Yeast"} {
		_, err := svc.Create(ctx, manager, CreateInput{Name: name, UnitType: "kg", Supplier: "Acme"})
		require.NoError(t, err)
	}

	page, err := svc.List(ctx, manager, ListFilter{Page: 2, PerPage: 2})
	require.NoError(t, err)
	require.Equal(t, 5, page.Total)
	require.Equal(t, 3, page.MaxPages)
	require.Len(t, page.Items, 2)
	require.Equal(t, "Salt", page.Items[0].Name)

	all, err := svc.List(ctx, manager, ListFilter{PerPage: 0, Search: "S"})
	require.NoError(t, err)
	require.Equal(t, 1, all.MaxPages)
	require.Len(t, all.Items, 3, "search is case-insensitive")

	_, err = svc.Get(ctx, manager, 404)
	require.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestSortAllowList(t *testing.T) {
	require.Equal(t, "m.quantity", SortColumn("quantity"))
	require.Equal(t, "m.name", SortColumn("name; DROP TABLE materials"))
	require.Equal(t, "DESC", SortDirection("desc"))
	require.Equal(t, "ASC", SortDirection("sideways"))
}

func TestStockUpdateApply(t *testing.T) {
	m := Material{ID: 1, Quantity: dec("5"), Supplier: "Mill", Price: decimal.NewNullDecimal(dec("2.00"))}
	out := StockUpdate{ID: 1, Quantity: dec("15"), EditedBy: 3}.Apply(m)
	require.True(t, dec("15").Equal(out.Quantity))
	require.Equal(t, "Mill", out.Supplier, "blank supplier keeps the last known value")
	require.True(t, dec("2").Equal(out.Price.Decimal))

	out = StockUpdate{ID: 1, Quantity: dec("15"), Supplier: "Farm", Price: decimal.NewNullDecimal(dec("2.75"))}.Apply(m)
	require.Equal(t, "Farm", out.Supplier)
	require.True(t, dec("2.75").Equal(out.Price.Decimal))
}

func TestTextFieldsRejectControlCharacters(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Create(ctx, manager, CreateInput{Name: "Flour\r\nBcc: someone@example.com", UnitType: "kg"})
	require.ErrorIs(t, err, ErrControlCharacter)
	require.ErrorIs(t, err, shared.ErrValidation)
	_, err = svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg", Supplier: "Mill\x00Co"})
	require.ErrorIs(t, err, ErrControlCharacter)
	require.Empty(t, repo.materials)

	flour, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg"})
	require.NoError(t, err)
	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{Name: shared.Some("Flour\nX-Header: 1")})
	require.ErrorIs(t, err, ErrControlCharacter)
	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{UnitType: shared.Some("kg\t")})
	require.NoError(t, err, "surrounding whitespace is trimmed, not rejected")

	stored, err := repo.Get(ctx, flour.ID)
	require.NoError(t, err)
	require.Equal(t, "Flour", stored.Name)
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) error {
	c.calls++
	return c.err
}

func TestUpdateAndDeleteInvalidateReports(t *testing.T) {
	repo := newMemoryRepo()
	inv := &countingInvalidator{}
	svc := newTestService(repo).WithInvalidator(inv)
	ctx := context.Background()

	flour, err := svc.Create(ctx, manager, CreateInput{Name: "Flour", UnitType: "kg"})
	require.NoError(t, err)
	require.Zero(t, inv.calls)

	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{Name: shared.Some("Wheat flour")})
	require.NoError(t, err)
	require.Equal(t, 1, inv.calls)

	_, err = svc.Update(ctx, manager, flour.ID, UpdateInput{Name: shared.Some("")})
	require.ErrorIs(t, err, ErrMissingName)
	require.Equal(t, 1, inv.calls, "rejected writes leave the cache alone")

	inv.err = errors.New("redis down")
	require.NoError(t, svc.Delete(ctx, manager, flour.ID), "cache failures never fail the write")
	require.Equal(t, 2, inv.calls)
}
