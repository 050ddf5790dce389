package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"reride/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- Mock Rows for Query ---

// mockRows implements pgx.Rows; each entry in scans fills one result row.
type mockRows struct {
	scans   []func(dest ...any) error
	idx     int
	closed  bool
	scanErr error
	errVal  error
}

func newMockRows(scans ...func(dest ...any) error) *mockRows {
	return &mockRows{scans: scans, idx: -1}
}

func (r *mockRows) Next() bool {
	if r.closed {
		return false
	}
	r.idx++
	return r.idx < len(r.scans)
}

func (r *mockRows) Scan(dest ...any) error {
	if r.scanErr != nil {
		return r.scanErr
	}
	return r.scans[r.idx](dest...)
}

func (r *mockRows) Close()                                       { r.closed = true }
func (r *mockRows) Err() error                                   { return r.errVal }
func (r *mockRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *mockRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *mockRows) RawValues() [][]byte                          { return nil }
func (r *mockRows) Values() ([]any, error)                       { return nil, nil }
func (r *mockRows) Conn() *pgx.Conn                              { return nil }

func planScan(p types.PlanDefinition) func(dest ...any) error {
	return func(dest ...any) error {
		*dest[0].(*types.PlanID) = p.ID
		*dest[1].(*string) = p.Name
		*dest[2].(*int64) = p.Price
		*dest[3].(*int) = int(p.ListingLimit)
		*dest[4].(*int) = p.FeaturedCredits
		*dest[5].(*int) = p.FreeCertifications
		*dest[6].(*[]string) = p.Features
		*dest[7].(*bool) = p.IsMostPopular
		return nil
	}
}

// --- PlanRepo Tests ---

func TestPlanRepo_List_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	rows := newMockRows(
		planScan(types.PlanDefinition{
			ID: types.PlanFree, Name: "Free", Price: 0,
			ListingLimit: 5, Features: []string{"5 active listings"},
		}),
		planScan(types.PlanDefinition{
			ID: "plan_abc", Name: "Dealer Network", Price: 9900,
			ListingLimit: types.ListingLimitUnlimited, FeaturedCredits: 25,
		}),
	)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	plans, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)

	assert.Equal(t, types.PlanFree, plans[0].ID)
	assert.Equal(t, types.ListingLimit(5), plans[0].ListingLimit)
	assert.Equal(t, types.PlanID("plan_abc"), plans[1].ID)
	assert.True(t, plans[1].ListingLimit.IsUnlimited())
	dbx.AssertExpectations(t)
}

func TestPlanRepo_ListForUpdate_AppendsRowLock(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			assert.Contains(t, args.Get(1).(string), "FOR UPDATE")
		}).
		Return(newMockRows(), nil)

	plans, err := repo.ListForUpdate(context.Background())
	require.NoError(t, err)
	assert.Empty(t, plans)
	dbx.AssertExpectations(t)
}

func TestPlanRepo_List_QueryError(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(nil, errors.New("connection refused"))

	_, err := repo.List(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}

func TestPlanRepo_Upsert_MarksBuiltinFlag(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sqlArgs := args.Get(2).([]any)
			assert.Equal(t, true, sqlArgs[8])
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), types.PlanDefinition{
		ID: types.PlanPro, Name: "Pro", Price: 1999, ListingLimit: 50,
	})
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}

func TestPlanRepo_Upsert_CustomPlanNotBuiltin(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Run(func(args mock.Arguments) {
			sqlArgs := args.Get(2).([]any)
			assert.Equal(t, false, sqlArgs[8])
		}).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.Upsert(context.Background(), types.PlanDefinition{
		ID: "plan_xyz", Name: "Custom", ListingLimit: 10,
	})
	require.NoError(t, err)
}

func TestPlanRepo_Delete_Success(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 1"), nil)

	err := repo.Delete(context.Background(), "plan_xyz")
	require.NoError(t, err)
	dbx.AssertExpectations(t)
}

func TestPlanRepo_Delete_NotFound(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	dbx.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("DELETE 0"), nil)

	err := repo.Delete(context.Background(), "plan_gone")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundPlan, appErr.Code)
}

func TestPlanRepo_List_RowsErrAfterIteration(t *testing.T) {
	dbx := new(mockDBTX)
	repo := NewPlanRepo(dbx, nil)

	rows := newMockRows()
	rows.errVal = errors.New("read timeout")

	dbx.On("Query", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(rows, nil)

	_, err := repo.List(context.Background())
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
