package countries

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gatepass-erp/gatepass-erp/internal/masterdata/shared"
)

type mockRepo struct {
	countries map[int64]Country
	nextID    int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{countries: make(map[int64]Country), nextID: 1}
}

func (m *mockRepo) List(_ context.Context, _ shared.ListFilters) ([]Country, int, error) {
	var out []Country
	for _, c := range m.countries {
		out = append(out, c)
	}
	return out, len(out), nil
}

func (m *mockRepo) Get(_ context.Context, id int64) (Country, error) {
	c, ok := m.countries[id]
	if !ok {
		return Country{}, shared.ErrNotFound
	}
	return c, nil
}

func (m *mockRepo) Create(_ context.Context, country Country) (Country, error) {
	for _, existing := range m.countries {
		if existing.ISOCode2 == country.ISOCode2 || existing.ISOCode3 == country.ISOCode3 {
			return Country{}, shared.ErrDuplicate
		}
	}
	country.ID = m.nextID
	m.nextID++
	m.countries[country.ID] = country
	return country, nil
}

func (m *mockRepo) Update(_ context.Context, id int64, country Country) error {
	if _, ok := m.countries[id]; !ok {
		return shared.ErrNotFound
	}
	country.ID = id
	m.countries[id] = country
	return nil
}

func (m *mockRepo) Delete(_ context.Context, id int64) error {
	if _, ok := m.countries[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.countries, id)
	return nil
}

func TestCreateRequiresISOCodes(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Country{Name: "Mexico", ISOCode3: "MEX"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Country{Name: "Mexico", ISOCode2: "MX"})
	require.ErrorIs(t, err, shared.ErrRequiredField)

	_, err = svc.Create(ctx, Country{ISOCode2: "MX", ISOCode3: "MEX"})
	require.ErrorIs(t, err, shared.ErrRequiredField)
}

func TestCreateUppercasesISOCodes(t *testing.T) {
	svc := NewService(newMockRepo())

	created, err := svc.Create(context.Background(), Country{
		Name: "Mexico", ISOCode2: "mx", ISOCode3: "mex", CurrencyCode: "mxn", IsActive: true,
	})
	require.NoError(t, err)
	assert.Equal(t, "MX", created.ISOCode2)
	assert.Equal(t, "MEX", created.ISOCode3)
	assert.Equal(t, "MXN", created.CurrencyCode)
}

func TestCreateDuplicateISOCode(t *testing.T) {
	svc := NewService(newMockRepo())
	ctx := context.Background()

	_, err := svc.Create(ctx, Country{Name: "Mexico", ISOCode2: "MX", ISOCode3: "MEX"})
	require.NoError(t, err)

	_, err = svc.Create(ctx, Country{Name: "Mexique", ISOCode2: "mx", ISOCode3: "MEX"})
	require.ErrorIs(t, err, shared.ErrDuplicate)
}

func TestGetRejectsBadID(t *testing.T) {
	svc := NewService(newMockRepo())

	_, err := svc.Get(context.Background(), 0)
	require.ErrorIs(t, err, shared.ErrInvalidID)

	err = svc.Delete(context.Background(), -3)
	require.ErrorIs(t, err, shared.ErrInvalidID)
}
