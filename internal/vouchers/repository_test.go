package vouchers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type idRow struct {
	id int64
}

func (r idRow) Scan(dest ...any) error {
	*(dest[0].(*int64)) = r.id
	return nil
}

// detailInsertTx satisfies pgx.Tx through embedding and answers every
// QueryRow with the next generated id, standing in for RETURNING id.
type detailInsertTx struct {
	pgx.Tx
	nextID int64
}

func (t *detailInsertTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row {
	t.nextID++
	return idRow{id: t.nextID}
}

func TestInsertDetailsAssignsGeneratedIDs(t *testing.T) {
	details := []Detail{
		{LineNumber: 1, ItemName: "Extension ladder", Quantity: 1, Unit: "pz"},
		{LineNumber: 2, ItemName: "Hammer drill", Quantity: 2, Unit: "pz"},
	}

	tx := &detailInsertTx{}
	require.NoError(t, insertDetails(context.Background(), tx, 42, details))

	assert.Equal(t, int64(1), details[0].ID)
	assert.Equal(t, int64(2), details[1].ID)
}
