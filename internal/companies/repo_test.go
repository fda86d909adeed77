package companies

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/factoring-portal/pkg/db/dbtest"
	"github.com/angelmondragon/factoring-portal/pkg/db/models"
)

func TestGetCompany(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	payer := "ap@buyer.test"
	company := &models.Company{Name: "Acme Receivables", PayerEmail: &payer}
	require.NoError(t, repo.Create(ctx, company))

	got, err := repo.Get(ctx, company.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Acme Receivables", got.Name)
	require.NotNil(t, got.PayerEmail)
	assert.Equal(t, payer, *got.PayerEmail)

	missing, err := repo.Get(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
