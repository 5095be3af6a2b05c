package firestore

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rumor-ml/commons.systems/cardstatements/internal/domain"
)

func TestCollectionPrefix(t *testing.T) {
	tests := []struct {
		name     string
		prNumber string
		branch   string
		want     string
	}{
		{"production", "", "", ""},
		{"main branch", "", "main", ""},
		{"pull request wins", "123", "feature/auth", "pr_123_"},
		{"branch sanitized", "", "Feature/Auth_Flow", "preview_feature-auth-flow_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PR_NUMBER", tt.prNumber)
			t.Setenv("BRANCH_NAME", tt.branch)
			assert.Equal(t, tt.want, collectionPrefix())
			assert.Equal(t, tt.want+cardsCollectionBase, collectionName(cardsCollectionBase))
		})
	}
}

func TestStatementDoc_KeepsExactTotals(t *testing.T) {
	closing := domain.NewDate(2024, time.March, 10)
	stmt := &domain.Statement{
		ID:             "stmt-2024-03-card-1",
		UserID:         "user-1",
		CreditCardID:   "card-1",
		ReferenceMonth: domain.NewDate(2024, time.March, 1),
		ClosingDate:    &closing,
		TotalAmount:    decimal.RequireFromString("0.10").Add(decimal.RequireFromString("0.20")),
		Status:         domain.StatementStatusOpen,
	}

	doc := toStatementDoc(stmt)
	assert.Equal(t, "2024-03-01", doc.ReferenceMonth)
	assert.Equal(t, "0.3", doc.TotalAmount)
	require.NotNil(t, doc.ClosingDate)
	assert.Nil(t, doc.DueDate)

	got, err := doc.toDomain()
	require.NoError(t, err)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("0.3")))
	assert.True(t, got.ClosingDate.Equal(closing))
}

func TestDocs_RejectCorruptFields(t *testing.T) {
	_, err := transactionDoc{ID: "txn-1", Date: "10/03/2024", Amount: "1"}.toDomain()
	assert.Error(t, err)

	_, err = transactionDoc{ID: "txn-1", Date: "2024-03-10", Amount: "abc"}.toDomain()
	assert.Error(t, err)

	_, err = statementDoc{ID: "stmt-1", ReferenceMonth: "2024-03"}.toDomain()
	assert.Error(t, err)

	card, err := cardDoc{ID: "card-1", Limit: ""}.toDomain()
	require.NoError(t, err)
	assert.True(t, card.Limit.IsZero())
}

func TestClaimIDs(t *testing.T) {
	a := fingerprintID("user-1", "card-1", "abc")
	assert.Len(t, a, 64)
	assert.Equal(t, a, fingerprintID("user-1", "card-1", "abc"))
	assert.NotEqual(t, a, fingerprintID("user-1", "card-2", "abc"))
	assert.NotEqual(t, a, fingerprintID("user-2", "card-1", "abc"))

	assert.Equal(t, "card-1_2024-03", statementKeyID("card-1", domain.NewDate(2024, time.March, 1)))
}
