package service

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
)

func external(posted string, amount int64, dir domain.ExternalDirection, desc string) repository.ExternalTransaction {
	return repository.ExternalTransaction{
		ID: "ext", EntityID: database.DefaultEntityID, PostedDate: day(posted),
		Amount: amount, Direction: dir, RawDescription: desc,
	}
}

func movement(id, date string, amount int64, desc string) repository.LedgerMovement {
	return repository.LedgerMovement{
		ID: id, EntityID: database.DefaultEntityID, AccountID: database.DefaultAccountID,
		Date: day(date), Amount: amount, Description: desc,
	}
}

func TestScoreExactMatchWithSimilarDescription(t *testing.T) {
	t.Parallel()

	ext := external("2024-01-10", 15000, domain.DirectionOut, "PIX ALUGUEL LOJA CENTRO MARCO")
	sug, ok := Score(ext, movement("m1", "2024-01-10", -15000, "aluguel loja centro abril"), DefaultMatchPolicy())
	require.True(t, ok)
	require.InDelta(t, 0.6, sug.Evidence.Similarity, 1e-9)
	require.True(t, sug.Evidence.DateMatch)
	require.True(t, sug.Evidence.AmountMatch)
	require.Equal(t, 0.9, sug.Confidence)
}

func TestScoreFilters(t *testing.T) {
	t.Parallel()

	p := DefaultMatchPolicy()
	ext := external("2024-01-10", 15000, domain.DirectionOut, "TED FORNECEDOR")
	cases := []struct {
		name string
		m    repository.LedgerMovement
		ok   bool
		conf float64
	}{
		{"wrong sign", movement("m", "2024-01-10", 15000, ""), false, 0},
		{"outside window", movement("m", "2024-01-13", -15000, ""), false, 0},
		{"edge of window", movement("m", "2024-01-08", -15000, ""), true, 0.5},
		{"within tolerance", movement("m", "2024-01-10", -15001, ""), true, 0.5},
		{"beyond tolerance", movement("m", "2024-01-10", -15002, ""), false, 0},
		{"exact no description", movement("m", "2024-01-10", -15000, ""), true, 0.7},
		{"zero amount", movement("m", "2024-01-10", 0, ""), false, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sug, ok := Score(ext, tc.m, p)
			require.Equal(t, tc.ok, ok)
			if ok {
				require.Equal(t, tc.conf, sug.Confidence)
			}
		})
	}
}

func TestConfidenceMonotonicInSimilarity(t *testing.T) {
	t.Parallel()

	for _, exact := range []bool{true, false} {
		prev := 0.0
		for i := 0; i <= 100; i++ {
			ev := domain.Evidence{DateMatch: exact, AmountMatch: true, Similarity: float64(i) / 100}
			c := Confidence(ev)
			require.GreaterOrEqual(t, c, prev, "similarity %.2f", ev.Similarity)
			require.GreaterOrEqual(t, c, 0.5)
			prev = c
		}
	}
	require.Equal(t, 0.7, Confidence(domain.Evidence{DateMatch: true, AmountMatch: true, Similarity: 0.3}))
	require.Equal(t, 0.8, Confidence(domain.Evidence{DateMatch: true, AmountMatch: true, Similarity: 0.5}))
	require.Equal(t, 0.9, Confidence(domain.Evidence{DateMatch: true, AmountMatch: true, Similarity: 0.51}))
}

func TestRankSuggestionsTieBreaks(t *testing.T) {
	t.Parallel()

	s := []Suggestion{
		{Movement: repository.LedgerMovement{ID: "c"}, Confidence: 0.5, Evidence: domain.Evidence{DayDistance: 1}},
		{Movement: repository.LedgerMovement{ID: "b"}, Confidence: 0.5, Evidence: domain.Evidence{DayDistance: 1}},
		{Movement: repository.LedgerMovement{ID: "a"}, Confidence: 0.5, Evidence: domain.Evidence{DayDistance: 2}},
		{Movement: repository.LedgerMovement{ID: "z"}, Confidence: 0.9},
	}
	RankSuggestions(s)
	ids := make([]string, len(s))
	for i := range s {
		ids[i] = s[i].Movement.ID
	}
	require.Equal(t, []string{"z", "b", "c", "a"}, ids)
}

// seedReconcile ingests one bank record and three candidate movements.
func seedReconcile(t *testing.T, db *sql.DB) (*Reconciler, string) {
	t.Helper()
	ctx := testContext(t)
	movements := repository.NewMovementRepo(db)
	for _, m := range []repository.LedgerMovement{
		movement("m-exact", "2024-01-10", -15000, "Aluguel loja centro abril"),
		movement("m-near", "2024-01-11", -15000, "Aluguel"),
		movement("m-other", "2024-01-10", -9900, "Energia"),
	} {
		require.NoError(t, movements.Insert(ctx, m))
	}

	ingest := &IngestService{
		Transactions: repository.NewExternalTransactionRepo(db),
		Accounts:     repository.NewAccountRepo(db),
		Log:          zerolog.Nop(),
	}
	res, err := ingest.ImportCSV(ctx, strings.NewReader("bank-1,2024-01-10,-150.00,PIX ALUGUEL LOJA CENTRO MARCO\n"),
		database.DefaultAccountID, nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Imported)

	ext, err := repository.NewExternalTransactionRepo(db).GetByExternalID(ctx, database.DefaultAccountID, "bank-1")
	require.NoError(t, err)
	require.NotNil(t, ext)
	return NewReconciler(db, DefaultMatchPolicy(), zerolog.Nop()), ext.ID
}

func TestSuggestConfirmUnlink(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	r, extID := seedReconcile(t, db)

	sugs, err := r.Suggest(ctx, extID)
	require.NoError(t, err)
	require.Len(t, sugs, 2)
	require.Equal(t, "m-exact", sugs[0].Movement.ID)
	require.Equal(t, 0.9, sugs[0].Confidence)
	require.Equal(t, "m-near", sugs[1].Movement.ID)
	require.Equal(t, 0.5, sugs[1].Confidence)

	link, err := r.Confirm(ctx, extID, "m-exact", domain.MatchHeuristic)
	require.NoError(t, err)
	require.Equal(t, 0.9, link.Confidence)

	stored, err := r.Links.ByExternal(ctx, extID)
	require.NoError(t, err)
	require.InDelta(t, 0.6, stored.Evidence.Similarity, 1e-9)
	require.True(t, stored.Evidence.DateMatch)
	require.Equal(t, domain.MatchHeuristic, stored.MatchType)

	sugs, err = r.Suggest(ctx, extID)
	require.NoError(t, err)
	require.Empty(t, sugs)

	_, err = r.Confirm(ctx, extID, "m-near", domain.MatchManual)
	require.ErrorIs(t, err, domain.ErrAlreadyReconciled)
	require.True(t, domain.IsConflict(err))

	unreconciled, err := r.ListUnreconciled(ctx, repository.ExternalFilters{AccountID: database.DefaultAccountID})
	require.NoError(t, err)
	require.Empty(t, unreconciled)

	require.NoError(t, r.Unlink(ctx, extID))
	require.NoError(t, r.Unlink(ctx, extID))

	unreconciled, err = r.ListUnreconciled(ctx, repository.ExternalFilters{})
	require.NoError(t, err)
	require.Len(t, unreconciled, 1)

	unreconciled, err = r.ListUnreconciled(ctx, repository.ExternalFilters{
		Month:  day("2024-01-01"),
		Search: "aluguel loja",
	})
	require.NoError(t, err)
	require.Len(t, unreconciled, 1)

	unreconciled, err = r.ListUnreconciled(ctx, repository.ExternalFilters{Month: day("2024-02-01")})
	require.NoError(t, err)
	require.Empty(t, unreconciled)

	unreconciled, err = r.ListUnreconciled(ctx, repository.ExternalFilters{Search: "energia"})
	require.NoError(t, err)
	require.Empty(t, unreconciled)

	sugs, err = r.Suggest(ctx, extID)
	require.NoError(t, err)
	require.Len(t, sugs, 2)
}

func TestConfirmValidation(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	r, extID := seedReconcile(t, db)

	_, err := r.Confirm(ctx, extID, "m-other", domain.MatchHeuristic)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Confirm(ctx, extID, "m-near", domain.MatchExact)
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = r.Confirm(ctx, extID, "missing", domain.MatchManual)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Confirm(ctx, "missing", "m-near", domain.MatchManual)
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = r.Confirm(ctx, extID, "m-near", "guess")
	require.ErrorIs(t, err, domain.ErrInvalidArgument)

	addEntity(t, db, "entity-b", "account-b")
	require.NoError(t, repository.NewMovementRepo(db).Insert(ctx, repository.LedgerMovement{
		ID: "m-foreign", EntityID: "entity-b", AccountID: "account-b", Date: day("2024-01-10"), Amount: -15000,
	}))
	_, err = r.Confirm(ctx, extID, "m-foreign", domain.MatchManual)
	require.ErrorIs(t, err, domain.ErrCrossEntityViolation)

	// a manual link accepts a non-candidate and records full confidence
	link, err := r.Confirm(ctx, extID, "m-other", domain.MatchManual)
	require.NoError(t, err)
	require.Equal(t, 1.0, link.Confidence)
	require.False(t, link.Evidence.AmountMatch)
}

func TestSuggestManyAndLinkedMovementsExcluded(t *testing.T) {
	t.Parallel()

	db := openTestDB(t)
	ctx := testContext(t)
	r, extID := seedReconcile(t, db)

	ingest := &IngestService{
		Transactions: repository.NewExternalTransactionRepo(db),
		Accounts:     repository.NewAccountRepo(db),
	}
	_, err := ingest.ImportCSV(ctx, strings.NewReader("bank-2,2024-01-11,-150.00,ALUGUEL\n"), database.DefaultAccountID, nil)
	require.NoError(t, err)
	second, err := r.Transactions.GetByExternalID(ctx, database.DefaultAccountID, "bank-2")
	require.NoError(t, err)

	_, err = r.Confirm(ctx, extID, "m-exact", domain.MatchExact)
	require.NoError(t, err)

	all, err := r.SuggestMany(ctx, []string{extID, second.ID})
	require.NoError(t, err)
	require.Len(t, all, 2)
	require.Empty(t, all[extID])
	require.Len(t, all[second.ID], 1)
	require.Equal(t, "m-near", all[second.ID][0].Movement.ID)
	require.Equal(t, 0.9, all[second.ID][0].Confidence)

	_, err = r.Confirm(ctx, second.ID, "m-exact", domain.MatchManual)
	require.ErrorIs(t, err, domain.ErrAlreadyReconciled)

	_, err = r.SuggestMany(ctx, []string{"missing"})
	require.ErrorIs(t, err, domain.ErrNotFound)
}
