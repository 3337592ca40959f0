package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/jask/ledgerflow/internal/database"
	"github.com/jask/ledgerflow/internal/database/repository"
	"github.com/jask/ledgerflow/internal/domain"
	"github.com/jask/ledgerflow/internal/money"
	"github.com/jask/ledgerflow/internal/textmatch"
)

// Confidence policy. These values are kept as-is for compatibility with
// links confirmed by earlier versions.
const (
	confidenceExact    = 0.7
	confidenceAmount   = 0.5
	confidenceMinimum  = 0.5
	confidenceManual   = 1.0
	defaultWindowDays  = 2
	defaultTolerance   = 1
	suggestConcurrency = 4
)

// similarityTiers raise an exact date+amount match by description similarity.
// Ordered from the highest threshold down; comparisons are strict.
var similarityTiers = []struct {
	above      float64
	confidence float64
}{
	{0.5, 0.9},
	{0.3, 0.8},
}

// MatchPolicy bounds the candidate search.
type MatchPolicy struct {
	WindowDays      int
	AmountTolerance int64
}

// DefaultMatchPolicy is a ±2 day window with 1 minor unit of tolerance.
func DefaultMatchPolicy() MatchPolicy {
	return MatchPolicy{WindowDays: defaultWindowDays, AmountTolerance: defaultTolerance}
}

// Suggestion is a ranked candidate movement for an external transaction.
type Suggestion struct {
	Movement   repository.LedgerMovement
	Confidence float64
	Evidence   domain.Evidence
}

// Reconciler matches external bank records against ledger movements.
type Reconciler struct {
	DB           *sql.DB
	Transactions *repository.ExternalTransactionRepo
	Movements    *repository.MovementRepo
	Links        *repository.ReconciliationRepo
	Policy       MatchPolicy
	Log          zerolog.Logger
}

func NewReconciler(db *sql.DB, policy MatchPolicy, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		DB:           db,
		Transactions: repository.NewExternalTransactionRepo(db),
		Movements:    repository.NewMovementRepo(db),
		Links:        repository.NewReconciliationRepo(db),
		Policy:       policy,
		Log:          log,
	}
}

// Suggest returns ranked candidates for one external transaction. An
// already reconciled transaction has no suggestions.
func (r *Reconciler) Suggest(ctx context.Context, externalID string) ([]Suggestion, error) {
	ext, err := r.Transactions.Get(ctx, externalID)
	if err != nil {
		return nil, err
	}
	if ext == nil {
		return nil, domain.NotFound("external_transaction", externalID)
	}
	link, err := r.Links.ByExternal(ctx, ext.ID)
	if err != nil {
		return nil, err
	}
	if link != nil {
		return nil, nil
	}

	window := r.Policy.WindowDays
	candidates, err := r.Movements.Window(ctx, ext.EntityID,
		ext.PostedDate.AddDate(0, 0, -window), ext.PostedDate.AddDate(0, 0, window))
	if err != nil {
		return nil, err
	}

	var out []Suggestion
	for _, m := range candidates {
		sug, ok := Score(*ext, m, r.Policy)
		if !ok {
			continue
		}
		linked, err := r.Links.LinkedMovement(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		if linked {
			continue
		}
		out = append(out, sug)
	}
	RankSuggestions(out)
	return out, nil
}

// SuggestMany runs Suggest for several external transactions concurrently.
func (r *Reconciler) SuggestMany(ctx context.Context, externalIDs []string) (map[string][]Suggestion, error) {
	var (
		mu  sync.Mutex
		out = make(map[string][]Suggestion, len(externalIDs))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(suggestConcurrency)
	for _, id := range externalIDs {
		id := id
		g.Go(func() error {
			sugs, err := r.Suggest(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out[id] = sugs
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// Score evaluates one movement against an external transaction. It reports
// false when the movement is outside the window, has the wrong sign or its
// amount is off by more than the tolerance.
func Score(ext repository.ExternalTransaction, m repository.LedgerMovement, p MatchPolicy) (Suggestion, bool) {
	days := dayDistance(ext.PostedDate, m.Date)
	if days > p.WindowDays {
		return Suggestion{}, false
	}
	if m.Amount == 0 || (m.Amount > 0) != (ext.Direction.Sign() > 0) {
		return Suggestion{}, false
	}
	delta := money.Abs(money.Abs(m.Amount) - ext.Amount)
	if delta > p.AmountTolerance {
		return Suggestion{}, false
	}

	ev := evidenceFor(ext, m)
	conf := Confidence(ev)
	if conf < confidenceMinimum {
		return Suggestion{}, false
	}
	return Suggestion{Movement: m, Confidence: conf, Evidence: ev}, true
}

// Confidence maps evidence onto the fixed policy tiers.
func Confidence(ev domain.Evidence) float64 {
	if !ev.DateMatch || !ev.AmountMatch {
		return confidenceAmount
	}
	for _, tier := range similarityTiers {
		if ev.Similarity > tier.above {
			return tier.confidence
		}
	}
	return confidenceExact
}

// RankSuggestions orders by confidence, then day distance, then movement id.
func RankSuggestions(s []Suggestion) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Confidence != s[j].Confidence {
			return s[i].Confidence > s[j].Confidence
		}
		if s[i].Evidence.DayDistance != s[j].Evidence.DayDistance {
			return s[i].Evidence.DayDistance < s[j].Evidence.DayDistance
		}
		return s[i].Movement.ID < s[j].Movement.ID
	})
}

func dayDistance(a, b time.Time) int {
	d := money.DateOnly(a).Sub(money.DateOnly(b)).Hours() / 24
	if d < 0 {
		d = -d
	}
	return int(d + 0.5)
}

// Confirm links an external transaction to a movement, storing the evidence
// computed now. Exact and heuristic links must pass the candidate filter;
// manual links only need the same owning entity.
func (r *Reconciler) Confirm(ctx context.Context, externalID, movementID string, matchType domain.MatchType) (repository.ReconciliationLink, error) {
	if !matchType.Valid() {
		return repository.ReconciliationLink{}, domain.InvalidArgument("match_type", "unknown match type %q", matchType)
	}

	var link repository.ReconciliationLink
	err := database.WithTx(ctx, r.DB, func(tx *sql.Tx) error {
		ext, err := repository.NewExternalTransactionRepo(tx).Get(ctx, externalID)
		if err != nil {
			return err
		}
		if ext == nil {
			return domain.NotFound("external_transaction", externalID)
		}
		m, err := repository.NewMovementRepo(tx).Get(ctx, movementID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.NotFound("movement", movementID)
		}
		if m.EntityID != ext.EntityID {
			return domain.Errorf(domain.KindCrossEntityViolation, "movement_id",
				"movement entity %s differs from transaction entity %s", m.EntityID, ext.EntityID)
		}

		links := repository.NewReconciliationRepo(tx)
		existing, err := links.ByExternal(ctx, ext.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.Errorf(domain.KindAlreadyReconciled, "external_transaction_id", "linked to movement %s", existing.MovementID)
		}
		taken, err := links.LinkedMovement(ctx, m.ID)
		if err != nil {
			return err
		}
		if taken {
			return domain.Errorf(domain.KindAlreadyReconciled, "movement_id", "movement %s backs another link", m.ID)
		}

		link = repository.ReconciliationLink{
			ID:                    uuid.NewString(),
			ExternalTransactionID: ext.ID,
			MovementID:            m.ID,
			MatchType:             matchType,
		}
		sug, ok := Score(*ext, *m, r.Policy)
		switch {
		case matchType == domain.MatchManual:
			link.Confidence = confidenceManual
			link.Evidence = evidenceFor(*ext, *m)
		case !ok:
			return domain.InvalidArgument("movement_id", "movement %s is not a candidate for %s", m.ID, ext.ID)
		case matchType == domain.MatchExact && !(sug.Evidence.DateMatch && sug.Evidence.AmountMatch):
			return domain.InvalidArgument("match_type", "exact link needs matching date and amount")
		default:
			link.Confidence = sug.Confidence
			link.Evidence = sug.Evidence
		}

		if err := links.Add(ctx, link); err != nil {
			if database.IsUniqueViolation(err) {
				return &domain.Error{Kind: domain.KindAlreadyReconciled, Field: "external_transaction_id", Err: err}
			}
			return err
		}
		return nil
	})
	if err != nil {
		if domain.IsConflict(err) {
			r.Log.Debug().Str("external_id", externalID).Err(err).Msg("confirm conflict")
		}
		return repository.ReconciliationLink{}, err
	}
	r.Log.Info().Str("external_id", externalID).Str("movement_id", movementID).
		Str("match_type", string(matchType)).Float64("confidence", link.Confidence).Msg("link confirmed")
	return link, nil
}

func evidenceFor(ext repository.ExternalTransaction, m repository.LedgerMovement) domain.Evidence {
	days := dayDistance(ext.PostedDate, m.Date)
	delta := money.Abs(money.Abs(m.Amount) - ext.Amount)
	return domain.Evidence{
		DateMatch:   days == 0,
		AmountMatch: delta == 0,
		DayDistance: days,
		AmountDelta: delta,
		Similarity:  textmatch.Jaccard(ext.RawDescription, m.Description),
		EditRatio:   textmatch.EditRatio(ext.RawDescription, m.Description),
	}
}

// Unlink removes the link of an external transaction. Missing links are a no-op.
func (r *Reconciler) Unlink(ctx context.Context, externalID string) error {
	removed, err := r.Links.DeleteByExternal(ctx, externalID)
	if err != nil {
		return err
	}
	if removed {
		r.Log.Info().Str("external_id", externalID).Msg("link removed")
	}
	return nil
}

// ListUnreconciled returns external transactions without a link, narrowed by
// account, posting month and description search. Zero fields do not filter.
// The search text is normalized the same way stored descriptions are.
func (r *Reconciler) ListUnreconciled(ctx context.Context, f repository.ExternalFilters) ([]repository.ExternalTransaction, error) {
	f.Unreconciled = true
	if f.Search != "" {
		f.Search = textmatch.Normalize(f.Search)
	}
	return r.Transactions.List(ctx, f)
}
