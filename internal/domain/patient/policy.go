package patient

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Policy holds the visit rules the practice applies on top of the lifecycle
// primitives: leaving patients are archived, stale patients go back into the
// queue, and finishing a visit marks the patient seen. Each rule issues the
// ordinary Service calls; none of them is folded into Update or Archive.
type Policy struct {
	svc    *Service
	logger zerolog.Logger
}

func NewPolicy(svc *Service, logger zerolog.Logger) *Policy {
	return &Policy{svc: svc, logger: logger.With().Str("component", "visit_policy").Logger()}
}

// ArchivesOnStatus reports whether a patient in status s leaves the practice.
func ArchivesOnStatus(s Status) bool {
	return s == StatusDeceased || s == StatusDischarged
}

// StalenessEligible reports whether the staleness rule may move a patient in
// status s back to "needs seen". Only "visit complete" and "needs seen" are
// eligible; refused, unset and every other status are exempt.
func StalenessEligible(s Status) bool {
	return s == StatusVisitComplete || s == StatusNeedsSeen
}

// AfterStatusChange archives p when its status means the patient has left.
// It returns the resulting record and whether an archive was issued.
func (pol *Policy) AfterStatusChange(ctx context.Context, p *Patient) (*Patient, bool, error) {
	if p.Archived() || !ArchivesOnStatus(p.StatusOrEmpty()) {
		return p, false, nil
	}
	archived, err := pol.svc.Archive(ctx, p.ID)
	if err != nil {
		return nil, false, fmt.Errorf("archive after status %q: %w", p.StatusOrEmpty(), err)
	}
	return archived, true, nil
}

// UpdateWithPolicy is Update followed by AfterStatusChange.
func (pol *Policy) UpdateWithPolicy(ctx context.Context, id uuid.UUID, u *Update) (*Patient, bool, error) {
	p, err := pol.svc.Update(ctx, id, u)
	if err != nil {
		return nil, false, err
	}
	if u.Status == nil {
		return p, false, nil
	}
	return pol.AfterStatusChange(ctx, p)
}

// ReviewResult summarizes one staleness review.
type ReviewResult struct {
	Reviewed int         `json:"reviewed"`
	Flagged  []uuid.UUID `json:"flagged"`
	Exempt   int         `json:"exempt"`
	Unknown  []uuid.UUID `json:"unknown_status"`
}

// ReviewStaleness moves every eligible, active, due patient to "needs seen".
// Patients already in "needs seen" are counted but not rewritten.
func (pol *Policy) ReviewStaleness(ctx context.Context, patients []*Patient, now time.Time) (*ReviewResult, error) {
	res := &ReviewResult{Flagged: []uuid.UUID{}, Unknown: []uuid.UUID{}}
	for _, p := range patients {
		if p.Archived() {
			continue
		}
		res.Reviewed++

		status := p.StatusOrEmpty()
		if status != "" && !status.Valid() {
			res.Unknown = append(res.Unknown, p.ID)
		}
		if !StalenessEligible(status) {
			res.Exempt++
			continue
		}
		if status == StatusNeedsSeen || !IsDue(p.DateLastSeen, now) {
			continue
		}

		needsSeen := StatusNeedsSeen
		if _, err := pol.svc.Update(ctx, p.ID, &Update{Status: &needsSeen}); err != nil {
			return res, fmt.Errorf("flag patient %s: %w", p.ID, err)
		}
		res.Flagged = append(res.Flagged, p.ID)
	}

	pol.logger.Info().
		Int("reviewed", res.Reviewed).
		Int("flagged", len(res.Flagged)).
		Int("exempt", res.Exempt).
		Msg("staleness review finished")
	return res, nil
}

// ReviewFacility runs ReviewStaleness over every active patient of a facility.
func (pol *Policy) ReviewFacility(ctx context.Context, facilityID uuid.UUID, now time.Time) (*ReviewResult, error) {
	patients, _, err := pol.svc.ListByFacility(ctx, facilityID, 0, 0)
	if err != nil {
		return nil, fmt.Errorf("load facility queue: %w", err)
	}
	return pol.ReviewStaleness(ctx, patients, now)
}

// MarkSeen records a finished visit: date_last_seen becomes now's date and
// status becomes "visit complete".
func (pol *Policy) MarkSeen(ctx context.Context, id uuid.UUID, now time.Time) (*Patient, error) {
	today := FormatDate(now)
	complete := StatusVisitComplete
	return pol.svc.Update(ctx, id, &Update{DateLastSeen: &today, Status: &complete})
}
