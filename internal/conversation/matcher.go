package conversation

import (
	"context"

	"conversation-service/internal/repositories"
)

// Matcher finds a live conversation whose participant set is exactly the
// requested one.
type Matcher struct {
	repo repositories.ConversationRepository
}

// NewMatcher constructs a Matcher.
func NewMatcher(repo repositories.ConversationRepository) *Matcher {
	return &Matcher{repo: repo}
}

// FindExisting narrows candidates by participant count, then verifies full
// set equality. A two-member request without a title only considers
// untitled conversations.
func (m *Matcher) FindExisting(ctx context.Context, set ParticipantSet, hasTitle bool) (int64, bool, error) {
	if set.Len() == 0 {
		return 0, false, nil
	}
	untitledOnly := set.Len() == 2 && !hasTitle

	candidates, err := m.repo.FindCandidates(ctx, set.IDs(), set.Len(), untitledOnly)
	if err != nil {
		return 0, false, err
	}
	if len(candidates) == 0 {
		return 0, false, nil
	}

	rows, err := m.repo.ListParticipants(ctx, candidates)
	if err != nil {
		return 0, false, err
	}
	grouped := make(map[int64][]int64, len(candidates))
	for _, p := range rows {
		grouped[p.ConversationID] = append(grouped[p.ConversationID], p.UserID)
	}

	for _, id := range candidates {
		if NewParticipantSet(grouped[id]...).Equal(set) {
			return id, true, nil
		}
	}
	return 0, false, nil
}
