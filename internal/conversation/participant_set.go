package conversation

import (
	"sort"
	"strconv"
	"strings"
)

// ParticipantSet is an order-independent set of user ids.
type ParticipantSet struct {
	ids []int64
}

// NewParticipantSet builds a set from ids, dropping duplicates.
func NewParticipantSet(ids ...int64) ParticipantSet {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return ParticipantSet{ids: out}
}

// Len returns the number of members.
func (s ParticipantSet) Len() int { return len(s.ids) }

// IDs returns the members in ascending order.
func (s ParticipantSet) IDs() []int64 {
	out := make([]int64, len(s.ids))
	copy(out, s.ids)
	return out
}

// Contains reports membership.
func (s ParticipantSet) Contains(id int64) bool {
	i := sort.Search(len(s.ids), func(i int) bool { return s.ids[i] >= id })
	return i < len(s.ids) && s.ids[i] == id
}

// Equal reports set equality.
func (s ParticipantSet) Equal(other ParticipantSet) bool {
	if s.Len() != other.Len() {
		return false
	}
	for _, id := range s.ids {
		if !other.Contains(id) {
			return false
		}
	}
	for _, id := range other.ids {
		if !s.Contains(id) {
			return false
		}
	}
	return true
}

// Fingerprint is the canonical encoding stored in participant_key. Direct
// and non-direct conversations over the same members get distinct keys.
func (s ParticipantSet) Fingerprint(direct bool) string {
	var b strings.Builder
	if direct {
		b.WriteString("d:")
	} else {
		b.WriteString("g:")
	}
	for i, id := range s.ids {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatInt(id, 10))
	}
	return b.String()
}
