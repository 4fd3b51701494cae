package similarity

import (
	"hash/fnv"

	"github.com/tbourn/go-community-sim/internal/domain"
)

// Topics is the fixed rotation of community themes bots draw from. Order
// matters: TopicFor indexes into this slice deterministically.
var Topics = []string{
	"public speaking",
	"social anxiety",
	"workplace confidence",
	"dating confidence",
	"body language",
	"small talk",
	"job interviews",
	"self esteem",
	"assertiveness",
	"overthinking",
	"imposter syndrome",
	"making friends",
}

// TopicFor picks a topic for botID on the given calendar day. The pick is a
// pure function of (botID, day-of-year): the same bot gets the same topic all
// day and, in general, a different one the next day. No shared mutable state
// is involved, so concurrent callers always agree.
func TopicFor(botID string, day domain.Day) string {
	h := fnv.New32a()
	h.Write([]byte(botID))
	seed := h.Sum32() + uint32(day.Time().YearDay())
	return Topics[int(seed%uint32(len(Topics)))]
}
