// Package services – content generation.
//
// Template-based question/answer/follow-up text keyed by the deterministic
// daily topic rotation. The generator is pure: variation comes from the
// caller-supplied pick index, so the scheduler can regenerate once after a
// duplicate hit without any shared state.
package services

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/tbourn/go-community-sim/internal/domain"
	"github.com/tbourn/go-community-sim/internal/similarity"
)

var questionTemplates = []string{
	"I struggle with %s and it is starting to affect my daily life. What helped you get past it?",
	"Does anyone else here deal with %s? I would love to hear what actually worked for you.",
	"How long did it take you to see real progress with %s? I feel stuck.",
	"What is one small exercise I can practice every day to improve at %s?",
	"My biggest challenge right now is %s. Where should a beginner start?",
}

var answerTemplates = []string{
	"What worked for me with %s was starting ridiculously small and building up. The first week felt pointless, but the consistency is what rewires the habit.",
	"I dealt with %s for years. The turning point was preparing less and exposing myself more — short, frequent practice beats one big push.",
	"A coach once told me that %s is a skill, not a trait. Treat it like training: schedule it, track it, and expect some bad days.",
	"With %s, the trick that helped me most was focusing on the other person instead of myself. The anxiety drops when your attention moves outward.",
	"Honestly, %s got easier for me once I stopped aiming for perfect and aimed for done. Lowering the bar is underrated.",
}

var followUpTemplates = []string{
	"Thanks for engaging with this — how has it been going for you since?",
	"Really glad this resonated. If you try it, I would love to hear how it goes.",
	"Good point — everyone's pace with this is different, so be patient with yourself.",
}

var titleCaser = cases.Title(language.English)

// ContentGenerator produces bot post text. Deterministic given (bot, day,
// pick): the topic comes from the daily rotation and the pick index selects
// the template variant, so a retry after a duplicate can vary the text
// without randomness of its own.
type ContentGenerator struct{}

// Question returns a candidate question title and body for the bot's topic
// of the day. pick selects the template variant (wrapped, any int is safe).
func (ContentGenerator) Question(bot *domain.Bot, day domain.Day, pick int) (topic, title, body string) {
	topic = similarity.TopicFor(bot.ID, day)
	tpl := questionTemplates[mod(pick, len(questionTemplates))]
	body = fmt.Sprintf(tpl, topic)
	title = titleCaser.String(topic) + " — looking for advice"
	return topic, title, body
}

// Answer returns a candidate answer body for the given question.
func (ContentGenerator) Answer(bot *domain.Bot, q *domain.Question, day domain.Day, pick int) string {
	topic := q.Topic
	if topic == "" {
		topic = similarity.TopicFor(bot.ID, day)
	}
	tpl := answerTemplates[mod(pick, len(answerTemplates))]
	return fmt.Sprintf(tpl, topic)
}

// FollowUp returns a short reply a bot posts when a real user engaged with
// its content.
func (ContentGenerator) FollowUp(pick int) string {
	return followUpTemplates[mod(pick, len(followUpTemplates))]
}

func mod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}
