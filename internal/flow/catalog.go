// Package flow implements the FriendQuiz dialogue engine: the question
// catalog, the per-participant conversation state machine, and scoring.
package flow

import (
	"github.com/friendmatch/FriendQuiz/internal/models"
)

// Question is one immutable (key, prompt) pair. The key addresses stored
// answers; the position in the catalog drives traversal order.
type Question struct {
	Key  string
	Text string
}

// Catalog is an ordered, immutable list of questions. Order is fixed at
// initialization and defines both display order and the index contract used
// by conversation state.
type Catalog struct {
	questions []Question
}

// NewCatalog creates a catalog from the given questions.
func NewCatalog(questions []Question) *Catalog {
	qs := make([]Question, len(questions))
	copy(qs, questions)
	return &Catalog{questions: qs}
}

// DefaultCatalog returns the fixed production question list.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultQuestions)
}

// Len returns the fixed question count.
func (c *Catalog) Len() int {
	return len(c.questions)
}

// Key returns the question key at position i.
func (c *Catalog) Key(i int) (string, error) {
	if i < 0 || i >= len(c.questions) {
		return "", models.ErrIndexOutOfRange
	}
	return c.questions[i].Key, nil
}

// Text returns the question prompt at position i.
func (c *Catalog) Text(i int) (string, error) {
	if i < 0 || i >= len(c.questions) {
		return "", models.ErrIndexOutOfRange
	}
	return c.questions[i].Text, nil
}

var defaultQuestions = []Question{
	{Key: "fav_color", Text: "Любимый цвет?"},
	{Key: "season", Text: "Любимое время года?"},
	{Key: "tea_or_coffee", Text: "Чай или кофе?"},
	{Key: "owl_or_lark", Text: "Сова или жаворонок?"},
	{Key: "cafe_order", Text: "Что скорее всего закажешь в кафе?"},
	{Key: "island_item", Text: "Что возьмёшь на необитаемый остров?"},
	{Key: "catchphrase", Text: "Какое слово чаще всего говоришь?"},
	{Key: "million_or_vacation", Text: "Миллион рублей или пожизненный отпуск?"},
	{Key: "childhood_assoc", Text: "Первая ассоциация с детством?"},
	{Key: "celebrity_like", Text: "Кого из знаменитостей ты больше всего напоминаешь?"},
	{Key: "funny_story", Text: "Самая смешная история с подружкой?"},
	{Key: "why_love", Text: "За что тебя можно любить бесконечно?"},
	{Key: "superpower", Text: "Если бы была суперспособность, то какая?"},
	{Key: "parallel_job", Text: "Кем бы работала в параллельной вселенной?"},
	{Key: "country_live", Text: "В какой стране хотела бы пожить?"},
	{Key: "what_lose_first", Text: "Что скорее всего потеряешь первым делом?"},
}
