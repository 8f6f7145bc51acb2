package keywords

import (
	"context"
	"strings"
	"unicode"

	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/adapters"
	"github.com/evocoder/mimicbot/internal/adapters/llm"
)

// Function words that carry no searchable meaning. Mixed Russian/English set,
// matching the chats the bot lives in.
var stopwords = map[string]struct{}{
	"а": {}, "бы": {}, "в": {}, "вот": {}, "да": {}, "и": {}, "из": {}, "к": {},
	"как": {}, "кто": {}, "ли": {}, "на": {}, "не": {}, "нет": {}, "ну": {},
	"о": {}, "он": {}, "она": {}, "они": {}, "оно": {}, "от": {}, "по": {},
	"про": {}, "с": {}, "так": {}, "ты": {}, "у": {}, "что": {}, "это": {},
	"я": {}, "же": {}, "то": {}, "ну-ка": {}, "думаешь": {}, "скажи": {},
	"a": {}, "an": {}, "and": {}, "are": {}, "do": {}, "for": {}, "how": {},
	"in": {}, "is": {}, "it": {}, "of": {}, "on": {}, "or": {}, "the": {},
	"to": {}, "what": {}, "who": {}, "why": {}, "you": {},
}

// Extract lowercases the question, strips everything but letters and digits
// and drops stopwords. If nothing survives, the last raw token is returned so
// the search always has something to chew on.
func Extract(question string) []string {
	fields := strings.Fields(strings.ToLower(question))
	if len(fields) == 0 {
		return nil
	}

	var tokens []string
	for _, field := range fields {
		token := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, field)
		if token == "" {
			continue
		}
		if _, skip := stopwords[token]; skip {
			continue
		}
		tokens = append(tokens, token)
	}

	if len(tokens) == 0 {
		last := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return r
			}
			return -1
		}, fields[len(fields)-1])
		if last == "" {
			return nil
		}
		return []string{last}
	}
	return tokens
}

const topicSystemPrompt = "Ты помощник, который извлекает ключевую тему вопроса."

// TopicExtractor asks the generator for a one-word topic of the question.
type TopicExtractor struct {
	llm    adapters.LLM
	logger *log.Entry
}

func NewTopicExtractor(model adapters.LLM, logger *log.Entry) *TopicExtractor {
	return &TopicExtractor{llm: model, logger: logger}
}

// Topic returns the model's one-word topic for the question, falling back to
// local extraction on any generator failure.
func (t *TopicExtractor) Topic(ctx context.Context, question string) []string {
	resp, err := t.llm.ChatCompletion(ctx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: topicSystemPrompt},
		{Role: llm.RoleUser, Content: "Определи ключевую тему вопроса: '" + question + "' и верни только ключевую тему одним словом."},
	})
	if err != nil {
		t.logger.WithError(err).Error("cant extract topic, falling back to tokens")
		return Extract(question)
	}
	if len(resp.Choices) == 0 {
		return Extract(question)
	}
	topic := strings.TrimSpace(resp.Choices[0].Message.Content)
	if topic == "" {
		return Extract(question)
	}
	t.logger.WithField("topic", topic).Debug("extracted topic")
	return []string{topic}
}
