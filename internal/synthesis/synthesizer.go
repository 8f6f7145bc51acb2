package synthesis

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/adapters"
	"github.com/evocoder/mimicbot/internal/adapters/llm"
)

const (
	DefaultPromptBudget   = 1000
	DefaultMaxAnswerWords = 20

	systemPrompt = "Ты отвечаешь на вопросы от имени участника чата, подражая его манере письма. " +
		"Используй только предоставленные сообщения этого участника, ничего не выдумывай."
)

// Synthesizer turns a question plus matched archive texts into a short reply
// in the persona's voice.
type Synthesizer struct {
	llm            adapters.LLM
	styler         *Styler
	promptBudget   int
	maxAnswerWords int
	logger         *log.Entry
}

func NewSynthesizer(model adapters.LLM, styler *Styler, promptBudget, maxAnswerWords int, logger *log.Entry) *Synthesizer {
	if promptBudget <= 0 {
		promptBudget = DefaultPromptBudget
	}
	if maxAnswerWords <= 0 {
		maxAnswerWords = DefaultMaxAnswerWords
	}
	return &Synthesizer{
		llm:            model,
		styler:         styler,
		promptBudget:   promptBudget,
		maxAnswerWords: maxAnswerWords,
		logger:         logger,
	}
}

// Synthesize builds the prompt and asks the generator. An empty string means
// "stay silent": either no material, no answer, or a generator failure.
func (s *Synthesizer) Synthesize(ctx context.Context, question string, matchedTexts []string) string {
	if len(matchedTexts) == 0 {
		return ""
	}

	corpus := truncateRunes(strings.Join(matchedTexts, " "), s.promptBudget)
	prompt := fmt.Sprintf("Сообщения участника:\n%s\n\nВопрос: %s\n\nОтветь коротко, его голосом.", corpus, question)

	resp, err := s.llm.ChatCompletion(ctx, []llm.ChatCompletionMessage{
		{Role: llm.RoleSystem, Content: systemPrompt},
		{Role: llm.RoleUser, Content: prompt},
	})
	if err != nil {
		s.logger.WithError(err).Error("cant generate answer")
		return ""
	}
	if len(resp.Choices) == 0 {
		return ""
	}

	answer := strings.TrimSpace(resp.Choices[0].Message.Content)
	if answer == "" {
		return ""
	}

	answer = truncateWords(answer, s.maxAnswerWords)
	if s.styler != nil {
		answer = s.styler.Apply(answer)
	}
	return answer
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func truncateWords(s string, limit int) string {
	words := strings.Fields(s)
	if len(words) <= limit {
		return s
	}
	return strings.Join(words[:limit], " ")
}
