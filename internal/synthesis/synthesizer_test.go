package synthesis

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"testing"

	log "github.com/sirupsen/logrus"

	"github.com/evocoder/mimicbot/internal/adapters/llm"
)

type scriptedLLM struct {
	content  string
	err      error
	lastSeen []llm.ChatCompletionMessage
}

func (s *scriptedLLM) ChatCompletion(_ context.Context, messages []llm.ChatCompletionMessage) (llm.ChatCompletionResponse, error) {
	s.lastSeen = messages
	if s.err != nil {
		return llm.ChatCompletionResponse{}, s.err
	}
	return llm.ChatCompletionResponse{
		Choices: []llm.ChatCompletionChoice{{Message: llm.ChatCompletionMessage{Role: llm.RoleAssistant, Content: s.content}}},
	}, nil
}

func newTestLogger() *log.Entry {
	return log.NewEntry(log.New())
}

func TestSynthesizeIncludesCorpusAndQuestion(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{content: "люблю котов"}
	synth := NewSynthesizer(model, nil, 0, 0, newTestLogger())

	answer := synth.Synthesize(context.Background(), "Что думаешь про котов?", []string{"очень люблю котов", "и собак тоже"})
	if answer == "" {
		t.Fatalf("expected non-empty answer")
	}

	var userPrompt string
	for _, msg := range model.lastSeen {
		if msg.Role == llm.RoleUser {
			userPrompt = msg.Content
		}
	}
	if !strings.Contains(userPrompt, "очень люблю котов") {
		t.Fatalf("prompt is missing matched text: %q", userPrompt)
	}
	if !strings.Contains(userPrompt, "Что думаешь про котов?") {
		t.Fatalf("prompt is missing the question: %q", userPrompt)
	}
}

func TestSynthesizeSilenceWithoutMaterial(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{content: "не должно вызваться"}
	synth := NewSynthesizer(model, nil, 0, 0, newTestLogger())

	if answer := synth.Synthesize(context.Background(), "вопрос", nil); answer != "" {
		t.Fatalf("expected silence without matched texts, got %q", answer)
	}
	if model.lastSeen != nil {
		t.Fatalf("generator should not be called without material")
	}
}

func TestSynthesizeSilenceOnGeneratorError(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{err: errors.New("rate limited")}
	synth := NewSynthesizer(model, nil, 0, 0, newTestLogger())

	if answer := synth.Synthesize(context.Background(), "вопрос", []string{"текст"}); answer != "" {
		t.Fatalf("generator error must surface as silence, got %q", answer)
	}
}

func TestSynthesizeTruncatesPromptBudget(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{content: "ответ"}
	synth := NewSynthesizer(model, nil, 10, 0, newTestLogger())

	long := strings.Repeat("ы", 50)
	_ = synth.Synthesize(context.Background(), "в", []string{long})

	var userPrompt string
	for _, msg := range model.lastSeen {
		if msg.Role == llm.RoleUser {
			userPrompt = msg.Content
		}
	}
	if strings.Contains(userPrompt, strings.Repeat("ы", 11)) {
		t.Fatalf("corpus was not truncated to the rune budget")
	}
}

func TestSynthesizeCapsAnswerWords(t *testing.T) {
	t.Parallel()

	model := &scriptedLLM{content: strings.Repeat("слово ", 40)}
	synth := NewSynthesizer(model, nil, 0, 20, newTestLogger())

	answer := synth.Synthesize(context.Background(), "вопрос", []string{"текст"})
	if got := len(strings.Fields(answer)); got > 20 {
		t.Fatalf("answer exceeds word cap: %d words", got)
	}
}

func TestStylerSubstitutesKnownCharsOnly(t *testing.T) {
	t.Parallel()

	styler := NewStyler(rand.New(rand.NewSource(1)))
	original := "снова около вечера"

	seenChange := false
	for i := 0; i < 100; i++ {
		styled := styler.Apply(original)
		if styled != original && !strings.EqualFold(styled, original) {
			seenChange = true
		}
		for _, r := range styled {
			switch r {
			case 'с', 'з', 'о', 'а', 'в', 'ф', 'н', 'к', 'л', 'е', 'ч', 'р', 'г', 'С', 'З', 'О', 'А', 'В', 'Ф', 'Н', 'К', 'Л', 'Е', 'Ч', 'Р', 'Г', ' ':
			default:
				t.Fatalf("unexpected rune %q in styled text %q", r, styled)
			}
		}
	}
	if !seenChange {
		t.Fatalf("styler never produced a substitution in 100 runs")
	}
}

func TestStylerPreservesWordCount(t *testing.T) {
	t.Parallel()

	styler := NewStyler(rand.New(rand.NewSource(7)))
	original := "это совсем обычное предложение про осень"
	for i := 0; i < 50; i++ {
		styled := styler.Apply(original)
		if len(strings.Fields(styled)) != len(strings.Fields(original)) {
			t.Fatalf("word count changed: %q -> %q", original, styled)
		}
	}
}
