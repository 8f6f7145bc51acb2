package gemini

import (
	"testing"

	"github.com/google/generative-ai-go/genai"
)

func TestFlattenResponseJoinsParts(t *testing.T) {
	t.Parallel()

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("люблю "), genai.Text("котов")}},
		}},
	}
	got, err := flattenResponse(resp)
	if err != nil {
		t.Fatalf("flatten: %v", err)
	}
	if got != "люблю котов" {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestFlattenResponseWithoutCandidatesErrors(t *testing.T) {
	t.Parallel()

	if _, err := flattenResponse(nil); err == nil {
		t.Fatalf("expected an error for a nil response")
	}
	if _, err := flattenResponse(&genai.GenerateContentResponse{}); err == nil {
		t.Fatalf("expected an error for a response without candidates")
	}
	blocked := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}}
	if _, err := flattenResponse(blocked); err == nil {
		t.Fatalf("expected an error for a candidate without content")
	}
}
