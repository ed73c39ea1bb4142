package prompt

import (
	"strings"
	"testing"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
)

func TestAnalysisUserPromptContentSource(t *testing.T) {
	raw := AnalysisUserPrompt(ai.AnalysisRequest{Title: "ToS", DocType: "terms_of_service", Content: "body"})
	if !strings.Contains(raw, "Content Source: original content (original unmasked content)") {
		t.Fatalf("raw prompt missing source line:\n%s", raw)
	}
	if strings.Contains(raw, "has been masked") {
		t.Fatalf("raw prompt should not carry the PII note")
	}

	masked := AnalysisUserPrompt(ai.AnalysisRequest{Title: "ToS", DocType: "terms_of_service", Content: "[NAME] agrees", Masked: true})
	for _, want := range []string{
		"Document Title: ToS",
		"Document Type: terms_of_service",
		"Content Source: masked content (PII has been masked for privacy)",
		"[NAME] agrees",
		"6. A risk score out of 5",
		"PII) has been masked in this document",
	} {
		if !strings.Contains(masked, want) {
			t.Fatalf("masked prompt missing %q", want)
		}
	}
}

func TestAnalysisSystemPromptListsEveryKey(t *testing.T) {
	p := AnalysisSystemPrompt()
	for _, key := range []string{"summary", "hidden_clauses", "risk_assessment", "loopholes", "red_flags", "risk_score", "confidence_rating", "key_concerns"} {
		if !strings.Contains(p, `"`+key+`"`) {
			t.Fatalf("system prompt missing key %s", key)
		}
	}
}

func TestChatAndMaskingPromptsEmbedInput(t *testing.T) {
	if !strings.Contains(ChatSystemPrompt("CTX-BLOCK"), "CTX-BLOCK") {
		t.Fatalf("chat prompt must embed the context")
	}
	m := MaskingPrompt("call 555-0100")
	if !strings.Contains(m, "call 555-0100\n\nMasked text:") {
		t.Fatalf("masking prompt must end with the text to mask")
	}
}
