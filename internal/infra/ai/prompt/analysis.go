package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/signaware/internal/domain/ai"
)

// AnalysisSystemPrompt fixes the reply to one JSON object of the Analysis shape.
func AnalysisSystemPrompt() string {
	return `You are an expert legal analyst. You read legal documents on behalf of ordinary users and point out what could hurt them.

Respond ONLY with a single JSON object, no markdown and no commentary, using exactly these keys:
{
  "summary": string,              // comprehensive summary of the document
  "hidden_clauses": [string],     // hidden or obscure clauses that are not immediately apparent
  "risk_assessment": string,      // potential risks to the user
  "loopholes": [string],          // loopholes in the document
  "red_flags": [string],          // major red flags or concerning elements
  "risk_score": number,           // 1 (low risk) to 5 (high risk)
  "confidence_rating": number,    // 0 to 100, your confidence in this analysis
  "key_concerns": [string]        // key concerns the user should be aware of
}
Use empty arrays when nothing applies. Every key is required.`
}

// AnalysisUserPrompt renders the document and the rubric.
func AnalysisUserPrompt(req ai.AnalysisRequest) string {
	source, description, note := "original", "original unmasked content", ""
	if req.Masked {
		source, description = "masked", "PII has been masked for privacy"
		note = "Note: Personal identifiable information (PII) has been masked in this document for privacy protection.\n"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the following legal document and provide a comprehensive analysis.\n\n")
	fmt.Fprintf(&b, "Document Title: %s\n", req.Title)
	fmt.Fprintf(&b, "Document Type: %s\n", req.DocType)
	fmt.Fprintf(&b, "Content Source: %s content (%s)\n\n", source, description)
	fmt.Fprintf(&b, "Document Content:\n%s\n\n", req.Content)
	b.WriteString(`Please analyze this document and provide:

1. A comprehensive summary of the document
2. Any hidden or obscure clauses that might not be immediately apparent
3. A risk assessment explaining potential risks to the user
4. Any loopholes you can identify
5. Red flags or concerning elements
6. A risk score out of 5 (1 = low risk, 5 = high risk)
7. Your confidence rating as a percentage (0-100)
8. Key concerns that users should be aware of

Be thorough and critical in your analysis. Focus on protecting the user's interests.
Consider the document type when analyzing - different types of documents have different risk patterns.
`)
	b.WriteString(note)
	return b.String()
}
