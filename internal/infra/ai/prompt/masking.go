package prompt

// MaskingPrompt instructs the local model to replace PII with bracketed placeholders.
func MaskingPrompt(text string) string {
	return `You are a PII (Personally Identifiable Information) masking expert. Your task is to identify and mask any PII in the provided text while preserving the document's meaning and structure.

PII to mask includes:
- Names (first, last, full names)
- Email addresses
- Phone numbers
- Social Security Numbers
- Credit card numbers
- Addresses (street, city, state, zip)
- IP addresses
- Driver's license numbers
- Passport numbers
- Bank account numbers
- Date of birth
- Medical record numbers
- Employee IDs
- License plate numbers

Instructions:
1. Replace each PII item with a generic placeholder in brackets, like [NAME], [EMAIL], [PHONE], [ADDRESS], [SSN], etc.
2. Keep the same format and structure of the original text
3. Do not change any non-PII content
4. If no PII is found, return the original text unchanged
5. Respond ONLY with the masked text, no explanations, thinking process, or additional content
6. Do not include any reasoning or analysis - just provide the final masked text

Text to mask:
` + text + `

Masked text:`
}
