package extract

import (
	"strings"
	"time"

	"github.com/avoronov/billfold/internal/domain"
)

// candidateFields describes one extracted transaction object. Shared by the
// text and image prompts so the two schemas never drift.
const candidateFields = `Each transaction object must have these fields:
- "amount": number (the transaction amount; use 0 if it cannot be determined)
- "type": string, "income" or "expense"
- "category": string, EXACTLY one of the categories listed below
- "subcategory": string, one of the listed subcategories for that category, or ""
- "timestamp": string, ISO 8601 (e.g. "2026-03-10T14:05:00Z"); use the current local time if the input gives none
- "note": short factual description in the user's language
- "currency": ISO 4217 code; use the user's default currency if the input names none
- "location": string, one of the user's locations listed below, or ""
- "emoji": one representative emoji glyph
- "tags": array of strings, a subset of the user's tags listed below (may be empty)
`

const strictJSONRules = `Return ONLY valid raw JSON.
Do NOT wrap the response in code fences.
Do NOT use ` + "```json" + ` or any Markdown.
`

// buildTextPrompt constructs the extraction prompt for free text. The model
// must answer {"found": bool, "transactions": [...]} — found=false when the
// input has no financial content at all.
func buildTextPrompt(user domain.User, localTime time.Time, text string) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. The user describes one or more money transactions in free text.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract EVERY transaction mentioned in the text below.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString(`- Output a single JSON object: {"found": boolean, "transactions": [...]}` + "\n")
	b.WriteString(`- If the text contains no financial content, output {"found": false, "transactions": []}.` + "\n\n")
	b.WriteString(candidateFields)
	b.WriteString("\n")
	writeUserContext(&b, user, localTime)
	b.WriteString("\n")
	b.WriteString(strictJSONRules)
	b.WriteString("\nText:\n")
	b.WriteString(text)
	return b.String()
}

// buildImagePrompt constructs the extraction prompt for a photo (receipt,
// bill, price tag). The model answers a single-candidate shape:
// {"found": bool, "transaction": {...}}.
func buildImagePrompt(user domain.User, localTime time.Time) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant. The attached photo shows a bill, receipt or price tag.\n\n")
	b.WriteString("Task:\n")
	b.WriteString("- Extract the single transaction shown in the photo.\n")
	b.WriteString("- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n")
	b.WriteString(`- Output a single JSON object: {"found": boolean, "transaction": {...}}` + "\n")
	b.WriteString(`- If the photo shows nothing financial, output {"found": false}.` + "\n\n")
	b.WriteString(candidateFields)
	b.WriteString("\n")
	writeUserContext(&b, user, localTime)
	b.WriteString("\n")
	b.WriteString(strictJSONRules)
	return b.String()
}

// writeUserContext embeds the per-user vocabulary the model must match
// against: local time, default currency and language, tag and location
// names, and the fixed category taxonomy.
func writeUserContext(b *strings.Builder, user domain.User, localTime time.Time) {
	b.WriteString("Context:\n")
	b.WriteString("- Current local time: " + localTime.Format(time.RFC3339) + "\n")
	b.WriteString("- User's default currency: " + user.DefaultCurrency + "\n")
	if user.Language != "" {
		b.WriteString("- User's language (write the note in it): " + user.Language + "\n")
	}
	if len(user.Tags) > 0 {
		b.WriteString("- User's tags: " + strings.Join(user.Tags, ", ") + "\n")
	}
	if len(user.Locations) > 0 {
		b.WriteString("- User's locations: " + strings.Join(user.Locations, ", ") + "\n")
	}

	b.WriteString("\nUse ONLY the following categories and subcategories:\n\n")
	writeCategoryList(b, "Income categories", domain.IncomeCategories)
	writeCategoryList(b, "Expense categories", domain.ExpenseCategories)

	b.WriteString("CATEGORY ASSIGNMENT RULES:\n")
	b.WriteString("1. Category must be EXACTLY one of the names shown above.\n")
	b.WriteString("2. Subcategory must be one of the names listed under that category; otherwise use \"\".\n")
	b.WriteString("3. If you are unsure, use category \"" + domain.CategoryOther + "\" with subcategory \"\".\n")
}

func writeCategoryList(b *strings.Builder, title string, categories []string) {
	b.WriteString(title + ":\n")
	for _, cat := range categories {
		b.WriteString("  " + cat)
		if subs, ok := domain.Subcategories[cat]; ok {
			b.WriteString(" (subcategories: " + strings.Join(subs, ", ") + ")")
		}
		b.WriteString("\n")
	}
	b.WriteString("\n")
}
