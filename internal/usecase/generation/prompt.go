package generation

import (
	"fmt"
	"strings"

	"content-planner/internal/domain"
)

const systemPrompt = `You are a social media content marketing specialist. Your job is to produce creative, varied and authentic Instagram post ideas.

IMPORTANT: Return ONLY a valid JSON object, with no extra text before or after it.`

// PromptInput данные для сборки запроса к модели.
type PromptInput struct {
	Company        domain.Company
	Week           domain.Week
	HistoryContext string
	Country        string
}

// Prompt системная и пользовательская инструкции.
type Prompt struct {
	System string
	User   string
}

// BuildPrompt собирает инструкции для генерации недельного набора.
func BuildPrompt(in PromptInput) Prompt {
	formats := make([]string, 0, len(domain.PostFormats))
	for _, f := range domain.PostFormats {
		formats = append(formats, string(f))
	}
	quoted := `"` + strings.Join(formats, `", "`) + `"`

	var b strings.Builder
	fmt.Fprintf(&b, "Generate post ideas for the company %q, in the %q niche, for the week starting on %s.\n\n", in.Company.Name, in.Company.Niche, in.Week)
	fmt.Fprintf(&b, "The company publishes %d posts per week.\n\n", in.Company.PostsPerWeek)
	b.WriteString("HISTORY OF POSTS ALREADY USED (DO NOT REPEAT):\n")
	b.WriteString(in.HistoryContext)
	b.WriteString("\n\n")
	b.WriteString(specialDatesDirective(in.Company, in.Country))
	b.WriteString("\n\n")
	b.WriteString("For each post, produce:\n")
	b.WriteString("- title: short, catchy title\n")
	b.WriteString("- image_description: detailed description of what the image must contain (be specific about colors, elements and style)\n")
	fmt.Fprintf(&b, "- format: one of %s\n", quoted)
	fmt.Fprintf(&b, "- caption: full caption with emojis, a call to action and relevant hashtags (at most %d characters)\n", domain.MaxCaptionLength)
	b.WriteString("- theme: main theme of the post\n")
	b.WriteString("- is_special_date: true if the post is about a special date, false otherwise\n\n")
	b.WriteString(`RULES:
1. Be VERY creative and avoid repeating ideas, themes or structures from the history
2. Vary the formats across the week (` + strings.Join(formats, ", ") + `)
3. Write engaging captions with personality
4. Use emojis naturally
5. Include appropriate calls to action
6. Add 5-8 relevant hashtags at the end of each caption
7. If there is a special date, mark it with is_special_date: true

Return a JSON object with this EXACT structure:
{
  "posts": [
    {
      "title": "string",
      "image_description": "string",
      "format": "` + strings.Join(formats, "|") + `",
      "caption": "string",
      "theme": "string",
      "is_special_date": false
    }
  ]
}`)

	return Prompt{System: systemPrompt, User: b.String()}
}

func specialDatesDirective(company domain.Company, country string) string {
	scope := "any national observance"
	if country != "" {
		scope = fmt.Sprintf("any national observance in %s", country)
	}
	if company.HasCity() {
		return fmt.Sprintf("Check whether there is %s, or one specific to the city of %s, during this week. If there is, create ONE extra post marked as a special date.", scope, company.City)
	}
	return fmt.Sprintf("Check whether there is %s during this week. If there is, create ONE extra post marked as a special date.", scope)
}
