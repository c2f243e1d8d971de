package generation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"content-planner/internal/domain"
)

func TestBuildPromptWithCity(t *testing.T) {
	week, _ := domain.ParseWeek("2026-10-19")
	prompt := BuildPrompt(PromptInput{
		Company:        domain.Company{Name: "Padaria Central", Niche: "bakery", PostsPerWeek: 4, City: "Curitiba"},
		Week:           week,
		HistoryContext: noHistoryMarker,
		Country:        "Brazil",
	})

	assert.Contains(t, prompt.System, "ONLY a valid JSON object")
	assert.Contains(t, prompt.User, `"Padaria Central"`)
	assert.Contains(t, prompt.User, `"bakery"`)
	assert.Contains(t, prompt.User, "2026-10-19")
	assert.Contains(t, prompt.User, "publishes 4 posts per week")
	assert.Contains(t, prompt.User, noHistoryMarker)
	assert.Contains(t, prompt.User, "national observance in Brazil, or one specific to the city of Curitiba")
	assert.Contains(t, prompt.User, "ONE extra post marked as a special date")
	assert.Contains(t, prompt.User, "at most 2200 characters")
	assert.Contains(t, prompt.User, "5-8 relevant hashtags")
	assert.Contains(t, prompt.User, `"format": "photo|carousel|video|story"`)
	for _, field := range []string{"title", "image_description", "format", "caption", "theme", "is_special_date"} {
		assert.Contains(t, prompt.User, "- "+field+":", field)
	}
}

func TestBuildPromptWithoutCity(t *testing.T) {
	week, _ := domain.ParseWeek("2026-10-19")
	prompt := BuildPrompt(PromptInput{
		Company:        domain.Company{Name: "Studio", Niche: "yoga", PostsPerWeek: 2},
		Week:           week,
		HistoryContext: "- Title: \"Old\"",
	})

	assert.Contains(t, prompt.User, "Check whether there is any national observance during this week")
	assert.False(t, strings.Contains(prompt.User, "city of"))
	assert.Contains(t, prompt.User, "- Title: \"Old\"")
}
