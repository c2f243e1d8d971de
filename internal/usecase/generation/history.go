package generation

import (
	"fmt"
	"iter"
	"strings"

	"content-planner/internal/domain"
)

const (
	// DefaultHistoryLimit сколько последних опубликованных постов уходит в контекст.
	DefaultHistoryLimit = 50
	historyCaptionPrefix = 100
	noHistoryMarker      = "No history available yet."
	unspecifiedTheme     = "unspecified"
)

// HistoryEntry сжатая запись истории для промпта.
type HistoryEntry struct {
	Title         string
	Theme         string
	CaptionPrefix string
}

// HistoryEntries лениво превращает архив в записи контекста, обрезая подписи.
func HistoryEntries(posts []domain.HistoryPost) iter.Seq[HistoryEntry] {
	return func(yield func(HistoryEntry) bool) {
		for _, p := range posts {
			entry := HistoryEntry{
				Title:         p.Title,
				Theme:         p.Theme,
				CaptionPrefix: clipRunes(p.Caption, historyCaptionPrefix),
			}
			if !yield(entry) {
				return
			}
		}
	}
}

// HistoryContext форматирует записи истории для промпта. Пустая история даёт явную пометку.
func HistoryContext(entries iter.Seq[HistoryEntry]) string {
	var b strings.Builder
	for e := range entries {
		theme := e.Theme
		if theme == "" {
			theme = unspecifiedTheme
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "- Title: %q, Theme: %q, Caption: \"%s...\"", e.Title, theme, e.CaptionPrefix)
	}
	if b.Len() == 0 {
		return noHistoryMarker
	}
	return b.String()
}

func clipRunes(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
