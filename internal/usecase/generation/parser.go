package generation

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"content-planner/internal/domain"
)

// GeneratedPost одна идея поста из ответа модели. Отсутствующие строковые поля остаются пустыми.
type GeneratedPost struct {
	Title            string `json:"title"`
	ImageDescription string `json:"image_description"`
	Format           string `json:"format"`
	Caption          string `json:"caption"`
	Theme            string `json:"theme"`
	IsSpecialDate    *bool  `json:"is_special_date"`
}

// ParseResponse достаёт из ответа модели JSON-объект с массивом posts.
//
// Модель может окружить объект пояснениями, поэтому объект ищется с каждой
// открывающей скобки по порядку потоковым декодером, который учитывает строки
// и экранирование. Если ни один кандидат не разобрался, разбирается весь текст.
// Обрезанный или синтаксически битый объект даёт ErrResponseParse.
func ParseResponse(raw string) ([]GeneratedPost, error) {
	payload, err := extractPayload(raw)
	if err != nil {
		return nil, err
	}
	obj, ok := payload.(map[string]json.RawMessage)
	if !ok {
		return nil, fmt.Errorf("%w: top-level value is not an object", domain.ErrInvalidResponseFormat)
	}
	postsRaw, ok := obj["posts"]
	if !ok {
		return nil, fmt.Errorf("%w: posts field is missing", domain.ErrInvalidResponseFormat)
	}
	var entries []json.RawMessage
	if !isArray(postsRaw) || json.Unmarshal(postsRaw, &entries) != nil {
		return nil, fmt.Errorf("%w: posts is not an array", domain.ErrInvalidResponseFormat)
	}

	posts := make([]GeneratedPost, 0, len(entries))
	for i, entry := range entries {
		var post GeneratedPost
		if err := json.Unmarshal(entry, &post); err != nil {
			return nil, fmt.Errorf("%w: post %d: %v", domain.ErrInvalidResponseFormat, i, err)
		}
		posts = append(posts, post)
	}
	return posts, nil
}

func extractPayload(raw string) (any, error) {
	// Кандидаты внутри битого объекта не рассматриваются: иначе из обрезанного
	// ответа достанется вложенный пост вместо ошибки разбора.
	malformedEnd := -1
	for i := strings.IndexByte(raw, '{'); i >= 0; {
		if i >= malformedEnd {
			dec := json.NewDecoder(strings.NewReader(raw[i:]))
			var obj map[string]json.RawMessage
			err := dec.Decode(&obj)
			if err == nil && obj != nil {
				return obj, nil
			}
			var syntaxErr *json.SyntaxError
			switch {
			case errors.Is(err, io.ErrUnexpectedEOF):
				malformedEnd = len(raw)
			case errors.As(err, &syntaxErr):
				// Offset считает и сам недопустимый символ.
				malformedEnd = i + int(syntaxErr.Offset) - 1
			}
		}
		next := strings.IndexByte(raw[i+1:], '{')
		if next < 0 {
			break
		}
		i += next + 1
	}

	trimmed := strings.TrimSpace(raw)
	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &obj); err == nil && obj != nil {
		return obj, nil
	}
	var other any
	if err := json.Unmarshal([]byte(trimmed), &other); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrResponseParse, err)
	}
	return other, nil
}

func isArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
