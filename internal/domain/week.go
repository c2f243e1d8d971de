package domain

import (
	"fmt"
	"time"
)

const weekLayout = "2006-01-02"

// Week понедельник, с которого начинается неделя контента. Ключ партиционирования постов.
type Week struct {
	Monday time.Time
}

// NewWeek приводит дату к полуночи того же календарного дня в UTC.
func NewWeek(day time.Time) Week {
	y, m, d := day.Date()
	return Week{Monday: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseWeek разбирает дату формата YYYY-MM-DD.
func ParseWeek(raw string) (Week, error) {
	t, err := time.Parse(weekLayout, raw)
	if err != nil {
		return Week{}, fmt.Errorf("разбор недели %q: %w", raw, err)
	}
	return NewWeek(t), nil
}

// String возвращает дату в формате YYYY-MM-DD.
func (w Week) String() string {
	return w.Monday.Format(weekLayout)
}

// IsZero сообщает, что неделя не задана.
func (w Week) IsZero() bool {
	return w.Monday.IsZero()
}

// MarshalText реализует encoding.TextMarshaler.
func (w Week) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// UnmarshalText реализует encoding.TextUnmarshaler.
func (w *Week) UnmarshalText(data []byte) error {
	parsed, err := ParseWeek(string(data))
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
