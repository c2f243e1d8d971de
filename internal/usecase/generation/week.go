package generation

import (
	"time"

	"content-planner/internal/domain"
)

// NextWeek возвращает понедельник следующей недели относительно календарной даты now
// в её часовом поясе. Если now уже понедельник, возвращается понедельник через 7 дней.
func NextWeek(now time.Time) domain.Week {
	offset := (int(time.Monday) + 7 - int(now.Weekday())) % 7
	if offset == 0 {
		offset = 7
	}
	y, m, d := now.Date()
	return domain.NewWeek(time.Date(y, m, d+offset, 0, 0, 0, 0, time.UTC))
}
