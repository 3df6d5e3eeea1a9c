package domain

import "time"

// ActivityEntry — запись аудита. Журнал append-only: ядро пишет по одной
// записи на каждую изменяющую операцию и никогда не читает его для логики.
type ActivityEntry struct {
	ID       string
	UserID   string
	Action   string
	Details  string
	Occurred time.Time
}
