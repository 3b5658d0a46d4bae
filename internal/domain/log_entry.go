package domain

// LogEntry хранит одну сохранённую запись журнала уведомлений.
// После создания запись не изменяется; журнал очищается только целиком.
type LogEntry struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	User    string `json:"user,omitempty"`
	Time    string `json:"time"`    // локальное время получения в формате TimeLayout
	Content string `json:"content"` // готовый текст уведомления
}

// TimeLayout задаёт формат отображения времени получения события.
const TimeLayout = "2006/1/2 15:04:05"
