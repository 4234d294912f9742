package document

import "time"

const DateLayout = "2006-01-02"

// IsDay сообщает, является ли value датой в формате YYYY-MM-DD.
func IsDay(value string) bool {
	_, err := time.Parse(DateLayout, value)
	return err == nil
}

type Priority string

type PostStatus string

type ExpenseCategory string

const (
	PriorityTop    Priority = "TOP"
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"

	PostStatusQueued    PostStatus = "QUEUED"
	PostStatusPublished PostStatus = "PUBLISHED"
	PostStatusSent      PostStatus = "SENT"

	CategoryFood          ExpenseCategory = "FOOD"
	CategoryTransport     ExpenseCategory = "TRANSPORT"
	CategoryHousing       ExpenseCategory = "HOUSING"
	CategoryHealth        ExpenseCategory = "HEALTH"
	CategoryEntertainment ExpenseCategory = "ENTERTAINMENT"
	CategoryShopping      ExpenseCategory = "SHOPPING"
	CategoryEducation     ExpenseCategory = "EDUCATION"
	CategoryOther         ExpenseCategory = "OTHER"
)

// UserDocument: единственный агрегат пользователя, сохраняется целиком.
type UserDocument struct {
	Goals             Goals               `json:"goals"`
	User              Profile             `json:"user"`
	NonNegotiables    []NonNegotiable     `json:"nonNegotiables"`
	NonNegotiableLogs map[string][]string `json:"nonNegotiableLogs"`
	Todos             []Todo              `json:"todos"`
	Habits            []Habit             `json:"habits"`
	Journal           []JournalEntry      `json:"journal"`
	Expenses          []Expense           `json:"expenses"`
	Milestones        []Milestone         `json:"milestones"`
	SocialQueue       []SocialPost        `json:"socialQueue"`
	VisionBoard       []VisionImage       `json:"visionBoard"`
	SavedChat         []SavedMessage      `json:"savedChat"`
}

type Goals struct {
	Main   string `json:"main"`
	Weekly string `json:"weekly"`
}

type Profile struct {
	Name         string `json:"name"`
	ProfileImage string `json:"profileImage,omitempty"`
}

type NonNegotiable struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type Todo struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Priority  Priority `json:"priority"`
	Completed bool     `json:"completed"`
	Date      string   `json:"date"`
}

// Habit хранит явные булевы отметки по датам, в отличие от non-negotiables.
type Habit struct {
	ID   string          `json:"id"`
	Name string          `json:"name"`
	Logs map[string]bool `json:"logs"`
}

type JournalEntry struct {
	ID         string   `json:"id"`
	Date       string   `json:"date" validate:"required,day"`
	Content    string   `json:"content"`
	Mood       string   `json:"mood,omitempty"`
	Highlights []string `json:"highlights"`
	Persons    []string `json:"persons"`
	Images     []string `json:"images"`
	Location   string   `json:"location,omitempty"`
	Weather    string   `json:"weather,omitempty"`
}

type Expense struct {
	ID          string          `json:"id"`
	Amount      float64         `json:"amount"`
	Category    ExpenseCategory `json:"category"`
	Description string          `json:"description"`
	Date        string          `json:"date" validate:"required,day"`
}

type Milestone struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Date        string `json:"date" validate:"omitempty,day"`
	Completed   bool   `json:"completed"`
	Description string `json:"description,omitempty"`
}

type SocialPost struct {
	ID            string     `json:"id"`
	Content       string     `json:"content"`
	Image         *string    `json:"image"`
	Platforms     []string   `json:"platforms"`
	ScheduledTime string     `json:"scheduledTime"`
	Status        PostStatus `json:"status"`
}

// VisionImage.Src содержит URL либо Base64 data URL, пока изображение не загружено.
type VisionImage struct {
	ID          int64   `json:"id"`
	Src         string  `json:"src"`
	Area        float64 `json:"area"`
	AspectRatio float64 `json:"aspectRatio"`
}

type SavedMessage struct {
	ID        string `json:"id"`
	Text      string `json:"text"`
	Image     string `json:"image,omitempty"`
	Timestamp string `json:"timestamp"`
}

// ParsePriority возвращает приоритет из перечисления; неизвестные значения не принимаются.
func ParsePriority(value string) (Priority, bool) {
	switch Priority(value) {
	case PriorityTop, PriorityHigh, PriorityMedium, PriorityLow:
		return Priority(value), true
	default:
		return "", false
	}
}

// CoercePriority приводит произвольное значение к перечислению, по умолчанию MEDIUM.
func CoercePriority(value string) Priority {
	if p, ok := ParsePriority(value); ok {
		return p
	}
	return PriorityMedium
}

func coerceCategory(value ExpenseCategory) ExpenseCategory {
	switch value {
	case CategoryFood, CategoryTransport, CategoryHousing, CategoryHealth,
		CategoryEntertainment, CategoryShopping, CategoryEducation, CategoryOther:
		return value
	default:
		return CategoryOther
	}
}

func coercePostStatus(value PostStatus) PostStatus {
	switch value {
	case PostStatusQueued, PostStatusPublished, PostStatusSent:
		return value
	default:
		return PostStatusQueued
	}
}
