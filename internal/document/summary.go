package document

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// maxStreakDays ограничивает глубину поиска серий.
const maxStreakDays = 366

type DaySummary struct {
	Date                 string
	CompletedTodos       []string
	PendingTodos         []string
	HabitsDone           []string
	HabitsMissed         []string
	NonNegotiablesDone   []string
	NonNegotiablesMissed []string
	Expenses             []Expense
	ExpenseTotal         float64
}

// SummarizeDay собирает сводку за дату: задачи, привычки, non-negotiables и расходы.
func SummarizeDay(doc UserDocument, date string) DaySummary {
	summary := DaySummary{Date: date}

	for _, todo := range doc.Todos {
		if todo.Date != date {
			continue
		}
		if todo.Completed {
			summary.CompletedTodos = append(summary.CompletedTodos, todo.Title)
		} else {
			summary.PendingTodos = append(summary.PendingTodos, todo.Title)
		}
	}

	for _, habit := range doc.Habits {
		if habit.Logs[date] {
			summary.HabitsDone = append(summary.HabitsDone, habit.Name)
		} else {
			summary.HabitsMissed = append(summary.HabitsMissed, habit.Name)
		}
	}

	done := doc.NonNegotiableLogs[date]
	for _, item := range doc.NonNegotiables {
		if containsString(done, item.ID) {
			summary.NonNegotiablesDone = append(summary.NonNegotiablesDone, item.Title)
		} else {
			summary.NonNegotiablesMissed = append(summary.NonNegotiablesMissed, item.Title)
		}
	}

	for _, expense := range doc.Expenses {
		if expense.Date == date {
			summary.Expenses = append(summary.Expenses, expense)
			summary.ExpenseTotal += expense.Amount
		}
	}

	return summary
}

// Describe возвращает сводку обычным текстом для промпта.
func (s DaySummary) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Date: %s\n", s.Date)
	writeList(&b, "Completed tasks", s.CompletedTodos)
	writeList(&b, "Pending tasks", s.PendingTodos)
	writeList(&b, "Habits done", s.HabitsDone)
	writeList(&b, "Habits missed", s.HabitsMissed)
	writeList(&b, "Non-negotiables kept", s.NonNegotiablesDone)
	writeList(&b, "Non-negotiables missed", s.NonNegotiablesMissed)

	if len(s.Expenses) == 0 {
		b.WriteString("Expenses: none\n")
		return b.String()
	}

	parts := make([]string, 0, len(s.Expenses))
	for _, expense := range s.Expenses {
		label := expense.Description
		if label == "" {
			label = string(expense.Category)
		}
		parts = append(parts, fmt.Sprintf("%s %.2f", label, expense.Amount))
	}
	fmt.Fprintf(&b, "Expenses (total %.2f): %s\n", s.ExpenseTotal, strings.Join(parts, ", "))
	return b.String()
}

func writeList(b *strings.Builder, label string, values []string) {
	if len(values) == 0 {
		fmt.Fprintf(b, "%s: none\n", label)
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, strings.Join(values, ", "))
}

type Streak struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Days  int    `json:"days"`
}

type CategoryTotal struct {
	Category ExpenseCategory `json:"category"`
	Total    float64         `json:"total"`
}

type DashboardStats struct {
	Date                 string          `json:"date"`
	TodosCompleted       int             `json:"todos_completed"`
	TodosPending         int             `json:"todos_pending"`
	HabitStreaks         []Streak        `json:"habit_streaks"`
	NonNegotiableStreaks []Streak        `json:"non_negotiable_streaks"`
	MonthExpenses        []CategoryTotal `json:"month_expenses"`
	MonthExpenseTotal    float64         `json:"month_expense_total"`
	MilestonesOpen       int             `json:"milestones_open"`
}

// Stats считает агрегаты для календарного дашборда на указанную дату.
func Stats(doc UserDocument, day time.Time) DashboardStats {
	date := day.Format(DateLayout)
	summary := SummarizeDay(doc, date)

	stats := DashboardStats{
		Date:                 date,
		TodosCompleted:       len(summary.CompletedTodos),
		TodosPending:         len(summary.PendingTodos),
		HabitStreaks:         make([]Streak, 0, len(doc.Habits)),
		NonNegotiableStreaks: make([]Streak, 0, len(doc.NonNegotiables)),
		MonthExpenses:        []CategoryTotal{},
	}

	for _, habit := range doc.Habits {
		logs := habit.Logs
		days := countStreak(day, func(d string) bool { return logs[d] })
		stats.HabitStreaks = append(stats.HabitStreaks, Streak{ID: habit.ID, Title: habit.Name, Days: days})
	}

	for _, item := range doc.NonNegotiables {
		id := item.ID
		days := countStreak(day, func(d string) bool { return containsString(doc.NonNegotiableLogs[d], id) })
		stats.NonNegotiableStreaks = append(stats.NonNegotiableStreaks, Streak{ID: item.ID, Title: item.Title, Days: days})
	}

	month := day.Format("2006-01")
	totals := map[ExpenseCategory]float64{}
	for _, expense := range doc.Expenses {
		if !strings.HasPrefix(expense.Date, month) {
			continue
		}
		totals[expense.Category] += expense.Amount
		stats.MonthExpenseTotal += expense.Amount
	}
	for category, total := range totals {
		stats.MonthExpenses = append(stats.MonthExpenses, CategoryTotal{Category: category, Total: total})
	}
	sort.Slice(stats.MonthExpenses, func(i, j int) bool {
		return stats.MonthExpenses[i].Category < stats.MonthExpenses[j].Category
	})

	for _, milestone := range doc.Milestones {
		if !milestone.Completed {
			stats.MilestonesOpen++
		}
	}

	return stats
}

// countStreak считает подряд идущие отмеченные дни, заканчивая днем day.
func countStreak(day time.Time, done func(string) bool) int {
	days := 0
	for i := 0; i < maxStreakDays; i++ {
		if !done(day.AddDate(0, 0, -i).Format(DateLayout)) {
			break
		}
		days++
	}
	return days
}
