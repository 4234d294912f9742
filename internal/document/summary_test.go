package document

import (
	"strings"
	"testing"
	"time"
)

// TestSummarizeDay проверяет сводку дня для черновика дневника.
func TestSummarizeDay(t *testing.T) {
	doc := sampleDocument()
	doc = Apply(doc, ToggleTodo{ID: "t1"})
	doc = Apply(doc, ToggleHabit{ID: "habit-water", Date: "2024-06-01"})
	doc = Apply(doc, ToggleNonNegotiable{ID: "nn-workout", Date: "2024-06-01"})

	summary := SummarizeDay(doc, "2024-06-01")

	if len(summary.CompletedTodos) != 1 || summary.CompletedTodos[0] != "First" {
		t.Fatalf("unexpected completed todos: %v", summary.CompletedTodos)
	}
	if len(summary.PendingTodos) != 1 || summary.PendingTodos[0] != "Second" {
		t.Fatalf("unexpected pending todos: %v", summary.PendingTodos)
	}
	if len(summary.HabitsDone) != 1 || len(summary.NonNegotiablesDone) != 1 {
		t.Fatalf("unexpected habits/non-negotiables: %+v", summary)
	}
	if summary.ExpenseTotal != 12.5 {
		t.Fatalf("expected expense total 12.5, got %v", summary.ExpenseTotal)
	}

	text := summary.Describe()
	if !strings.Contains(text, "Pending tasks: Second") || !strings.Contains(text, "Lunch 12.50") {
		t.Fatalf("unexpected description:\n%s", text)
	}
}

// TestStatsStreaks проверяет подсчет серий и расходов за месяц.
func TestStatsStreaks(t *testing.T) {
	doc := sampleDocument()
	for _, date := range []string{"2024-05-30", "2024-05-31", "2024-06-01"} {
		doc = Apply(doc, ToggleHabit{ID: "habit-water", Date: date})
	}
	doc = Apply(doc, ToggleNonNegotiable{ID: "nn-read", Date: "2024-05-31"})
	doc = Apply(doc, AddExpense{Expense: Expense{ID: "e2", Amount: 7.5, Category: CategoryFood, Date: "2024-06-20"}})
	doc = Apply(doc, AddExpense{Expense: Expense{ID: "e3", Amount: 100, Category: CategoryHousing, Date: "2024-05-20"}})

	stats := Stats(doc, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC))

	if stats.HabitStreaks[0].Days != 3 {
		t.Fatalf("expected 3-day streak, got %d", stats.HabitStreaks[0].Days)
	}
	for _, streak := range stats.NonNegotiableStreaks {
		if streak.Days != 0 {
			t.Fatalf("expected no non-negotiable streak ending today, got %+v", streak)
		}
	}
	if stats.MonthExpenseTotal != 20 {
		t.Fatalf("expected month total 20, got %v", stats.MonthExpenseTotal)
	}
	if len(stats.MonthExpenses) != 1 || stats.MonthExpenses[0].Category != CategoryFood {
		t.Fatalf("unexpected month expenses: %+v", stats.MonthExpenses)
	}
	if stats.MilestonesOpen != 1 {
		t.Fatalf("expected 1 open milestone, got %d", stats.MilestonesOpen)
	}
}
