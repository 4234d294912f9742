package document

import "strings"

// Apply возвращает новый документ с примененной мутацией. Исходный документ
// не изменяется. Функция тотальна: неизвестные идентификаторы и пустые
// обязательные поля приводят к no-op, а не к ошибке. Отметки с датой не в
// формате YYYY-MM-DD игнорируются, повторные id в заменяемых списках отбрасываются.
func Apply(doc UserDocument, m Mutation) UserDocument {
	next := doc.Clone()

	switch v := m.(type) {
	case AddTodo:
		next.addTodo(v)
	case ToggleTodo:
		for i := range next.Todos {
			if next.Todos[i].ID == v.ID {
				next.Todos[i].Completed = !next.Todos[i].Completed
				break
			}
		}
	case DeleteTodo:
		next.Todos = removeFirst(next.Todos, func(t Todo) bool { return t.ID == v.ID })
	case AddHabit:
		if v.ID == "" || strings.TrimSpace(v.Name) == "" || containsID(next.Habits, v.ID, func(h Habit) string { return h.ID }) {
			break
		}
		next.Habits = append(next.Habits, Habit{ID: v.ID, Name: strings.TrimSpace(v.Name), Logs: map[string]bool{}})
	case ToggleHabit:
		if !IsDay(v.Date) {
			break
		}
		for i := range next.Habits {
			if next.Habits[i].ID == v.ID {
				next.Habits[i].Logs[v.Date] = !next.Habits[i].Logs[v.Date]
				break
			}
		}
	case DeleteHabit:
		next.Habits = removeFirst(next.Habits, func(h Habit) bool { return h.ID == v.ID })
	case AddNonNegotiable:
		if v.ID == "" || strings.TrimSpace(v.Title) == "" || containsID(next.NonNegotiables, v.ID, func(n NonNegotiable) string { return n.ID }) {
			break
		}
		next.NonNegotiables = append(next.NonNegotiables, NonNegotiable{ID: v.ID, Title: strings.TrimSpace(v.Title)})
	case ToggleNonNegotiable:
		next.toggleNonNegotiable(v)
	case DeleteNonNegotiable:
		next.NonNegotiables = removeFirst(next.NonNegotiables, func(n NonNegotiable) bool { return n.ID == v.ID })
	case SaveJournalEntry:
		next.saveJournalEntry(v.Entry)
	case RemoveJournalEntry:
		kept := make([]JournalEntry, 0, len(next.Journal))
		for _, entry := range next.Journal {
			if entry.Date != v.Date {
				kept = append(kept, entry)
			}
		}
		next.Journal = kept
	case AddExpense:
		next.addExpense(v.Expense)
	case RemoveExpense:
		next.Expenses = removeFirst(next.Expenses, func(e Expense) bool { return e.ID == v.ID })
	case AddMilestone:
		if v.Milestone.ID == "" || strings.TrimSpace(v.Milestone.Title) == "" ||
			containsID(next.Milestones, v.Milestone.ID, func(ms Milestone) string { return ms.ID }) {
			break
		}
		next.Milestones = append(next.Milestones, v.Milestone)
	case ToggleMilestone:
		for i := range next.Milestones {
			if next.Milestones[i].ID == v.ID {
				next.Milestones[i].Completed = !next.Milestones[i].Completed
				break
			}
		}
	case DeleteMilestone:
		next.Milestones = removeFirst(next.Milestones, func(ms Milestone) bool { return ms.ID == v.ID })
	case SetGoals:
		next.Goals = v.Goals
	case SetProfile:
		next.User = v.Profile
	case ReplaceSocialQueue:
		next.SocialQueue = cloneSocialQueue(uniqueBy(v.Posts, func(p SocialPost) string { return p.ID }))
		for i := range next.SocialQueue {
			next.SocialQueue[i].Status = coercePostStatus(next.SocialQueue[i].Status)
		}
	case ReplaceVisionBoard:
		next.VisionBoard = uniqueBy(v.Images, func(img VisionImage) int64 { return img.ID })
	case ReplaceSavedChat:
		next.SavedChat = uniqueBy(v.Messages, func(m SavedMessage) string { return m.ID })
	}

	return next
}

func (d *UserDocument) addTodo(v AddTodo) {
	title := strings.TrimSpace(v.Title)
	if v.ID == "" || title == "" || containsID(d.Todos, v.ID, func(t Todo) string { return t.ID }) {
		return
	}

	d.Todos = append(d.Todos, Todo{
		ID:       v.ID,
		Title:    title,
		Priority: CoercePriority(string(v.Priority)),
		Date:     v.Date,
	})
}

// toggleNonNegotiable хранит выполнение как принадлежность множеству:
// отсутствие идентификатора означает «не выполнено».
func (d *UserDocument) toggleNonNegotiable(v ToggleNonNegotiable) {
	if v.ID == "" || !IsDay(v.Date) {
		return
	}

	current := d.NonNegotiableLogs[v.Date]
	next := make([]string, 0, len(current)+1)
	found := false
	for _, id := range current {
		if id == v.ID {
			found = true
			continue
		}
		if !containsString(next, id) {
			next = append(next, id)
		}
	}
	if !found {
		next = append(next, v.ID)
	}

	if len(next) == 0 {
		delete(d.NonNegotiableLogs, v.Date)
		return
	}
	d.NonNegotiableLogs[v.Date] = next
}

func (d *UserDocument) saveJournalEntry(entry JournalEntry) {
	if entry.Date == "" {
		return
	}
	entry = cloneEntry(entry)
	normalizeEntry(&entry)

	for i := range d.Journal {
		if d.Journal[i].Date == entry.Date {
			entry.ID = d.Journal[i].ID
			d.Journal[i] = entry
			return
		}
	}

	if entry.ID == "" || containsID(d.Journal, entry.ID, func(e JournalEntry) string { return e.ID }) {
		return
	}
	d.Journal = append(d.Journal, entry)
}

func (d *UserDocument) addExpense(expense Expense) {
	if expense.ID == "" || containsID(d.Expenses, expense.ID, func(e Expense) string { return e.ID }) {
		return
	}
	if expense.Amount < 0 {
		expense.Amount = 0
	}
	expense.Category = coerceCategory(expense.Category)
	d.Expenses = append(d.Expenses, expense)
}

func removeFirst[T any](items []T, match func(T) bool) []T {
	for i := range items {
		if match(items[i]) {
			out := make([]T, 0, len(items)-1)
			out = append(out, items[:i]...)
			return append(out, items[i+1:]...)
		}
	}
	return items
}

// uniqueBy возвращает копию items без повторных ключей; остается первое вхождение.
func uniqueBy[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]struct{}, len(items))
	out := make([]T, 0, len(items))
	for _, item := range items {
		k := key(item)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, item)
	}
	return out
}

func containsID[T any](items []T, id string, idOf func(T) string) bool {
	for _, item := range items {
		if idOf(item) == id {
			return true
		}
	}
	return false
}

func containsString(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
