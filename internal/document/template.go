package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	fieldGoals             = "goals"
	fieldUser              = "user"
	fieldNonNegotiables    = "nonNegotiables"
	fieldNonNegotiableLogs = "nonNegotiableLogs"
	fieldTodos             = "todos"
	fieldHabits            = "habits"
	fieldJournal           = "journal"
	fieldExpenses          = "expenses"
	fieldMilestones        = "milestones"
	fieldSocialQueue       = "socialQueue"
	fieldVisionBoard       = "visionBoard"
	fieldSavedChat         = "savedChat"
)

// Fields перечисляет все поля верхнего уровня документа.
var Fields = []string{
	fieldGoals,
	fieldUser,
	fieldNonNegotiables,
	fieldNonNegotiableLogs,
	fieldTodos,
	fieldHabits,
	fieldJournal,
	fieldExpenses,
	fieldMilestones,
	fieldSocialQueue,
	fieldVisionBoard,
	fieldSavedChat,
}

var defaultNonNegotiables = []NonNegotiable{
	{ID: "nn-wake-early", Title: "Wake up early"},
	{ID: "nn-workout", Title: "Workout"},
	{ID: "nn-read", Title: "Read 10 pages"},
}

var defaultHabits = []Habit{
	{ID: "habit-water", Name: "Drink water"},
	{ID: "habit-meditate", Name: "Meditate"},
	{ID: "habit-no-sugar", Name: "No sugar"},
}

var ErrInvalidStructure = errors.New("invalid structure")

// Template создает документ нового пользователя с его отображаемым именем.
func Template(name string) UserDocument {
	habits := make([]Habit, 0, len(defaultHabits))
	for _, habit := range defaultHabits {
		habits = append(habits, Habit{ID: habit.ID, Name: habit.Name, Logs: map[string]bool{}})
	}

	nonNegotiables := make([]NonNegotiable, len(defaultNonNegotiables))
	copy(nonNegotiables, defaultNonNegotiables)

	return UserDocument{
		Goals:             Goals{},
		User:              Profile{Name: strings.TrimSpace(name)},
		NonNegotiables:    nonNegotiables,
		NonNegotiableLogs: map[string][]string{},
		Todos:             []Todo{},
		Habits:            habits,
		Journal:           []JournalEntry{},
		Expenses:          []Expense{},
		Milestones:        []Milestone{},
		SocialQueue:       []SocialPost{},
		VisionBoard:       []VisionImage{},
		SavedChat:         []SavedMessage{},
	}
}

// Decode разбирает сохраненный документ и дополняет отсутствующие поля
// значениями из шаблона (миграция при чтении).
func Decode(raw []byte, displayName string) (UserDocument, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return UserDocument{}, fmt.Errorf("decode document: %w", err)
	}

	var doc UserDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return UserDocument{}, fmt.Errorf("decode document: %w", err)
	}

	present := make(map[string]bool, len(fields))
	for key, value := range fields {
		if len(bytes.TrimSpace(value)) == 0 || bytes.Equal(bytes.TrimSpace(value), []byte("null")) {
			continue
		}
		present[key] = true
	}

	FillDefaults(&doc, present, displayName)
	return doc, nil
}

// FillDefaults заполняет поля, которых нет в present, значениями шаблона.
// Присутствующие поля не меняются, кроме замены nil-коллекций на пустые.
func FillDefaults(doc *UserDocument, present map[string]bool, displayName string) {
	tpl := Template(displayName)

	if !present[fieldGoals] {
		doc.Goals = tpl.Goals
	}
	if !present[fieldUser] {
		doc.User = tpl.User
	}
	if !present[fieldNonNegotiables] {
		doc.NonNegotiables = tpl.NonNegotiables
	}
	if !present[fieldNonNegotiableLogs] {
		doc.NonNegotiableLogs = tpl.NonNegotiableLogs
	}
	if !present[fieldTodos] {
		doc.Todos = tpl.Todos
	}
	if !present[fieldHabits] {
		doc.Habits = tpl.Habits
	}
	if !present[fieldJournal] {
		doc.Journal = tpl.Journal
	}
	if !present[fieldExpenses] {
		doc.Expenses = tpl.Expenses
	}
	if !present[fieldMilestones] {
		doc.Milestones = tpl.Milestones
	}
	if !present[fieldSocialQueue] {
		doc.SocialQueue = tpl.SocialQueue
	}
	if !present[fieldVisionBoard] {
		doc.VisionBoard = tpl.VisionBoard
	}
	if !present[fieldSavedChat] {
		doc.SavedChat = tpl.SavedChat
	}

	normalize(doc)
}

// normalize убирает nil-коллекции, чтобы редьюсер и JSON видели пустые значения.
func normalize(doc *UserDocument) {
	if doc.NonNegotiables == nil {
		doc.NonNegotiables = []NonNegotiable{}
	}
	if doc.NonNegotiableLogs == nil {
		doc.NonNegotiableLogs = map[string][]string{}
	}
	if doc.Todos == nil {
		doc.Todos = []Todo{}
	}
	if doc.Habits == nil {
		doc.Habits = []Habit{}
	}
	for i := range doc.Habits {
		if doc.Habits[i].Logs == nil {
			doc.Habits[i].Logs = map[string]bool{}
		}
	}
	if doc.Journal == nil {
		doc.Journal = []JournalEntry{}
	}
	for i := range doc.Journal {
		normalizeEntry(&doc.Journal[i])
	}
	if doc.Expenses == nil {
		doc.Expenses = []Expense{}
	}
	if doc.Milestones == nil {
		doc.Milestones = []Milestone{}
	}
	if doc.SocialQueue == nil {
		doc.SocialQueue = []SocialPost{}
	}
	for i := range doc.SocialQueue {
		if doc.SocialQueue[i].Platforms == nil {
			doc.SocialQueue[i].Platforms = []string{}
		}
	}
	if doc.VisionBoard == nil {
		doc.VisionBoard = []VisionImage{}
	}
	if doc.SavedChat == nil {
		doc.SavedChat = []SavedMessage{}
	}
}

func normalizeEntry(entry *JournalEntry) {
	if entry.Highlights == nil {
		entry.Highlights = []string{}
	}
	if entry.Persons == nil {
		entry.Persons = []string{}
	}
	if entry.Images == nil {
		entry.Images = []string{}
	}
}
