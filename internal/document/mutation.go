package document

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

type Kind string

const (
	KindAddTodo             Kind = "ADD_TODO"
	KindToggleTodo          Kind = "TOGGLE_TODO"
	KindDeleteTodo          Kind = "DELETE_TODO"
	KindAddHabit            Kind = "ADD_HABIT"
	KindToggleHabit         Kind = "TOGGLE_HABIT"
	KindDeleteHabit         Kind = "DELETE_HABIT"
	KindAddNonNegotiable    Kind = "ADD_NON_NEGOTIABLE"
	KindToggleNonNegotiable Kind = "TOGGLE_NON_NEGOTIABLE"
	KindDeleteNonNegotiable Kind = "DELETE_NON_NEGOTIABLE"
	KindSaveJournalEntry    Kind = "SAVE_JOURNAL_ENTRY"
	KindRemoveJournalEntry  Kind = "REMOVE_JOURNAL_ENTRY"
	KindAddExpense          Kind = "ADD_EXPENSE"
	KindRemoveExpense       Kind = "REMOVE_EXPENSE"
	KindAddMilestone        Kind = "ADD_MILESTONE"
	KindToggleMilestone     Kind = "TOGGLE_MILESTONE"
	KindDeleteMilestone     Kind = "DELETE_MILESTONE"
	KindSetGoals            Kind = "SET_GOALS"
	KindSetProfile          Kind = "SET_PROFILE"
	KindReplaceSocialQueue  Kind = "REPLACE_SOCIAL_QUEUE"
	KindReplaceVisionBoard  Kind = "REPLACE_VISION_BOARD"
	KindReplaceSavedChat    Kind = "REPLACE_SAVED_CHAT"
)

// Mutation описывает изменение документа. Набор реализаций закрыт:
// каждая структура ниже соответствует одному Kind.
type Mutation interface {
	Kind() Kind
}

type AddTodo struct {
	ID       string   `json:"id"`
	Title    string   `json:"title" validate:"required"`
	Priority Priority `json:"priority" validate:"omitempty,priority"`
	Date     string   `json:"date" validate:"required,day"`
}

type ToggleTodo struct {
	ID string `json:"id"`
}

type DeleteTodo struct {
	ID string `json:"id"`
}

type AddHabit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type ToggleHabit struct {
	ID   string `json:"id" validate:"required"`
	Date string `json:"date" validate:"required,day"`
}

type DeleteHabit struct {
	ID string `json:"id"`
}

type AddNonNegotiable struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

type ToggleNonNegotiable struct {
	ID   string `json:"id" validate:"required"`
	Date string `json:"date" validate:"required,day"`
}

type DeleteNonNegotiable struct {
	ID string `json:"id"`
}

// SaveJournalEntry добавляет запись или заменяет запись за ту же дату.
type SaveJournalEntry struct {
	Entry JournalEntry `json:"entry"`
}

type RemoveJournalEntry struct {
	Date string `json:"date" validate:"required,day"`
}

type AddExpense struct {
	Expense Expense `json:"expense"`
}

type RemoveExpense struct {
	ID string `json:"id"`
}

type AddMilestone struct {
	Milestone Milestone `json:"milestone"`
}

type ToggleMilestone struct {
	ID string `json:"id"`
}

type DeleteMilestone struct {
	ID string `json:"id"`
}

type SetGoals struct {
	Goals Goals `json:"goals"`
}

type SetProfile struct {
	Profile Profile `json:"profile"`
}

type ReplaceSocialQueue struct {
	Posts []SocialPost `json:"posts" validate:"unique=ID"`
}

type ReplaceVisionBoard struct {
	Images []VisionImage `json:"images" validate:"unique=ID"`
}

type ReplaceSavedChat struct {
	Messages []SavedMessage `json:"messages" validate:"unique=ID"`
}

func (AddTodo) Kind() Kind             { return KindAddTodo }
func (ToggleTodo) Kind() Kind          { return KindToggleTodo }
func (DeleteTodo) Kind() Kind          { return KindDeleteTodo }
func (AddHabit) Kind() Kind            { return KindAddHabit }
func (ToggleHabit) Kind() Kind         { return KindToggleHabit }
func (DeleteHabit) Kind() Kind         { return KindDeleteHabit }
func (AddNonNegotiable) Kind() Kind    { return KindAddNonNegotiable }
func (ToggleNonNegotiable) Kind() Kind { return KindToggleNonNegotiable }
func (DeleteNonNegotiable) Kind() Kind { return KindDeleteNonNegotiable }
func (SaveJournalEntry) Kind() Kind    { return KindSaveJournalEntry }
func (RemoveJournalEntry) Kind() Kind  { return KindRemoveJournalEntry }
func (AddExpense) Kind() Kind          { return KindAddExpense }
func (RemoveExpense) Kind() Kind       { return KindRemoveExpense }
func (AddMilestone) Kind() Kind        { return KindAddMilestone }
func (ToggleMilestone) Kind() Kind     { return KindToggleMilestone }
func (DeleteMilestone) Kind() Kind     { return KindDeleteMilestone }
func (SetGoals) Kind() Kind            { return KindSetGoals }
func (SetProfile) Kind() Kind          { return KindSetProfile }
func (ReplaceSocialQueue) Kind() Kind  { return KindReplaceSocialQueue }
func (ReplaceVisionBoard) Kind() Kind  { return KindReplaceVisionBoard }
func (ReplaceSavedChat) Kind() Kind    { return KindReplaceSavedChat }

// NewID генерирует идентификатор сущности на стороне клиента.
func NewID() string {
	return uuid.NewString()
}

// DecodeMutation разбирает JSON вида {"type": "...", ...} в конкретную мутацию.
// Пустые идентификаторы у добавляемых сущностей заполняются новыми.
func DecodeMutation(raw []byte) (Mutation, error) {
	var envelope struct {
		Type Kind `json:"type"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("decode mutation: %w", err)
	}

	var target Mutation
	switch Kind(strings.ToUpper(strings.TrimSpace(string(envelope.Type)))) {
	case KindAddTodo:
		target = &AddTodo{}
	case KindToggleTodo:
		target = &ToggleTodo{}
	case KindDeleteTodo:
		target = &DeleteTodo{}
	case KindAddHabit:
		target = &AddHabit{}
	case KindToggleHabit:
		target = &ToggleHabit{}
	case KindDeleteHabit:
		target = &DeleteHabit{}
	case KindAddNonNegotiable:
		target = &AddNonNegotiable{}
	case KindToggleNonNegotiable:
		target = &ToggleNonNegotiable{}
	case KindDeleteNonNegotiable:
		target = &DeleteNonNegotiable{}
	case KindSaveJournalEntry:
		target = &SaveJournalEntry{}
	case KindRemoveJournalEntry:
		target = &RemoveJournalEntry{}
	case KindAddExpense:
		target = &AddExpense{}
	case KindRemoveExpense:
		target = &RemoveExpense{}
	case KindAddMilestone:
		target = &AddMilestone{}
	case KindToggleMilestone:
		target = &ToggleMilestone{}
	case KindDeleteMilestone:
		target = &DeleteMilestone{}
	case KindSetGoals:
		target = &SetGoals{}
	case KindSetProfile:
		target = &SetProfile{}
	case KindReplaceSocialQueue:
		target = &ReplaceSocialQueue{}
	case KindReplaceVisionBoard:
		target = &ReplaceVisionBoard{}
	case KindReplaceSavedChat:
		target = &ReplaceSavedChat{}
	default:
		return nil, fmt.Errorf("unknown mutation type %q", envelope.Type)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("decode %s: %w", target.Kind(), err)
	}

	return withGeneratedIDs(deref(target)), nil
}

// EncodeMutation сериализует мутацию вместе с полем type.
func EncodeMutation(m Mutation) ([]byte, error) {
	payload, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}

	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, err
	}

	kind, err := json.Marshal(m.Kind())
	if err != nil {
		return nil, err
	}
	fields["type"] = kind

	return json.Marshal(fields)
}

func deref(m Mutation) Mutation {
	switch v := m.(type) {
	case *AddTodo:
		return *v
	case *ToggleTodo:
		return *v
	case *DeleteTodo:
		return *v
	case *AddHabit:
		return *v
	case *ToggleHabit:
		return *v
	case *DeleteHabit:
		return *v
	case *AddNonNegotiable:
		return *v
	case *ToggleNonNegotiable:
		return *v
	case *DeleteNonNegotiable:
		return *v
	case *SaveJournalEntry:
		return *v
	case *RemoveJournalEntry:
		return *v
	case *AddExpense:
		return *v
	case *RemoveExpense:
		return *v
	case *AddMilestone:
		return *v
	case *ToggleMilestone:
		return *v
	case *DeleteMilestone:
		return *v
	case *SetGoals:
		return *v
	case *SetProfile:
		return *v
	case *ReplaceSocialQueue:
		return *v
	case *ReplaceVisionBoard:
		return *v
	case *ReplaceSavedChat:
		return *v
	default:
		return m
	}
}

func withGeneratedIDs(m Mutation) Mutation {
	switch v := m.(type) {
	case AddTodo:
		if v.ID == "" {
			v.ID = NewID()
		}
		return v
	case AddHabit:
		if v.ID == "" {
			v.ID = NewID()
		}
		return v
	case AddNonNegotiable:
		if v.ID == "" {
			v.ID = NewID()
		}
		return v
	case SaveJournalEntry:
		if v.Entry.ID == "" {
			v.Entry.ID = NewID()
		}
		return v
	case AddExpense:
		if v.Expense.ID == "" {
			v.Expense.ID = NewID()
		}
		return v
	case AddMilestone:
		if v.Milestone.ID == "" {
			v.Milestone.ID = NewID()
		}
		return v
	default:
		return m
	}
}
