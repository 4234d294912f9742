package document

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

// TestTemplateForNewUser проверяет сценарий регистрации пользователя Ava.
func TestTemplateForNewUser(t *testing.T) {
	doc := Template("  Ava ")

	if doc.User.Name != "Ava" {
		t.Fatalf("expected name Ava, got %q", doc.User.Name)
	}
	if len(doc.Todos) != 0 || doc.Todos == nil {
		t.Fatalf("expected empty todos, got %v", doc.Todos)
	}
	if len(doc.Habits) != len(defaultHabits) {
		t.Fatalf("expected %d default habits, got %d", len(defaultHabits), len(doc.Habits))
	}
	for i, habit := range doc.Habits {
		if habit.ID != defaultHabits[i].ID || habit.Logs == nil {
			t.Fatalf("unexpected habit %+v", habit)
		}
	}
}

// TestTemplateIsIndependent проверяет, что шаблоны не делят общие коллекции.
func TestTemplateIsIndependent(t *testing.T) {
	first := Template("A")
	second := Template("B")

	first.Habits[0].Logs["2024-06-01"] = true
	first.NonNegotiables[0].Title = "changed"

	if second.Habits[0].Logs["2024-06-01"] || second.NonNegotiables[0].Title == "changed" {
		t.Fatal("expected templates to be independent")
	}
}

// TestDecodeFillsMissingFields проверяет миграцию при чтении для старой схемы.
func TestDecodeFillsMissingFields(t *testing.T) {
	raw := []byte(`{
		"goals": {"main": "Run a marathon", "weekly": "3 runs"},
		"user": {"name": "Ava"},
		"todos": [{"id": "t1", "title": "Run", "priority": "HIGH", "completed": false, "date": "2024-06-01"}],
		"habits": [],
		"socialQueue": null
	}`)

	doc, err := Decode(raw, "Fallback")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if doc.VisionBoard == nil || len(doc.VisionBoard) != 0 {
		t.Fatalf("expected empty vision board, got %v", doc.VisionBoard)
	}
	if doc.SocialQueue == nil || len(doc.SocialQueue) != 0 {
		t.Fatalf("expected null social queue replaced by default, got %v", doc.SocialQueue)
	}
	if !reflect.DeepEqual(doc.NonNegotiables, defaultNonNegotiables) {
		t.Fatalf("expected default non-negotiables, got %v", doc.NonNegotiables)
	}
	if len(doc.Habits) != 0 {
		t.Fatalf("expected explicit empty habits to be kept, got %v", doc.Habits)
	}
	if doc.User.Name != "Ava" || doc.Goals.Main != "Run a marathon" {
		t.Fatalf("expected present fields kept, got %+v %+v", doc.User, doc.Goals)
	}
	if len(doc.Todos) != 1 {
		t.Fatalf("expected todos kept, got %v", doc.Todos)
	}
}

// TestDecodeUsesDisplayNameForMissingUser проверяет имя по умолчанию.
func TestDecodeUsesDisplayNameForMissingUser(t *testing.T) {
	doc, err := Decode([]byte(`{"goals": {}}`), "Ava")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if doc.User.Name != "Ava" {
		t.Fatalf("expected Ava, got %q", doc.User.Name)
	}
}

// TestDecodeRejectsMalformed проверяет ошибку на некорректном JSON.
func TestDecodeRejectsMalformed(t *testing.T) {
	if _, err := Decode([]byte(`{"goals":`), ""); err == nil {
		t.Fatal("expected error for malformed json")
	}
}

// TestExportImportRoundTrip проверяет, что экспорт и импорт дают тот же документ.
func TestExportImportRoundTrip(t *testing.T) {
	doc := sampleDocument()
	image := "https://cdn/p.png"
	doc = Apply(doc, ReplaceSocialQueue{Posts: []SocialPost{{ID: "p1", Content: "Hi", Image: &image, Platforms: []string{"x"}, ScheduledTime: "2024-06-01T10:00:00Z", Status: PostStatusSent}}})
	doc = Apply(doc, SaveJournalEntry{Entry: JournalEntry{ID: "j1", Date: "2024-06-01", Content: "ok", Mood: "calm", Highlights: []string{"sun"}}})
	doc = Apply(doc, ToggleNonNegotiable{ID: "nn-read", Date: "2024-06-01"})
	doc = Apply(doc, ToggleHabit{ID: "habit-water", Date: "2024-06-01"})

	payload, err := Export(doc)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(payload), "\n  \"goals\"") {
		t.Fatal("expected pretty-printed json")
	}

	imported, err := Import(payload)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	if !reflect.DeepEqual(imported, doc) {
		t.Fatalf("round trip mismatch:\n%+v\n%+v", imported, doc)
	}
}

// TestImportRejectsInvalidStructure проверяет минимальную проверку схемы.
func TestImportRejectsInvalidStructure(t *testing.T) {
	cases := map[string]string{
		"malformed":    `{"user": {"name": "Ava"}`,
		"missingGoals": `{"user": {"name": "Ava"}}`,
		"missingUser":  `{"goals": {}}`,
		"userNotObj":   `{"user": "Ava", "goals": {}}`,
		"array":        `[]`,
		"empty":        ``,
	}

	for name, raw := range cases {
		if _, err := Import([]byte(raw)); !errors.Is(err, ErrInvalidStructure) {
			t.Fatalf("%s: expected ErrInvalidStructure, got %v", name, err)
		}
	}
}

// TestBackupFilename проверяет формат имени файла резервной копии.
func TestBackupFilename(t *testing.T) {
	got := BackupFilename(time.Date(2024, 6, 1, 23, 0, 0, 0, time.UTC))
	if got != "life_tracker_backup_2024-06-01.json" {
		t.Fatalf("unexpected filename %s", got)
	}
}
