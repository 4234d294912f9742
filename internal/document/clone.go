package document

// Clone возвращает глубокую копию документа. Коллекции копии никогда не nil.
func (d UserDocument) Clone() UserDocument {
	out := UserDocument{
		Goals:             d.Goals,
		User:              d.User,
		NonNegotiables:    append([]NonNegotiable{}, d.NonNegotiables...),
		NonNegotiableLogs: make(map[string][]string, len(d.NonNegotiableLogs)),
		Todos:             append([]Todo{}, d.Todos...),
		Habits:            make([]Habit, 0, len(d.Habits)),
		Journal:           make([]JournalEntry, 0, len(d.Journal)),
		Expenses:          append([]Expense{}, d.Expenses...),
		Milestones:        append([]Milestone{}, d.Milestones...),
		SocialQueue:       cloneSocialQueue(d.SocialQueue),
		VisionBoard:       append([]VisionImage{}, d.VisionBoard...),
		SavedChat:         append([]SavedMessage{}, d.SavedChat...),
	}

	for date, ids := range d.NonNegotiableLogs {
		out.NonNegotiableLogs[date] = append([]string{}, ids...)
	}

	for _, habit := range d.Habits {
		logs := make(map[string]bool, len(habit.Logs))
		for date, done := range habit.Logs {
			logs[date] = done
		}
		out.Habits = append(out.Habits, Habit{ID: habit.ID, Name: habit.Name, Logs: logs})
	}

	for _, entry := range d.Journal {
		out.Journal = append(out.Journal, cloneEntry(entry))
	}

	return out
}

func cloneEntry(entry JournalEntry) JournalEntry {
	entry.Highlights = append([]string{}, entry.Highlights...)
	entry.Persons = append([]string{}, entry.Persons...)
	entry.Images = append([]string{}, entry.Images...)
	return entry
}

func cloneSocialQueue(posts []SocialPost) []SocialPost {
	out := make([]SocialPost, 0, len(posts))
	for _, post := range posts {
		if post.Image != nil {
			image := *post.Image
			post.Image = &image
		}
		post.Platforms = append([]string{}, post.Platforms...)
		out = append(out, post)
	}
	return out
}
