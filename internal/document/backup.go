package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

const backupFilePrefix = "life_tracker_backup_"

// BackupFilename возвращает имя файла резервной копии за указанную дату.
func BackupFilename(now time.Time) string {
	return backupFilePrefix + now.Format(DateLayout) + ".json"
}

// Export сериализует документ в форматированный UTF-8 JSON.
func Export(doc UserDocument) ([]byte, error) {
	payload, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("export document: %w", err)
	}
	return payload, nil
}

// Import проверяет файл резервной копии и возвращает документ.
// Требуются как минимум объекты user и goals; остальные поля дополняются
// значениями шаблона. Любая ошибка оборачивает ErrInvalidStructure.
func Import(raw []byte) (UserDocument, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return UserDocument{}, ErrInvalidStructure
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		return UserDocument{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	for _, required := range []string{fieldUser, fieldGoals} {
		value, ok := fields[required]
		if !ok {
			return UserDocument{}, fmt.Errorf("%w: missing %s", ErrInvalidStructure, required)
		}
		value = bytes.TrimSpace(value)
		if len(value) == 0 || value[0] != '{' {
			return UserDocument{}, fmt.Errorf("%w: %s must be an object", ErrInvalidStructure, required)
		}
	}

	var profile Profile
	if err := json.Unmarshal(fields[fieldUser], &profile); err != nil {
		return UserDocument{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	doc, err := Decode(trimmed, profile.Name)
	if err != nil {
		return UserDocument{}, fmt.Errorf("%w: %v", ErrInvalidStructure, err)
	}

	return doc, nil
}
