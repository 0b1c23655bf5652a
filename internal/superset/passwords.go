package superset

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	databaseKeyPrefix = "databases/"
	databaseKeySuffix = ".yaml"
)

// DatabaseKey returns the export-bundle path Superset uses to match a
// password to a database: databases/<name>.yaml. Names already in that
// form are returned unchanged.
func DatabaseKey(name string) string {
	if strings.HasPrefix(name, databaseKeyPrefix) && strings.HasSuffix(name, databaseKeySuffix) {
		return name
	}
	return databaseKeyPrefix + name + databaseKeySuffix
}

// BuildPasswordMap parses a JSON object of database name to password and
// rekeys it with DatabaseKey. Blank input means no passwords.
func BuildPasswordMap(raw string) (map[string]string, error) {
	passwords := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return passwords, nil
	}

	var byName map[string]string
	if err := json.Unmarshal([]byte(raw), &byName); err != nil {
		return nil, stepErr(StepPasswords, fmt.Errorf("DBS_PASSWORDS must be a JSON object of database name to password: %w", err))
	}

	for name, password := range byName {
		if name == "" {
			return nil, stepErr(StepPasswords, errors.New("database name cannot be empty"))
		}
		passwords[DatabaseKey(name)] = password
	}
	return passwords, nil
}

// EncodePasswords serializes the password map for the "passwords" form
// field. Keys are sorted; an empty map encodes to "{}".
func EncodePasswords(passwords map[string]string) (string, error) {
	if len(passwords) == 0 {
		return "{}", nil
	}
	data, err := json.Marshal(passwords)
	if err != nil {
		return "", stepErr(StepPasswords, err)
	}
	return string(data), nil
}
