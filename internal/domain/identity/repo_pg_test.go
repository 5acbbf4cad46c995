package identity

import (
	"os"
	"regexp"
	"strings"
	"testing"
)

// A freshly resolved wallet has no name yet and Create inserts the column
// explicitly, so app_user.name must accept NULL.
func TestAppUserSchema_NullableName(t *testing.T) {
	raw, err := os.ReadFile("../../../migrations/001_core.sql")
	if err != nil {
		t.Fatalf("read migration: %v", err)
	}
	m := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS app_user \((.*?)\);`).FindSubmatch(raw)
	if m == nil {
		t.Fatal("app_user table not found in migration")
	}
	for _, line := range strings.Split(string(m[1]), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "name ") {
			if strings.Contains(trimmed, "NOT NULL") {
				t.Errorf("app_user.name is NOT NULL; new users are provisioned without a name")
			}
			return
		}
	}
	t.Fatal("name column not found in app_user DDL")
}
