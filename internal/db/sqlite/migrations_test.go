package sqlite

import (
	"context"
	"testing"
)

func TestMessagesIndexesExistAfterMigrations(t *testing.T) {
	t.Parallel()

	client := newTestClient(t)
	ctx := context.Background()

	rows, err := client.db.QueryContext(ctx, "PRAGMA index_list('messages')")
	if err != nil {
		t.Fatalf("query index_list: %v", err)
	}
	defer rows.Close()

	indexes := make(map[string]struct{})
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			t.Fatalf("scan index row: %v", err)
		}
		indexes[name] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		t.Fatalf("iterate index rows: %v", err)
	}

	required := []string{"idx_messages_user", "idx_messages_user_chat"}
	for _, name := range required {
		if _, ok := indexes[name]; !ok {
			t.Fatalf("required index %q not found", name)
		}
	}
}
