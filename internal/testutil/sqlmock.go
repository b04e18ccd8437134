package testutil

import (
	"database/sql"
	"fmt"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

// SQLMatcher compares statements token by token, so expectations can be
// written on one line while the code keeps its indented SQL.
var SQLMatcher = sqlmock.QueryMatcherFunc(func(expected, actual string) error {
	want := strings.Join(strings.Fields(expected), " ")
	got := strings.Join(strings.Fields(actual), " ")
	if want != got {
		return fmt.Errorf("query %q does not match %q", got, want)
	}
	return nil
})

// NewMockDB returns a sqlmock-backed *sql.DB that is closed when the test ends.
func NewMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(SQLMatcher))
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db, mock
}
