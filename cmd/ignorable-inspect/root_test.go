package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hatlonely/ignorable/rdb"
)

// newTestConfig 建一个 sqlite 文件库和指向它的配置文件
func newTestConfig(t *testing.T, fetcher string) string {
	t.Helper()
	dir := t.TempDir()
	database := filepath.Join(dir, "app.db")

	s, err := rdb.NewSQLWithOptions(&rdb.SQLOptions{Driver: rdb.DriverSQLite3, Database: database})
	require.NoError(t, err)
	_, err = s.Exec(context.Background(), `CREATE TABLE test_models (id INTEGER PRIMARY KEY AUTOINCREMENT, name TEXT NOT NULL, some_attributes TEXT, legacy INTEGER)`)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	options := "driver: sqlite3\n    database: " + database
	if fetcher == "GormFetcher" {
		options = "driver: sqlite\n    dsn: " + database
	}
	path := filepath.Join(dir, "ignorable.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
fetcher:
  type: `+fetcher+`
  options:
    `+options+`
entities:
  - name: TestModel
    table: test_models
    ignore: [some_attributes, legacy]
    ignoreInSql: true
  - name: SubclassTestModel
    parent: TestModel
`), 0644))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestColumnsCmd(t *testing.T) {
	config := newTestConfig(t, "SQLFetcher")

	t.Run("text", func(t *testing.T) {
		out, err := execute(t, "columns", "--config", config, "--entity", "TestModel")
		require.NoError(t, err)
		assert.Contains(t, out, "TestModel (test_models)")
		assert.Contains(t, out, "ignored: some_attributes, legacy")
		assert.NotContains(t, out, "included")
		assert.NotContains(t, out, "  legacy")
	})

	t.Run("json", func(t *testing.T) {
		out, err := execute(t, "columns", "-c", config, "-o", "json")
		require.NoError(t, err)

		var reports []columnsReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 2)
		assert.Equal(t, "TestModel", reports[0].Entity)
		assert.Equal(t, []string{"some_attributes", "legacy"}, reports[0].Ignored)
		assert.Equal(t, []columnReport{
			{Name: "id", Type: "INTEGER", Nullable: true, PrimaryKey: true},
			{Name: "name", Type: "TEXT"},
		}, reports[0].Columns)
		assert.Equal(t, "TestModel", reports[1].Parent)
	})

	t.Run("include", func(t *testing.T) {
		out, err := execute(t, "columns", "-c", config, "-e", "TestModel", "-o", "json", "--include", "legacy")
		require.NoError(t, err)

		var reports []columnsReport
		require.NoError(t, json.Unmarshal([]byte(out), &reports))
		require.Len(t, reports, 1)
		assert.Equal(t, []string{"legacy"}, reports[0].Included)
		assert.Len(t, reports[0].Columns, 3)
		assert.Equal(t, "legacy", reports[0].Columns[2].Name)
	})

	t.Run("all", func(t *testing.T) {
		out, err := execute(t, "columns", "-c", config, "-e", "TestModel", "--all")
		require.NoError(t, err)
		assert.Contains(t, out, "included: some_attributes, legacy")
	})
}

func TestSQLCmd(t *testing.T) {
	tests := []struct {
		name     string
		fetcher  string
		args     []string
		expected string
	}{
		{
			name:     "SQLFetcher",
			fetcher:  "SQLFetcher",
			expected: `TestModel: SELECT "test_models"."id", "test_models"."name" FROM "test_models"`,
		},
		{
			name:     "SQLFetcher 放开",
			fetcher:  "SQLFetcher",
			args:     []string{"--include", "legacy"},
			expected: `TestModel: SELECT "test_models"."id", "test_models"."name", "test_models"."legacy" FROM "test_models"`,
		},
		{
			name:     "GormFetcher",
			fetcher:  "GormFetcher",
			expected: "TestModel: SELECT `test_models`.`id`,`test_models`.`name` FROM `test_models`",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := newTestConfig(t, tt.fetcher)
			out, err := execute(t, append([]string{"sql", "-c", config, "-e", "TestModel"}, tt.args...)...)
			require.NoError(t, err)
			assert.Equal(t, tt.expected+"\n", out)
		})
	}
}

func TestRootCmdErrors(t *testing.T) {
	config := newTestConfig(t, "SQLFetcher")

	tests := []struct {
		name string
		args []string
	}{
		{name: "输出格式不支持", args: []string{"columns", "-c", config, "-o", "yaml"}},
		{name: "配置文件不存在", args: []string{"columns", "-c", filepath.Join(t.TempDir(), "missing.yaml")}},
		{name: "类型不存在", args: []string{"columns", "-c", config, "-e", "Missing"}},
		{name: "多余的参数", args: []string{"sql", "-c", config, "extra"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
