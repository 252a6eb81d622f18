package postgres

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/uptrace/bun"
)

func TestParseJSONQuery(t *testing.T) {
	tests := []struct {
		name         string
		jsonQuery    string
		expectedCond string
		tablePrefix  string
	}{
		{
			name:         "single jsonpath",
			jsonQuery:    `{"where": {"jsonpath": "$.topics[*] ? (@ == \"educacion\")"}}`,
			expectedCond: `WHERE (jsonb_path_exists(c.metadata, '$.topics[*] ? (@ == "educacion")'))`,
			tablePrefix:  "c",
		},
		{
			name:         "or group without prefix",
			jsonQuery:    `{"where": {"or": [{"jsonpath": "$.topics[*] ? (@ == \"educacion\")"},{"jsonpath": "$.topics[*] ? (@ == \"salud\")"}]}}`,
			expectedCond: `WHERE ((jsonb_path_exists(metadata, '$.topics[*] ? (@ == "educacion")')) OR (jsonb_path_exists(metadata, '$.topics[*] ? (@ == "salud")')))`,
			tablePrefix:  "",
		},
		{
			name:         "nested and with or group",
			jsonQuery:    `{"where": {"and": [{"jsonpath": "$.topics[*] ? (@ == \"educacion\")"},{"jsonpath": "$.section ? (@ == \"propuestas\")"},{"or": [{"jsonpath": "$.year ? (@ == \"2022\")"},{"jsonpath": "$.year ? (@ == \"2026\")"}]}]}}`,
			expectedCond: `WHERE ((jsonb_path_exists(c.metadata, '$.topics[*] ? (@ == "educacion")')) AND (jsonb_path_exists(c.metadata, '$.section ? (@ == "propuestas")')) AND ((jsonb_path_exists(c.metadata, '$.year ? (@ == "2022")')) OR (jsonb_path_exists(c.metadata, '$.year ? (@ == "2026")'))))`,
			tablePrefix:  "c",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			qb := testDB.NewSelect().
				Model(&[]chunkSearchRow{}).
				QueryBuilder()

			var metadata map[string]interface{}
			err := json.Unmarshal([]byte(tt.jsonQuery), &metadata)
			assert.NoError(t, err)

			query, err := json.Marshal(metadata["where"])
			assert.NoError(t, err)

			var jsonQuery JSONQuery
			err = json.Unmarshal(query, &jsonQuery)
			assert.NoError(t, err)

			qb = parseJSONQuery(qb, &jsonQuery, false, tt.tablePrefix)

			selectQuery := qb.Unwrap().(*bun.SelectQuery)

			// Extract the WHERE conditions from the SQL query
			sql := selectQuery.String()
			whereIndex := strings.Index(sql, "WHERE")
			assert.True(t, whereIndex > 0, "WHERE clause should be present")
			cond := sql[whereIndex:]

			// We use assert.Equal to test if the conditions are built correctly.
			assert.Equal(t, tt.expectedCond, cond)
		})
	}
}
