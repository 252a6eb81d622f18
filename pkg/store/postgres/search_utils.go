package postgres

import (
	"strings"

	"github.com/uptrace/bun"
)

// JSONQuery is a recursive metadata filter. JSONPath holds a Postgres
// jsonpath expression; And and Or combine subfilters.
type JSONQuery struct {
	JSONPath string       `json:"jsonpath"`
	And      []*JSONQuery `json:"and,omitempty"`
	Or       []*JSONQuery `json:"or,omitempty"`
}

// parseJSONQuery recursively parses a JSONQuery and returns a bun.QueryBuilder.
// tablePrefix, when non-empty, qualifies the metadata column.
func parseJSONQuery(
	qb bun.QueryBuilder,
	jq *JSONQuery,
	isOr bool,
	tablePrefix string,
) bun.QueryBuilder {
	metadataColumn := "metadata"
	if tablePrefix != "" {
		metadataColumn = tablePrefix + ".metadata"
	}

	if jq.JSONPath != "" {
		path := strings.ReplaceAll(jq.JSONPath, "'", "\"")
		if isOr {
			qb = qb.WhereOr(
				"jsonb_path_exists("+metadataColumn+", ?)",
				path,
			)
		} else {
			qb = qb.Where(
				"jsonb_path_exists("+metadataColumn+", ?)",
				path,
			)
		}
	}

	if len(jq.And) > 0 {
		qb = qb.WhereGroup(" AND ", func(qq bun.QueryBuilder) bun.QueryBuilder {
			for _, subQuery := range jq.And {
				qq = parseJSONQuery(qq, subQuery, false, tablePrefix)
			}
			return qq
		})
	}

	if len(jq.Or) > 0 {
		qb = qb.WhereGroup(" AND ", func(qq bun.QueryBuilder) bun.QueryBuilder {
			for _, subQuery := range jq.Or {
				qq = parseJSONQuery(qq, subQuery, true, tablePrefix)
			}
			return qq
		})
	}

	return qb
}
