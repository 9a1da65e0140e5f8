package extract

import (
	"regexp"
	"strings"

	"github.com/callscope/callscope/internal/extract/extraction"
)

// SQL statement patterns. Group 1 captures the table name; SELECT also
// captures the column list in group 1 with the table in group 2.
var (
	selectPattern = regexp.MustCompile("(?i)\\bSELECT\\s+(.+?)\\s+FROM\\s+[`\"']?(\\w+)")
	insertPattern = regexp.MustCompile("(?i)\\bINSERT\\s+(?:OR\\s+\\w+\\s+)?INTO\\s+[`\"']?(\\w+)")
	updatePattern = regexp.MustCompile("(?i)\\bUPDATE\\s+[`\"']?(\\w+)[`\"']?\\s+SET\\b")
	deletePattern = regexp.MustCompile("(?i)\\bDELETE\\s+FROM\\s+[`\"']?(\\w+)")

	// ORM call shapes.
	clientModelPattern = regexp.MustCompile(`\b(prisma|db|client|database)\.(\w+)\.(\w+)\s*\(`)
	djangoPattern      = regexp.MustCompile(`\b([A-Z]\w*)\.objects\.(\w+)\s*\(`)
	modelMethodPattern = regexp.MustCompile(`\b([A-Z]\w*)\.(\w+)\s*\(`)
	builderPattern     = regexp.MustCompile(`\.(from|table|collection|into|insert_into)\s*\(\s*['"](\w+)['"]`)

	columnListPattern = regexp.MustCompile(`^[\w\s,]+$`)
)

var ormReadMethods = map[string]bool{
	"find": true, "findOne": true, "findAll": true, "findMany": true,
	"findUnique": true, "findFirst": true, "findById": true,
	"where": true, "get": true, "filter": true, "all": true,
	"first": true, "last": true, "count": true, "aggregate": true,
	"find_by": true, "find_each": true, "pluck": true, "exists": true,
}

var ormWriteMethods = map[string]bool{
	"create": true, "createMany": true, "update": true, "updateMany": true,
	"upsert": true, "save": true, "insert": true, "insert_all": true,
	"update_all": true, "bulk_create": true, "add": true, "push": true,
}

var ormDeleteMethods = map[string]bool{
	"delete": true, "deleteMany": true, "destroy": true,
	"destroy_all": true, "remove": true, "truncate": true,
}

// detectDataAccess scans raw source text for database access: SQL string
// literals and recognizable ORM call shapes. SQL carries high confidence,
// ORM shapes less since the table name is inferred from the model name.
func detectDataAccess(source []byte) []extraction.DataAccess {
	var facts []extraction.DataAccess

	for i, line := range strings.Split(string(source), "\n") {
		lineNo := i + 1

		if fact, ok := detectSQL(line, lineNo); ok {
			facts = append(facts, fact)
			continue
		}
		if fact, ok := detectORM(line, lineNo); ok {
			facts = append(facts, fact)
		}
	}

	return facts
}

func detectSQL(line string, lineNo int) (extraction.DataAccess, bool) {
	if m := selectPattern.FindStringSubmatch(line); m != nil {
		return extraction.DataAccess{
			Table:      strings.ToLower(m[2]),
			Operation:  extraction.OpRead,
			Fields:     parseColumnList(m[1]),
			Line:       lineNo,
			Confidence: 0.9,
		}, true
	}
	if m := insertPattern.FindStringSubmatch(line); m != nil {
		return extraction.DataAccess{
			Table:      strings.ToLower(m[1]),
			Operation:  extraction.OpWrite,
			Line:       lineNo,
			Confidence: 0.9,
		}, true
	}
	if m := updatePattern.FindStringSubmatch(line); m != nil {
		return extraction.DataAccess{
			Table:      strings.ToLower(m[1]),
			Operation:  extraction.OpWrite,
			Line:       lineNo,
			Confidence: 0.9,
		}, true
	}
	if m := deletePattern.FindStringSubmatch(line); m != nil {
		return extraction.DataAccess{
			Table:      strings.ToLower(m[1]),
			Operation:  extraction.OpDelete,
			Line:       lineNo,
			Confidence: 0.9,
		}, true
	}
	return extraction.DataAccess{}, false
}

func detectORM(line string, lineNo int) (extraction.DataAccess, bool) {
	if m := clientModelPattern.FindStringSubmatch(line); m != nil {
		if op, ok := ormOperation(m[3]); ok {
			framework := "orm"
			if m[1] == "prisma" {
				framework = "prisma"
			}
			return extraction.DataAccess{
				Table:      strings.ToLower(m[2]),
				Operation:  op,
				Line:       lineNo,
				Confidence: 0.7,
				Framework:  framework,
			}, true
		}
	}

	if m := djangoPattern.FindStringSubmatch(line); m != nil {
		if op, ok := ormOperation(m[2]); ok {
			return extraction.DataAccess{
				Table:      strings.ToLower(m[1]),
				Operation:  op,
				Line:       lineNo,
				Confidence: 0.7,
				Framework:  "django",
			}, true
		}
	}

	if m := builderPattern.FindStringSubmatch(line); m != nil {
		op := extraction.OpRead
		if m[1] == "into" || m[1] == "insert_into" {
			op = extraction.OpWrite
		}
		return extraction.DataAccess{
			Table:      strings.ToLower(m[2]),
			Operation:  op,
			Line:       lineNo,
			Confidence: 0.7,
			Framework:  "query-builder",
		}, true
	}

	if m := modelMethodPattern.FindStringSubmatch(line); m != nil {
		if op, ok := ormOperation(m[2]); ok {
			return extraction.DataAccess{
				Table:      strings.ToLower(m[1]),
				Operation:  op,
				Line:       lineNo,
				Confidence: 0.7,
				Framework:  "activerecord",
			}, true
		}
	}

	return extraction.DataAccess{}, false
}

func ormOperation(method string) (string, bool) {
	switch {
	case ormReadMethods[method]:
		return extraction.OpRead, true
	case ormWriteMethods[method]:
		return extraction.OpWrite, true
	case ormDeleteMethods[method]:
		return extraction.OpDelete, true
	}
	return "", false
}

// parseColumnList splits a simple "a, b, c" SELECT column list. Wildcards
// and expressions yield no field names.
func parseColumnList(clause string) []string {
	clause = strings.TrimSpace(clause)
	if clause == "*" || !columnListPattern.MatchString(clause) {
		return nil
	}

	var fields []string
	for _, col := range strings.Split(clause, ",") {
		col = strings.TrimSpace(col)
		if col != "" && col != "*" {
			fields = append(fields, col)
		}
	}
	return fields
}
