package security

import (
	"errors"
	"regexp"
	"strings"
	"unicode"

	"vitess.io/vitess/go/vt/sqlparser"

	"recon-engine/internal/model"
)

var (
	ErrNotSelectQuery     = errors.New("only SELECT queries are allowed")
	ErrSQLSyntaxError     = errors.New("SQL syntax error")
	ErrDangerousKeyword   = errors.New("dangerous SQL keyword detected")
	ErrMultipleStatements = errors.New("multiple SQL statements are not allowed")
	ErrCommentInQuery     = errors.New("SQL comments are not allowed")
	ErrEmptyQuery         = errors.New("query cannot be empty")
	ErrQueryTooLong       = errors.New("query exceeds maximum length")
)

// Statements are generated internally, but every one of them still
// passes through this gate before reaching an endpoint. It enforces
// read-only SELECT semantics and rejects anything that could mutate
// state or smuggle a second statement.
type SQLValidator struct {
	maxQueryLength int
}

// NewSQLValidator creates a validator. Non-positive maxQueryLength
// falls back to 10000.
func NewSQLValidator(maxQueryLength int) *SQLValidator {
	if maxQueryLength <= 0 {
		maxQueryLength = 10000
	}
	return &SQLValidator{maxQueryLength: maxQueryLength}
}

// ValidateStatement checks that the statement is a single read-only
// SELECT. MySQL-family statements are verified against the parsed AST;
// other dialects use quoting vitess does not accept, so they get a
// lexical screen over the text with string literals removed.
func (sv *SQLValidator) ValidateStatement(sqlText string, dialect model.Dialect) error {
	if err := sv.basicValidation(sqlText); err != nil {
		return err
	}
	normalized := normalizeSQL(sqlText)

	switch dialect {
	case model.DialectMySQL, model.DialectMariaDB:
		stmt, err := parseMySQL(normalized)
		if err != nil {
			return ErrSQLSyntaxError
		}
		if !isSelectStatement(stmt) {
			return ErrNotSelectQuery
		}
	default:
		if err := lexicalSelectCheck(normalized); err != nil {
			return err
		}
	}

	return sv.checkDangerousKeywords(normalized)
}

// IsReadOnly reports whether a MySQL-family statement parses as a
// SELECT or UNION.
func (sv *SQLValidator) IsReadOnly(sqlText string) (bool, error) {
	stmt, err := parseMySQL(normalizeSQL(sqlText))
	if err != nil {
		return false, ErrSQLSyntaxError
	}
	return isSelectStatement(stmt), nil
}

func (sv *SQLValidator) basicValidation(sqlText string) error {
	if strings.TrimSpace(sqlText) == "" {
		return ErrEmptyQuery
	}
	if len(sqlText) > sv.maxQueryLength {
		return ErrQueryTooLong
	}
	stripped := stripStringLiterals(sqlText)
	if strings.Contains(stripped, "--") || strings.Contains(stripped, "/*") || strings.Contains(stripped, "#") {
		return ErrCommentInQuery
	}
	if strings.Contains(normalizeSQL(stripped), ";") {
		return ErrMultipleStatements
	}
	for _, r := range sqlText {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return ErrSQLSyntaxError
		}
	}
	return nil
}

func parseMySQL(sqlText string) (sqlparser.Statement, error) {
	parser := sqlparser.NewTestParser()
	return parser.Parse(sqlText)
}

func isSelectStatement(stmt sqlparser.Statement) bool {
	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union:
		return true
	default:
		return false
	}
}

func lexicalSelectCheck(sqlText string) error {
	fields := strings.Fields(sqlText)
	if len(fields) == 0 {
		return ErrEmptyQuery
	}
	if !strings.EqualFold(fields[0], "SELECT") {
		return ErrNotSelectQuery
	}
	return nil
}

var dangerousKeywords = []string{
	"DROP", "DELETE", "UPDATE", "INSERT", "CREATE", "ALTER",
	"TRUNCATE", "REPLACE", "MERGE", "GRANT", "REVOKE",
	"COMMIT", "ROLLBACK", "SAVEPOINT",
	"LOAD_FILE", "OUTFILE", "DUMPFILE",
	"EXEC", "EXECUTE", "CALL",
	"SLEEP", "BENCHMARK", "WAITFOR",
}

var keywordPatterns = compileKeywordPatterns()

func compileKeywordPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(dangerousKeywords))
	for _, kw := range dangerousKeywords {
		patterns = append(patterns, regexp.MustCompile(`\b`+kw+`\b`))
	}
	return patterns
}

// checkDangerousKeywords screens the statement with string literals
// removed, so a filter value like 'DROP SHIPMENT' does not trip it.
// Quoted identifiers are kept: a column actually named after a keyword
// is rejected rather than risk a false negative.
func (sv *SQLValidator) checkDangerousKeywords(sqlText string) error {
	upper := strings.ToUpper(stripStringLiterals(sqlText))
	for _, pattern := range keywordPatterns {
		if pattern.MatchString(upper) {
			return ErrDangerousKeyword
		}
	}
	return nil
}

// stripStringLiterals blanks out single-quoted literals, honoring ''
// escapes, so screens only see structural SQL.
func stripStringLiterals(sqlText string) string {
	var b strings.Builder
	b.Grow(len(sqlText))
	inString := false
	runes := []rune(sqlText)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\'' {
			if inString && i+1 < len(runes) && runes[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
			continue
		}
		if !inString {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func normalizeSQL(sqlText string) string {
	sqlText = strings.TrimSpace(sqlText)
	sqlText = strings.TrimSuffix(sqlText, ";")
	return strings.TrimSpace(sqlText)
}
