package sqlgen

import (
	"strings"

	"recon-engine/internal/model"
)

// limitStyle selects how a row limit is rendered. This enum, together
// with the quoting pair, is the only place dialect differences live;
// clause rendering consults the dialectSpec and nothing else.
type limitStyle int

const (
	// limitTrailing appends LIMIT n after the WHERE clause.
	limitTrailing limitStyle = iota
	// limitRowNum adds a ROWNUM <= n condition to the WHERE clause.
	limitRowNum
	// limitTop inserts TOP n after SELECT [DISTINCT].
	limitTop
)

type dialectSpec struct {
	name       model.Dialect
	quoteOpen  string
	quoteClose string
	limit      limitStyle
}

func dialectFor(d model.Dialect) (dialectSpec, error) {
	switch d {
	case model.DialectMySQL, model.DialectMariaDB:
		return dialectSpec{name: d, quoteOpen: "`", quoteClose: "`", limit: limitTrailing}, nil
	case model.DialectPostgreSQL:
		return dialectSpec{name: d, quoteOpen: `"`, quoteClose: `"`, limit: limitTrailing}, nil
	case model.DialectOracle:
		return dialectSpec{name: d, quoteOpen: `"`, quoteClose: `"`, limit: limitRowNum}, nil
	case model.DialectSQLServer:
		return dialectSpec{name: d, quoteOpen: "[", quoteClose: "]", limit: limitTop}, nil
	default:
		return dialectSpec{}, &UnsupportedDialectError{Dialect: string(d)}
	}
}

// quote wraps a single identifier in the dialect's quoting characters.
func (d dialectSpec) quote(ident string) string {
	return d.quoteOpen + ident + d.quoteClose
}

// qualify quotes a possibly schema-qualified name part by part, so
// "billing.invoices" becomes `billing`.`invoices` under MySQL quoting.
func (d dialectSpec) qualify(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = d.quote(p)
	}
	return strings.Join(parts, ".")
}
