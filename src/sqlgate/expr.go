package sqlgate

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

// ErrBindMismatch is returned when the number of ? binds in an expression
// does not match the number of supplied arguments.
var ErrBindMismatch = errors.New("sqlgate: bind count does not match argument count")

// ErrEmptyInList is returned when an In expression is built with no values;
// "IN ()" is not valid SQL, and failing at dispatch beats a server error.
var ErrEmptyInList = errors.New("sqlgate: IN list must not be empty")

// renderFallback is emitted when log-text reconstruction fails. Rendering is
// presentation only and must never surface an error.
const renderFallback = "/* query text unavailable */"

// placeholderToken stands in for a parameter that has no literal rendering.
const placeholderToken = "/*?*/"

// Expr is a composable query expression: SQL text with ? binds plus the bound
// arguments. An argument that is itself an *Expr is spliced into the text, so
// larger statements can be assembled from fragments:
//
//	filter := sqlgate.SQL("status = ?", status)
//	q := sqlgate.SQL("SELECT id FROM notes WHERE ?", filter)
//
// A literal question mark is written as ??.
type Expr struct {
	text string
	args []any
	err  error
}

// SQL builds an expression from text with ? binds and their arguments.
func SQL(text string, args ...any) *Expr {
	return &Expr{text: text, args: args}
}

// Raw builds an expression from text taken verbatim, with no binds.
func Raw(text string) *Expr {
	return &Expr{text: text}
}

// Ident builds a quoted identifier fragment (schema-qualified when given
// multiple parts), using pgx's identifier sanitizer.
func Ident(parts ...string) *Expr {
	return Raw(pgx.Identifier(parts).Sanitize())
}

// Join concatenates expressions with sep between them.
func Join(sep string, exprs ...*Expr) *Expr {
	args := make([]any, len(exprs))
	for i, e := range exprs {
		args[i] = e
	}
	placeholders := make([]string, len(exprs))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return &Expr{text: strings.Join(placeholders, sep), args: args}
}

// In builds a parenthesized bind list for IN clauses. An empty list is a
// construction error, surfaced when the enclosing expression is dispatched.
func In(args ...any) *Expr {
	if len(args) == 0 {
		return &Expr{err: ErrEmptyInList}
	}
	placeholders := make([]string, len(args))
	for i := range placeholders {
		placeholders[i] = "?"
	}
	return &Expr{text: "(" + strings.Join(placeholders, ", ") + ")", args: args}
}

// flatten resolves the expression tree into $n-placeholder text and a flat
// argument slice, ready for pgx.
func (e *Expr) flatten() (string, []any, error) {
	var sb strings.Builder
	var args []any
	if err := e.flattenInto(&sb, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func (e *Expr) flattenInto(sb *strings.Builder, args *[]any) error {
	if e.err != nil {
		return e.err
	}
	next := 0
	for i := 0; i < len(e.text); i++ {
		c := e.text[i]
		if c != '?' {
			sb.WriteByte(c)
			continue
		}
		if i+1 < len(e.text) && e.text[i+1] == '?' {
			sb.WriteByte('?')
			i++
			continue
		}
		if next >= len(e.args) {
			return ErrBindMismatch
		}
		arg := e.args[next]
		next++
		if sub, ok := arg.(*Expr); ok {
			if err := sub.flattenInto(sb, args); err != nil {
				return err
			}
			continue
		}
		*args = append(*args, arg)
		sb.WriteString("$" + strconv.Itoa(len(*args)))
	}
	if next != len(e.args) {
		return ErrBindMismatch
	}
	return nil
}

// Render reconstructs a best-effort human-readable form of the expression for
// log display, substituting binds with literal-ish values. It never fails:
// anything that cannot be rendered degrades to a placeholder, and a panic
// degrades to a fixed fallback string.
func (e *Expr) Render() (out string) {
	defer func() {
		if recover() != nil {
			out = renderFallback
		}
	}()
	var sb strings.Builder
	e.renderInto(&sb)
	return sb.String()
}

func (e *Expr) renderInto(sb *strings.Builder) {
	if e.err != nil {
		sb.WriteString(placeholderToken)
		return
	}
	next := 0
	for i := 0; i < len(e.text); i++ {
		c := e.text[i]
		if c != '?' {
			sb.WriteByte(c)
			continue
		}
		if i+1 < len(e.text) && e.text[i+1] == '?' {
			sb.WriteByte('?')
			i++
			continue
		}
		if next >= len(e.args) {
			sb.WriteString(placeholderToken)
			continue
		}
		renderValue(sb, e.args[next])
		next++
	}
}

func renderValue(sb *strings.Builder, v any) {
	switch x := v.(type) {
	case nil:
		sb.WriteString("NULL")
	case *Expr:
		x.renderInto(sb)
	case string:
		sb.WriteString(quoteString(x))
	case bool:
		if x {
			sb.WriteString("TRUE")
		} else {
			sb.WriteString("FALSE")
		}
	case time.Time:
		sb.WriteString(quoteString(x.UTC().Format(time.RFC3339Nano)))
	case []byte:
		sb.WriteString(`'\x` + hex.EncodeToString(x) + `'`)
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		fmt.Fprintf(sb, "%v", x)
	default:
		sb.WriteString(placeholderToken)
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}
