package spreadsheet

import (
	"math"
	"strconv"
	"strings"
)

// ErrorCode represents the error kinds a cell can hold as its value
type ErrorCode uint8

const (
	ErrorCodeParse    ErrorCode = 1 // #PARSE! - malformed formula syntax
	ErrorCodeRef      ErrorCode = 2 // #REF! - deleted or out-of-range address
	ErrorCodeValue    ErrorCode = 3 // #VALUE! - non-numeric operand where a number is required
	ErrorCodeDiv0     ErrorCode = 4 // #DIV/0! - division by zero
	ErrorCodeCircular ErrorCode = 5 // #CIRCULAR! - cell participates in a dependency cycle
)

// ErrorMapper maps error codes to the tag shown in place of a value
var ErrorMapper = map[ErrorCode]string{
	ErrorCodeParse:    "#PARSE!",
	ErrorCodeRef:      "#REF!",
	ErrorCodeValue:    "#VALUE!",
	ErrorCodeDiv0:     "#DIV/0!",
	ErrorCodeCircular: "#CIRCULAR!",
}

// SpreadsheetError preserves error code for display in cells
type SpreadsheetError struct {
	ErrorCode ErrorCode
	Message   string
}

func (e *SpreadsheetError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return ErrorMapper[e.ErrorCode]
}

// Tag returns the display tag of the error, e.g. "#REF!"
func (e *SpreadsheetError) Tag() string {
	return ErrorMapper[e.ErrorCode]
}

func NewSpreadsheetError(code ErrorCode, message string) *SpreadsheetError {
	if message == "" {
		message = ErrorMapper[code]
	}
	return &SpreadsheetError{
		ErrorCode: code,
		Message:   message,
	}
}

// CellType tags the variant held by a Value
type CellType uint8

const (
	CellValueTypeEmpty  CellType = 0
	CellValueTypeNumber CellType = 1
	CellValueTypeText   CellType = 2
	CellValueTypeError  CellType = 3
)

func (t CellType) String() string {
	switch t {
	case CellValueTypeEmpty:
		return "empty"
	case CellValueTypeNumber:
		return "number"
	case CellValueTypeText:
		return "text"
	case CellValueTypeError:
		return "error"
	default:
		return "unknown"
	}
}

// Value is the tagged variant every cell evaluates to. only the field
// matching Type is meaningful.
type Value struct {
	Type   CellType
	Number float64
	Text   string
	Err    *SpreadsheetError
}

// EmptyValue is the value of a cell that was never written or was cleared
var EmptyValue = Value{Type: CellValueTypeEmpty}

func NumberValue(n float64) Value {
	return Value{Type: CellValueTypeNumber, Number: n}
}

func TextValue(s string) Value {
	return Value{Type: CellValueTypeText, Text: s}
}

func ErrorValue(err *SpreadsheetError) Value {
	return Value{Type: CellValueTypeError, Err: err}
}

// NewErrorValue builds an error value from a code and an optional message
func NewErrorValue(code ErrorCode, message string) Value {
	return ErrorValue(NewSpreadsheetError(code, message))
}

func (v Value) IsEmpty() bool { return v.Type == CellValueTypeEmpty }
func (v Value) IsError() bool { return v.Type == CellValueTypeError }

// ErrorCode returns the code of an error value, or 0 for any other variant
func (v Value) ErrorCode() ErrorCode {
	if v.Type != CellValueTypeError || v.Err == nil {
		return 0
	}
	return v.Err.ErrorCode
}

// AsNumber coerces the value for arithmetic. empty is 0, numeric text is
// parsed, anything else is not a number.
func (v Value) AsNumber() (float64, bool) {
	switch v.Type {
	case CellValueTypeNumber:
		return v.Number, true
	case CellValueTypeEmpty:
		return 0, true
	case CellValueTypeText:
		return parseNumeric(v.Text)
	default:
		return 0, false
	}
}

// AsText coerces the value for text functions. empty is "" and numbers
// use their canonical rendering.
func (v Value) AsText() string {
	switch v.Type {
	case CellValueTypeNumber:
		return FormatNumber(v.Number)
	case CellValueTypeText:
		return v.Text
	case CellValueTypeError:
		return v.Err.Tag()
	default:
		return ""
	}
}

// String renders the value the way a grid would display it
func (v Value) String() string {
	return v.AsText()
}

// Equal compares two values by variant and payload. errors compare by code.
func (v Value) Equal(other Value) bool {
	if v.Type != other.Type {
		return false
	}
	switch v.Type {
	case CellValueTypeNumber:
		return v.Number == other.Number
	case CellValueTypeText:
		return v.Text == other.Text
	case CellValueTypeError:
		return v.ErrorCode() == other.ErrorCode()
	default:
		return true
	}
}

// FormatNumber renders a number without trailing zeros or exponent noise
func FormatNumber(n float64) string {
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

// parseNumeric reports whether s reads as a finite number
func parseNumeric(s string) (float64, bool) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return 0, false
	}
	num, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	// "NaN" and "Inf" parse, but they are text to a spreadsheet
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return 0, false
	}
	return num, true
}

// Cell is a materialized grid cell. dependency edges are not stored here,
// the DependencyGraph owns them keyed by address.
type Cell struct {
	Address    CellAddress
	RawInput   string  // literal text, or formula text beginning with "="
	AST        ASTNode // parsed formula, nil for literal cells
	ParseErr   *SpreadsheetError
	Value      Value
	Generation uint64 // recalculation pass that last wrote Value
}

// IsFormula reports whether the cell holds formula text
func (c *Cell) IsFormula() bool {
	return isFormulaText(c.RawInput)
}

// CellSnapshot is a read-only copy of a cell handed out by the grid
type CellSnapshot struct {
	Address    CellAddress
	RawInput   string
	Value      Value
	Generation uint64
}

func isFormulaText(s string) bool {
	return len(s) > 0 && s[0] == '='
}
