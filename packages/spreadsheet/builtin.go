package spreadsheet

import (
	"fmt"
	"iter"
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

type functionKind int

const (
	functionKindAggregate functionKind = iota
	functionKindText
)

// functionSpec describes how a built-in is called. maxArgs < 0 means no
// upper bound.
type functionSpec struct {
	kind    functionKind
	minArgs int
	maxArgs int
}

// functionCatalog is the fixed set of functions a formula may call. the
// parser rejects any other name.
var functionCatalog = map[string]functionSpec{
	"SUM":     {kind: functionKindAggregate, minArgs: 1, maxArgs: -1},
	"AVERAGE": {kind: functionKindAggregate, minArgs: 1, maxArgs: -1},
	"MAX":     {kind: functionKindAggregate, minArgs: 1, maxArgs: -1},
	"MIN":     {kind: functionKindAggregate, minArgs: 1, maxArgs: -1},
	"COUNT":   {kind: functionKindAggregate, minArgs: 1, maxArgs: -1},
	"TRIM":    {kind: functionKindText, minArgs: 1, maxArgs: 1},
	"UPPER":   {kind: functionKindText, minArgs: 1, maxArgs: 1},
	"LOWER":   {kind: functionKindText, minArgs: 1, maxArgs: 1},
}

func (s functionSpec) checkArity(name string, n int) error {
	if n < s.minArgs {
		return parseError(fmt.Sprintf("%s requires at least %d argument(s)", name, s.minArgs))
	}
	if s.maxArgs >= 0 && n > s.maxArgs {
		return parseError(fmt.Sprintf("%s requires exactly %d argument(s)", name, s.maxArgs))
	}
	return nil
}

// IsBuiltInFunction reports whether name (any case) is a known function
func IsBuiltInFunction(name string) bool {
	_, ok := functionCatalog[strings.ToUpper(name)]
	return ok
}

// Range is an evaluated range argument. members are read lazily, in
// row-major order.
type Range struct {
	Address RangeAddress
	lookup  func(CellAddress) Value
}

// IterateValues yields the value of every member of the range
func (r Range) IterateValues() iter.Seq[Value] {
	return func(yield func(Value) bool) {
		for addr := range r.Address.Cells() {
			if !yield(r.lookup(addr)) {
				return
			}
		}
	}
}

// Argument is one evaluated call argument: either a single value or a
// range
type Argument struct {
	Value Value
	Range *Range
}

// Values yields the argument's values, one for a scalar and every member
// for a range
func (a Argument) Values() iter.Seq[Value] {
	if a.Range != nil {
		return a.Range.IterateValues()
	}
	return func(yield func(Value) bool) {
		yield(a.Value)
	}
}

// BuiltInFunctions contains all spreadsheet built-in functions
type BuiltInFunctions struct {
	upper cases.Caser
	lower cases.Caser
}

// NewDefaultBuiltInFunctions creates a BuiltInFunctions using
// language-neutral Unicode case mapping
func NewDefaultBuiltInFunctions() *BuiltInFunctions {
	return &BuiltInFunctions{
		upper: cases.Upper(language.Und),
		lower: cases.Lower(language.Und),
	}
}

// Call invokes a built-in function by name with the given arguments.
// failures are returned as error values.
func (bf *BuiltInFunctions) Call(name string, args ...Argument) Value {
	switch strings.ToUpper(name) {
	case "SUM":
		return bf.SUM(args...)
	case "AVERAGE":
		return bf.AVERAGE(args...)
	case "MAX":
		return bf.MAX(args...)
	case "MIN":
		return bf.MIN(args...)
	case "COUNT":
		return bf.COUNT(args...)
	case "TRIM":
		return bf.TRIM(args...)
	case "UPPER":
		return bf.UPPER(args...)
	case "LOWER":
		return bf.LOWER(args...)
	default:
		return NewErrorValue(ErrorCodeParse, fmt.Sprintf("unknown function: %s", name))
	}
}

// aggregateNumber is the numeric policy shared by the aggregates: numbers
// and numeric text count, empty and other text are skipped
func aggregateNumber(v Value) (float64, bool) {
	switch v.Type {
	case CellValueTypeNumber:
		return v.Number, true
	case CellValueTypeText:
		return parseNumeric(v.Text)
	default:
		return 0, false
	}
}

// collectNumbers flattens the arguments left to right. the first error
// value met is returned and wins over any skipped member.
func collectNumbers(args []Argument) ([]float64, *Value) {
	var nums []float64
	for _, arg := range args {
		for value := range arg.Values() {
			if value.IsError() {
				return nil, &value
			}
			if num, ok := aggregateNumber(value); ok {
				nums = append(nums, num)
			}
		}
	}
	return nums, nil
}

func (bf *BuiltInFunctions) SUM(args ...Argument) Value {
	nums, errValue := collectNumbers(args)
	if errValue != nil {
		return *errValue
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	// round to 15 significant digits to drop binary noise such as
	// 0.1+0.2 = 0.30000000000000004
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(sum, 'g', 15, 64), 64)
	if err != nil {
		return numberResult(sum)
	}
	return numberResult(rounded)
}

func (bf *BuiltInFunctions) AVERAGE(args ...Argument) Value {
	nums, errValue := collectNumbers(args)
	if errValue != nil {
		return *errValue
	}
	if len(nums) == 0 {
		return NumberValue(0)
	}
	sum := 0.0
	for _, num := range nums {
		sum += num
	}
	return numberResult(sum / float64(len(nums)))
}

func (bf *BuiltInFunctions) MAX(args ...Argument) Value {
	nums, errValue := collectNumbers(args)
	if errValue != nil {
		return *errValue
	}
	if len(nums) == 0 {
		return NumberValue(0)
	}
	best := math.Inf(-1)
	for _, num := range nums {
		best = max(best, num)
	}
	return NumberValue(best)
}

func (bf *BuiltInFunctions) MIN(args ...Argument) Value {
	nums, errValue := collectNumbers(args)
	if errValue != nil {
		return *errValue
	}
	if len(nums) == 0 {
		return NumberValue(0)
	}
	best := math.Inf(1)
	for _, num := range nums {
		best = min(best, num)
	}
	return NumberValue(best)
}

// COUNT counts the numeric members. an error member still wins, like in
// the other aggregates.
func (bf *BuiltInFunctions) COUNT(args ...Argument) Value {
	nums, errValue := collectNumbers(args)
	if errValue != nil {
		return *errValue
	}
	return NumberValue(float64(len(nums)))
}

func (bf *BuiltInFunctions) TRIM(args ...Argument) Value {
	return applyText("TRIM", args, strings.TrimSpace)
}

func (bf *BuiltInFunctions) UPPER(args ...Argument) Value {
	return applyText("UPPER", args, bf.upper.String)
}

func (bf *BuiltInFunctions) LOWER(args ...Argument) Value {
	return applyText("LOWER", args, bf.lower.String)
}

// applyText runs a one-argument text transform. the argument is coerced
// to text: empty becomes "" and numbers use their canonical rendering.
func applyText(name string, args []Argument, transform func(string) string) Value {
	if len(args) != 1 || args[0].Range != nil {
		return NewErrorValue(ErrorCodeValue, fmt.Sprintf("%s requires exactly 1 argument", name))
	}
	value := args[0].Value
	if value.IsError() {
		return value
	}
	return TextValue(transform(value.AsText()))
}

// numberResult maps overflow to an error so a cell never holds NaN or an
// infinity
func numberResult(n float64) Value {
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return NewErrorValue(ErrorCodeValue, "numeric overflow")
	}
	return NumberValue(n)
}
