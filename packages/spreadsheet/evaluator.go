package spreadsheet

import "fmt"

// Evaluator computes the value of an AST against a value lookup. errors are
// values: evaluation never fails and never panics.
type Evaluator struct {
	functions *BuiltInFunctions
	bounds    RangeAddress
}

// NewEvaluator creates an evaluator for a grid of rows x cols cells.
// references outside that extent evaluate to #REF!.
func NewEvaluator(functions *BuiltInFunctions, rows, cols uint32) *Evaluator {
	return &Evaluator{
		functions: functions,
		bounds:    gridBounds(rows, cols),
	}
}

func gridBounds(rows, cols uint32) RangeAddress {
	if rows == 0 || cols == 0 {
		// an empty grid contains nothing; an inverted range never matches
		return RangeAddress{StartRow: 1, EndRow: 0, StartColumn: 1, EndColumn: 0}
	}
	return RangeAddress{EndRow: rows - 1, EndColumn: cols - 1}
}

func (e *Evaluator) contains(r RangeAddress) bool {
	return e.bounds.Contains(r.Start()) && e.bounds.Contains(r.End())
}

// Evaluate walks node and returns its value. lookup supplies the current
// value of any referenced cell.
func (e *Evaluator) Evaluate(node ASTNode, lookup func(CellAddress) Value) Value {
	switch n := node.(type) {
	case *NumberNode:
		return NumberValue(n.Value)

	case *CellRefNode:
		if !e.bounds.Contains(n.Address) {
			return NewErrorValue(ErrorCodeRef, fmt.Sprintf("reference outside the grid: %s", n.Address))
		}
		return lookup(n.Address)

	case *RangeNode:
		// only reachable through a hand-built tree; the parser keeps ranges
		// inside aggregate calls
		return NewErrorValue(ErrorCodeValue, fmt.Sprintf("range %s used as a value", n.Range))

	case *RefErrorNode:
		return NewErrorValue(ErrorCodeRef, "reference to a deleted cell")

	case *UnaryOpNode:
		val := e.Evaluate(n.Operand, lookup)
		if val.IsError() {
			return val
		}
		num, ok := val.AsNumber()
		if !ok {
			return NewErrorValue(ErrorCodeValue, "sign requires a numeric value")
		}
		if n.Op == UnaryOpMinus {
			num = -num
		}
		return NumberValue(num)

	case *BinaryOpNode:
		return e.evaluateBinary(n, lookup)

	case *FunctionCallNode:
		args := make([]Argument, len(n.Args))
		for i, argNode := range n.Args {
			args[i] = e.evaluateArgument(argNode, lookup)
		}
		return e.functions.Call(n.Name, args...)

	default:
		return NewErrorValue(ErrorCodeValue, fmt.Sprintf("unsupported node %T", node))
	}
}

func (e *Evaluator) evaluateArgument(node ASTNode, lookup func(CellAddress) Value) Argument {
	rn, ok := node.(*RangeNode)
	if !ok {
		return Argument{Value: e.Evaluate(node, lookup)}
	}
	if !e.contains(rn.Range) {
		return Argument{Value: NewErrorValue(ErrorCodeRef, fmt.Sprintf("range outside the grid: %s", rn.Range))}
	}
	return Argument{Range: &Range{Address: rn.Range, lookup: lookup}}
}

// evaluateBinary evaluates the left operand first. an error operand is
// returned as is, the left one winning.
func (e *Evaluator) evaluateBinary(n *BinaryOpNode, lookup func(CellAddress) Value) Value {
	left := e.Evaluate(n.Left, lookup)
	if left.IsError() {
		return left
	}
	right := e.Evaluate(n.Right, lookup)
	if right.IsError() {
		return right
	}

	leftNum, ok := left.AsNumber()
	if !ok {
		return NewErrorValue(ErrorCodeValue, fmt.Sprintf("%s requires numeric operands", n.Op))
	}
	rightNum, ok := right.AsNumber()
	if !ok {
		return NewErrorValue(ErrorCodeValue, fmt.Sprintf("%s requires numeric operands", n.Op))
	}

	switch n.Op {
	case BinOpAdd:
		return numberResult(leftNum + rightNum)
	case BinOpSubtract:
		return numberResult(leftNum - rightNum)
	case BinOpMultiply:
		return numberResult(leftNum * rightNum)
	case BinOpDivide:
		if rightNum == 0 {
			return NewErrorValue(ErrorCodeDiv0, "division by zero")
		}
		return numberResult(leftNum / rightNum)
	default:
		return NewErrorValue(ErrorCodeValue, "unknown binary operator")
	}
}
