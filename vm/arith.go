package vm

import "math"

// Arithmetic over Int and Float values. Mixed Int/Float operands promote to
// Float; non-numeric operands are a TypeMismatch. Division and modulo by
// zero raise a typed error, never a trap.

func numericPair(left, right Value) (lf, rf float64, li, ri int64, bothInt bool, err error) {
	lk, rk := left.TypeOf(), right.TypeOf()
	if lk == TypeInt && rk == TypeInt {
		return 0, 0, left.Int(), right.Int(), true, nil
	}
	if (lk == TypeInt || lk == TypeFloat) && (rk == TypeInt || rk == TypeFloat) {
		lf, _ = left.ToFloat()
		rf, _ = right.ToFloat()
		return lf, rf, 0, 0, false, nil
	}
	if lk != TypeInt && lk != TypeFloat {
		return 0, 0, 0, 0, false, &TypeMismatchError{Expected: "int or float", Found: lk.String()}
	}
	return 0, 0, 0, 0, false, &TypeMismatchError{Expected: "int or float", Found: rk.String()}
}

// Add adds two numeric values.
func Add(left, right Value) (Value, error) {
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return Empty, err
	}
	if bothInt {
		return IntValue(li + ri), nil
	}
	return FloatValue(lf + rf), nil
}

// Sub subtracts two numeric values.
func Sub(left, right Value) (Value, error) {
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return Empty, err
	}
	if bothInt {
		return IntValue(li - ri), nil
	}
	return FloatValue(lf - rf), nil
}

// Mul multiplies two numeric values.
func Mul(left, right Value) (Value, error) {
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return Empty, err
	}
	if bothInt {
		return IntValue(li * ri), nil
	}
	return FloatValue(lf * rf), nil
}

// Div divides two numeric values. Integer division truncates toward zero.
func Div(left, right Value) (Value, error) {
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return Empty, err
	}
	if bothInt {
		if ri == 0 {
			return Empty, &DivisionByZeroError{Op: "divide"}
		}
		return IntValue(li / ri), nil
	}
	if rf == 0 {
		return Empty, &DivisionByZeroError{Op: "divide"}
	}
	return FloatValue(lf / rf), nil
}

// Mod computes the remainder of two numeric values.
func Mod(left, right Value) (Value, error) {
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return Empty, err
	}
	if bothInt {
		if ri == 0 {
			return Empty, &DivisionByZeroError{Op: "modulo"}
		}
		return IntValue(li % ri), nil
	}
	if rf == 0 {
		return Empty, &DivisionByZeroError{Op: "modulo"}
	}
	return FloatValue(math.Mod(lf, rf)), nil
}

// Negate negates a numeric value.
func Negate(v Value) (Value, error) {
	switch v.TypeOf() {
	case TypeInt:
		return IntValue(-v.Int()), nil
	case TypeFloat:
		return FloatValue(-v.Float()), nil
	default:
		return Empty, &TypeMismatchError{Expected: "int or float", Found: v.TypeOf().String()}
	}
}

// Eq reports value equality. Defined for all value pairs; cross-type pairs
// compare unequal except numeric Int/Float promotion.
func Eq(left, right Value) bool {
	return left.Equal(right)
}

// Neq reports value inequality.
func Neq(left, right Value) bool {
	return !left.Equal(right)
}

// orderable compares two values, returning -1, 0 or 1. Numeric pairs compare
// numerically; String and URL pairs compare lexicographically. Anything else
// is non-orderable.
func orderable(left, right Value) (int, error) {
	lk, rk := left.TypeOf(), right.TypeOf()
	if (lk == TypeString || lk == TypeURL) && (rk == TypeString || rk == TypeURL) {
		ls, rs := left.Str(), right.Str()
		switch {
		case ls < rs:
			return -1, nil
		case ls > rs:
			return 1, nil
		default:
			return 0, nil
		}
	}
	lf, rf, li, ri, bothInt, err := numericPair(left, right)
	if err != nil {
		return 0, err
	}
	if bothInt {
		switch {
		case li < ri:
			return -1, nil
		case li > ri:
			return 1, nil
		default:
			return 0, nil
		}
	}
	switch {
	case lf < rf:
		return -1, nil
	case lf > rf:
		return 1, nil
	default:
		return 0, nil
	}
}

// Lt reports left < right for orderable pairs.
func Lt(left, right Value) (bool, error) {
	c, err := orderable(left, right)
	return c < 0, err
}

// Gt reports left > right for orderable pairs.
func Gt(left, right Value) (bool, error) {
	c, err := orderable(left, right)
	return c > 0, err
}

// Lte reports left <= right for orderable pairs.
func Lte(left, right Value) (bool, error) {
	c, err := orderable(left, right)
	return c <= 0, err
}

// Gte reports left >= right for orderable pairs.
func Gte(left, right Value) (bool, error) {
	c, err := orderable(left, right)
	return c >= 0, err
}
