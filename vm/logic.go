package vm

// Logic over truthiness. Operands do not need to be Bool typed and the ops
// always succeed.

// Not returns the boolean negation of v's truthiness.
func Not(v Value) Value {
	return BoolValue(!v.IsTruthy())
}

// And returns Bool(left && right) over truthiness.
func And(left, right Value) Value {
	return BoolValue(left.IsTruthy() && right.IsTruthy())
}

// Or returns Bool(left || right) over truthiness.
func Or(left, right Value) Value {
	return BoolValue(left.IsTruthy() || right.IsTruthy())
}
