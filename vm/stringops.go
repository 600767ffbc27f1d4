package vm

// String operations. Operands must be String or URL values; anything else is
// a TypeMismatch.

func stringOperand(v Value) (string, error) {
	switch v.TypeOf() {
	case TypeString, TypeURL:
		return v.Str(), nil
	default:
		return "", &TypeMismatchError{Expected: TypeString.String(), Found: v.TypeOf().String()}
	}
}

// Concat concatenates two string values into a fresh String.
func Concat(left, right Value) (Value, error) {
	ls, err := stringOperand(left)
	if err != nil {
		return Empty, err
	}
	rs, err := stringOperand(right)
	if err != nil {
		return Empty, err
	}
	return StringValue(ls + rs), nil
}

// StrLen returns the byte length of a string value as an Int.
func StrLen(v Value) (Value, error) {
	s, err := stringOperand(v)
	if err != nil {
		return Empty, err
	}
	return IntValue(int64(len(s))), nil
}
