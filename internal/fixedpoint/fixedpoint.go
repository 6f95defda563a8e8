// Package fixedpoint implements 17.16 signed fixed-point arithmetic.
//
// A Value is a 32-bit signed integer whose low 16 bits hold the
// fractional part. Multiplication and division of two fixed-point
// values go through 64-bit intermediates, so they are exact over the
// representable range. There is no overflow protection; callers keep
// magnitudes small (scheduler statistics stay well inside the range).
package fixedpoint

// shift is the number of fractional bits.
const shift = 16

// Value is a 17.16 fixed-point number.
type Value int32

// Fix converts an integer to fixed point.
func Fix(n int) Value { return Value(n) << shift }

// Int extracts the integer part, truncating the fraction
// (arithmetic shift, so negative values round toward minus infinity).
func (a Value) Int() int { return int(a >> shift) }

// Round converts to the nearest integer, with exact halves rounding
// away from zero for both signs. The negative branch divides rather
// than shifts: division truncates toward zero, which is what makes
// the half offset land on the nearest integer.
func (a Value) Round() int {
	if a >= 0 {
		return int((a + 1<<(shift-1)) >> shift)
	}
	return int((a - 1<<(shift-1)) / (1 << shift))
}

// Add returns a + b.
func (a Value) Add(b Value) Value { return a + b }

// Sub returns a - b.
func (a Value) Sub(b Value) Value { return a - b }

// AddInt returns a + n.
func (a Value) AddInt(n int) Value { return a + Fix(n) }

// SubInt returns a - n.
func (a Value) SubInt(n int) Value { return a - Fix(n) }

// Mul returns the fixed-point product a * b.
func (a Value) Mul(b Value) Value {
	return Value(int64(a) * int64(b) >> shift)
}

// MulInt returns a * n.
func (a Value) MulInt(n int) Value { return a * Value(n) }

// Div returns the fixed-point quotient a / b.
func (a Value) Div(b Value) Value {
	return Value((int64(a) << shift) / int64(b))
}

// DivInt returns a / n, truncating.
func (a Value) DivInt(n int) Value { return a / Value(n) }

// Quot returns the quotient of two integers as a fixed-point value.
func Quot(m, n int) Value {
	return Value((int64(m) << shift) / int64(n))
}
