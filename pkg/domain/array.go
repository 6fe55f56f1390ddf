package domain

// Array is the minimal contract for row-addressable values inside a
// DataFlow. Len reports the first-axis length; Take returns a fresh Array
// holding the rows selected by indices, in order. Implementations must not
// alias mutable state between the receiver and the returned value beyond the
// row data itself.
type Array interface {
	Len() int
	Take(indices []int) Array
}

// FloatMatrix is a row-major matrix of float64 samples.
type FloatMatrix [][]float64

func (m FloatMatrix) Len() int { return len(m) }

func (m FloatMatrix) Take(indices []int) Array {
	out := make(FloatMatrix, len(indices))
	for i, idx := range indices {
		out[i] = m[idx]
	}
	return out
}

// FloatVector is a one-dimensional array of float64 values.
type FloatVector []float64

func (v FloatVector) Len() int { return len(v) }

func (v FloatVector) Take(indices []int) Array {
	out := make(FloatVector, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}

// IntVector is a one-dimensional array of integer values, typically class
// labels or row indices.
type IntVector []int

func (v IntVector) Len() int { return len(v) }

func (v IntVector) Take(indices []int) Array {
	out := make(IntVector, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}

// StringVector is a one-dimensional array of string values.
type StringVector []string

func (v StringVector) Len() int { return len(v) }

func (v StringVector) Take(indices []int) Array {
	out := make(StringVector, len(indices))
	for i, idx := range indices {
		out[i] = v[idx]
	}
	return out
}
