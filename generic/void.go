package generic

// Void is the value type for a Result that only carries an error.
type Void = struct{}

func NewVoid() Void {
	return Void{}
}
