package generic

// Void is a zero-size placeholder type, for generic containers that need a value but don't care about it.
type Void struct{}

func NewVoid() Void {
	return Void{}
}
