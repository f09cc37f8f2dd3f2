package guard

// Guard screens user text before it reaches a generator.
type Guard interface {
	Evaluate(input string) Evaluation
	EnsureSafe(input string) error
	IsMalicious(input string) bool
}

var _ Guard = (*InjectionGuard)(nil)
