package rank

// Option describes one possible upgrade and whether it can run now.
type Option struct {
	TargetRank    Rank
	FromRank      Rank
	RequiredCount int
	CurrentCount  int
	CanUpgrade    bool
}

// Evaluate decides whether quantity copies held at current can be fused
// into the next rank. It returns false when current is Prism.
func (l *Ladder) Evaluate(current Rank, quantity int) (Option, bool) {
	target, ok := current.Next()
	if !ok {
		return Option{}, false
	}
	required := l.required[target]
	return Option{
		TargetRank:    target,
		FromRank:      current,
		RequiredCount: required,
		CurrentCount:  quantity,
		CanUpgrade:    quantity >= required,
	}, true
}

// EvaluateAll returns one option per non-terminal rank bucket, ordered by
// target rank. Buckets missing from counts are treated as empty.
func (l *Ladder) EvaluateAll(counts map[Rank]int) []Option {
	options := make([]Option, 0, len(Targets()))
	for _, from := range []Rank{Normal, Silver, Gold} {
		opt, _ := l.Evaluate(from, counts[from])
		options = append(options, opt)
	}
	return options
}
