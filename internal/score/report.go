package score

// Report accumulates scores over an evaluation run.
type Report struct {
	Examples          int
	Errors            Counts
	Wrong             int
	Executed          bool
	ExecutionMatches  int
	ExecutionFailures int
}

func (r *Report) AddStructural(examples int, counts Counts, wrong int) {
	r.Examples += examples
	r.Errors = r.Errors.Add(counts)
	r.Wrong += wrong
}

func (r *Report) AddExecution(execution Execution) {
	r.Executed = true
	r.ExecutionMatches += execution.Matches
	r.ExecutionFailures += execution.Failures
}

// FieldAccuracy is the share of examples without an error in each field.
func (r Report) FieldAccuracy() map[string]float64 {
	out := map[string]float64{}
	r.Errors.Each(func(field string, n int) {
		out[field] = r.ratio(r.Examples - n)
	})
	return out
}

// LogicalAccuracy is the share of examples with every field right.
func (r Report) LogicalAccuracy() float64 {
	return r.ratio(r.Examples - r.Wrong)
}

func (r Report) ExecutionAccuracy() float64 {
	return r.ratio(r.ExecutionMatches)
}

func (r Report) ratio(n int) float64 {
	if r.Examples == 0 {
		return 0
	}
	return float64(n) / float64(r.Examples)
}
