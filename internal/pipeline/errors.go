package pipeline

// StageError records which pipeline stage failed. The stage name goes to the
// logs; the job record keeps only the underlying message.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return e.Stage + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	return e.Err
}
