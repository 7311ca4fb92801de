package translator

// Progress reports how far a translation run has come.
// Percentage runs from 0 to 1 and never decreases within a run.
type Progress struct {
	Percentage float64
	Message    string
}

type ProgressFunc func(Progress)

// progressEmitter clamps reported percentages into [0,1] and keeps
// them non-decreasing, so consumers can render them directly.
type progressEmitter struct {
	fn   ProgressFunc
	last float64
}

func (e *progressEmitter) emit(percentage float64, message string) {
	if percentage < e.last {
		percentage = e.last
	}
	if percentage > 1 {
		percentage = 1
	}
	e.last = percentage

	if e.fn != nil {
		e.fn(Progress{Percentage: percentage, Message: message})
	}
}
