package analysis

// Observer receives pipeline stage progress. Stage is invoked with the stage
// name and the number of processed items roughly every 100 items; callbacks
// must be cheap and safe for concurrent use.
type Observer interface {
	Stage(name string, done, total int)
}

type nopObserver struct{}

func (nopObserver) Stage(string, int, int) {}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(name string, done, total int)

func (f ObserverFunc) Stage(name string, done, total int) { f(name, done, total) }
