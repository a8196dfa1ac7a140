package ocr

import (
	"context"
	"sync"
)

// Fake is a scripted Extractor for tests. By default it returns the PDF
// bytes as text with full confidence and a single page.
type Fake struct {
	mu sync.Mutex

	// NextErr, when set, is returned by the next Extract call and cleared.
	NextErr error

	// Result overrides the default echo behavior when non-nil.
	Result *Result

	// Calls counts Extract invocations.
	Calls int
}

// NewFake creates a fake extractor.
func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) Extract(_ context.Context, pdf []byte) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls++
	if f.NextErr != nil {
		err := f.NextErr
		f.NextErr = nil
		return nil, err
	}
	if f.Result != nil {
		r := *f.Result
		return &r, nil
	}
	return &Result{
		Text:       "transcribed: " + string(pdf),
		Confidence: 0.99,
		PageCount:  1,
	}, nil
}

// CallCount returns the number of Extract invocations so far.
func (f *Fake) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
