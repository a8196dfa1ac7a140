package destination

import (
	"context"
	"fmt"
	"sync"
)

// Fake is a scripted in-memory adapter for tests. It records every call and
// stores synced items keyed by external id.
type Fake struct {
	mu sync.Mutex

	// DestName is returned by Name. Defaults to "fake".
	DestName string

	// Caps overrides the default capability set when non-nil.
	Caps []Capability

	// NextErr, when set, fails the next mutating call and is cleared.
	NextErr error

	// Gone, when set, makes the next UpdateItem report the object missing.
	Gone bool

	// Items holds synced content by external id.
	Items map[string]*Item

	// Containers holds created containers by external id.
	Containers map[string]*Item

	// SyncCalls, UpdateCalls, DeleteCalls, ContainerCalls count invocations.
	SyncCalls      int
	UpdateCalls    int
	DeleteCalls    int
	ContainerCalls int

	nextID int
}

// NewFake creates a fake adapter.
func NewFake() *Fake {
	return &Fake{
		Items:      make(map[string]*Item),
		Containers: make(map[string]*Item),
	}
}

func (f *Fake) Name() string {
	if f.DestName != "" {
		return f.DestName
	}
	return "fake"
}

func (f *Fake) Capabilities() []Capability {
	if f.Caps != nil {
		return f.Caps
	}
	return []Capability{CapCreate, CapUpdate, CapDelete, CapDedupeCheck, CapValidate, CapContainers}
}

func (f *Fake) takeErr() error {
	err := f.NextErr
	f.NextErr = nil
	return err
}

func (f *Fake) SyncItem(_ context.Context, item *Item) (*SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.SyncCalls++
	if err := f.takeErr(); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}

	f.nextID++
	id := fmt.Sprintf("ext-%d", f.nextID)
	copied := *item
	f.Items[id] = &copied
	return &SyncResult{Status: StatusSuccess, ExternalID: id}, nil
}

func (f *Fake) UpdateItem(_ context.Context, externalID string, item *Item) (*SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.UpdateCalls++
	if err := f.takeErr(); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	if f.Gone {
		f.Gone = false
		err := &Error{Retryable: false, Err: fmt.Errorf("%w: %s", ErrGone, externalID)}
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}
	if _, ok := f.Items[externalID]; !ok {
		err := &Error{Retryable: false, Err: fmt.Errorf("%w: %s", ErrGone, externalID)}
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}

	copied := *item
	f.Items[externalID] = &copied
	return &SyncResult{Status: StatusSuccess, ExternalID: externalID}, nil
}

func (f *Fake) DeleteItem(_ context.Context, externalID string) (*SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.DeleteCalls++
	if err := f.takeErr(); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}

	delete(f.Items, externalID)
	return &SyncResult{Status: StatusSuccess, ExternalID: externalID}, nil
}

func (f *Fake) CreateContainer(_ context.Context, item *Item) (*SyncResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ContainerCalls++
	if err := f.takeErr(); err != nil {
		return &SyncResult{Status: StatusFailed, Err: err}, err
	}

	f.nextID++
	id := fmt.Sprintf("container-%d", f.nextID)
	copied := *item
	f.Containers[id] = &copied
	return &SyncResult{Status: StatusSuccess, ExternalID: id}, nil
}

func (f *Fake) CheckDuplicate(_ context.Context, contentHash string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for id, item := range f.Items {
		if item.ContentHash == contentHash {
			return id, nil
		}
	}
	return "", nil
}

func (f *Fake) ValidateConnection(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeErr()
}
