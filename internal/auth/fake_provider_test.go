package auth

import (
	"context"
	"sync"
)

// fakeProvider is a hand-driven Provider.
type fakeProvider struct {
	mu            sync.Mutex
	observers     map[int]func(*Session)
	nextID        int
	subscribes    int
	unsubscribes  int
	silent        bool
	initial       *Session
	signInUser    *ProviderUser
	signInErr     error
	signOutErr    error
	signOutCalls  int
	openedURLs    []string
	authURLToOpen string
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{observers: make(map[int]func(*Session)), authURLToOpen: "https://idp.example/auth"}
}

func (f *fakeProvider) Subscribe(fn func(*Session)) func() {
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.observers[id] = fn
	f.subscribes++
	initial := f.initial
	silent := f.silent
	f.mu.Unlock()

	if !silent {
		fn(initial)
	}
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.observers[id]; ok {
			delete(f.observers, id)
			f.unsubscribes++
		}
	}
}

func (f *fakeProvider) emit(s *Session) {
	f.mu.Lock()
	fns := make([]func(*Session), 0, len(f.observers))
	for i := 0; i < f.nextID; i++ {
		if fn, ok := f.observers[i]; ok {
			fns = append(fns, fn)
		}
	}
	f.mu.Unlock()
	for _, fn := range fns {
		fn(s)
	}
}

func (f *fakeProvider) SignInInteractive(ctx context.Context, open func(string) error) (*ProviderUser, error) {
	if err := open(f.authURLToOpen); err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.openedURLs = append(f.openedURLs, f.authURLToOpen)
	f.mu.Unlock()
	if f.signInErr != nil {
		return nil, f.signInErr
	}
	return f.signInUser, nil
}

func (f *fakeProvider) SignOut(ctx context.Context) error {
	f.mu.Lock()
	f.signOutCalls++
	f.mu.Unlock()
	f.emit(nil)
	return f.signOutErr
}
