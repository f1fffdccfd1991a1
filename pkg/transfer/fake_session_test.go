package transfer_test

import (
	"path/filepath"
	"sync"
	"sync/atomic"

	"github.com/TrevorEdris/transfer-utils/pkg/engine"
	"github.com/TrevorEdris/transfer-utils/pkg/errors"
)

// fakeSession records every call and can hold PutFile open until aborted.
type fakeSession struct {
	mu        sync.Mutex
	calls     []string
	dirs      map[string]bool
	existsErr map[string]error
	mkdirErr  map[string]error
	inflight  bool

	outcome  *engine.TransferOutcome
	putErr   error
	blockPut bool

	putStarted chan struct{}
	aborted    chan struct{}
	abortOnce  sync.Once
	aborts     atomic.Int32
}

func newFakeSession(existing ...string) *fakeSession {
	s := &fakeSession{
		dirs:       make(map[string]bool),
		existsErr:  make(map[string]error),
		mkdirErr:   make(map[string]error),
		putStarted: make(chan struct{}),
		aborted:    make(chan struct{}),
	}
	for _, d := range existing {
		s.dirs[d] = true
	}
	return s
}

func (s *fakeSession) record(call string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
}

func (s *fakeSession) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *fakeSession) FileExists(path string) (bool, error) {
	s.record("exists " + path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.existsErr[path]; err != nil {
		return false, err
	}
	return s.dirs[path], nil
}

func (s *fakeSession) CreateDirectory(path string) error {
	s.record("mkdir " + path)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.mkdirErr[path]; err != nil {
		return err
	}
	s.dirs[path] = true
	return nil
}

func (s *fakeSession) PutFile(localPath, remotePath string, _ *engine.TransferOptions) (*engine.TransferOutcome, error) {
	s.record("put " + filepath.Base(localPath) + " " + remotePath)

	s.mu.Lock()
	s.inflight = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.inflight = false
		s.mu.Unlock()
	}()

	if s.blockPut {
		close(s.putStarted)
		<-s.aborted
		return nil, errors.NewLocalError("put", remotePath, errors.ErrAborted)
	}
	if s.putErr != nil {
		return nil, s.putErr
	}
	if s.outcome != nil {
		return s.outcome, nil
	}
	return &engine.TransferOutcome{
		Transfers: []engine.Transfer{{LocalPath: localPath, RemotePath: remotePath, Bytes: 42}},
	}, nil
}

func (s *fakeSession) Abort() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.inflight {
		return errors.NewLocalError("abort", "", errors.ErrNothingToAbort)
	}
	s.aborts.Add(1)
	s.abortOnce.Do(func() { close(s.aborted) })
	return nil
}

func (s *fakeSession) Close() error {
	return nil
}
