package editor

import (
	"context"
	"fmt"
	"io"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Uploader stores a file somewhere publicly fetchable and returns its URL.
// progress may be called any number of times with values in 0..100 before
// Upload returns.
type Uploader interface {
	Upload(ctx context.Context, name string, size int64, body io.Reader, progress func(percent int)) (string, error)
}

// UploadID identifies one upload started from a replace flow.
type UploadID string

type UploadState int

const (
	UploadPending UploadState = iota
	UploadDone
	UploadFailed
	// UploadDiscarded marks an upload that finished after its flow or
	// session had closed. Its URL was never applied.
	UploadDiscarded
)

func (s UploadState) String() string {
	switch s {
	case UploadPending:
		return "pending"
	case UploadDone:
		return "done"
	case UploadFailed:
		return "failed"
	case UploadDiscarded:
		return "discarded"
	}
	return fmt.Sprintf("UploadState(%d)", int(s))
}

// UploadStatus is a snapshot of one upload.
type UploadStatus struct {
	ID       UploadID
	Name     string
	Target   NodeID
	Progress int
	State    UploadState
	URL      string
	Err      error
}

type upload struct {
	UploadStatus
	seq     int
	flowGen uint64
	epoch   uint64
	done    chan struct{} // closed once the upload has finished
}

// UploadReplacement starts uploading a file for the open replace flow. The
// upload runs in the background; when it succeeds the flow's URL field is
// updated, but nothing is applied until ApplyReplace. body is read from
// another goroutine and must not be used by the caller afterwards.
func (s *Session) UploadReplacement(ctx context.Context, name string, size int64, body io.Reader) (UploadID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.flow == nil {
		return "", ErrNoReplaceFlow
	}
	if s.uploader == nil {
		return "", ErrNoUploader
	}

	id := UploadID(uuid.NewString())
	s.uploadSeq++
	u := &upload{
		UploadStatus: UploadStatus{ID: id, Name: name, Target: s.flow.target, State: UploadPending},
		seq:          s.uploadSeq,
		flowGen:      s.flow.gen,
		epoch:        s.epoch,
		done:         make(chan struct{}),
	}
	s.uploads[id] = u
	s.flow.pending++

	s.log.Debug("upload started", zap.String("upload", string(id)), zap.String("name", name), zap.Int64("size", size))

	go func() {
		url, err := s.uploader.Upload(ctx, name, size, body, func(percent int) {
			s.progress(id, percent)
		})
		s.finishUpload(id, url, err)
	}()
	return id, nil
}

func (s *Session) progress(id UploadID, percent int) {
	percent = max(0, min(100, percent))

	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.uploads[id]; ok && u.State == UploadPending {
		u.Progress = percent
	}
}

// finishUpload applies an upload result to the flow that started it, if that
// flow is still the open one in the same session.
func (s *Session) finishUpload(id UploadID, url string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.uploads[id]
	if !ok {
		return
	}
	defer close(u.done)
	live := s.flow != nil && s.flow.gen == u.flowGen && s.epoch == u.epoch
	if !live {
		u.State = UploadDiscarded
		u.URL, u.Err = url, err
		s.log.Debug("discarding stale upload", zap.String("upload", string(id)))
		return
	}

	s.flow.pending--
	if err != nil {
		u.State, u.Err = UploadFailed, err
		s.flow.err = fmt.Errorf("uploading %s: %w", u.Name, err)
		s.log.Warn("upload failed", zap.String("upload", string(id)), zap.Error(err))
		return
	}
	u.State, u.URL, u.Progress = UploadDone, url, 100
	s.flow.url = url
	s.flow.err = nil
	s.log.Debug("upload finished", zap.String("upload", string(id)), zap.String("url", url))
}

// Uploads returns a snapshot of every upload started by this session, oldest
// first.
func (s *Session) Uploads() []UploadStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := make([]*upload, 0, len(s.uploads))
	for _, u := range s.uploads {
		list = append(list, u)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].seq < list[j].seq })

	out := make([]UploadStatus, len(list))
	for i, u := range list {
		out[i] = u.UploadStatus
	}
	return out
}

// WaitUploads blocks until every started upload has finished or ctx is
// done. Uploads started while waiting are waited for too.
func (s *Session) WaitUploads(ctx context.Context) error {
	for {
		s.mu.Lock()
		var pending []chan struct{}
		for _, u := range s.uploads {
			select {
			case <-u.done:
			default:
				pending = append(pending, u.done)
			}
		}
		s.mu.Unlock()
		if len(pending) == 0 {
			return nil
		}
		for _, done := range pending {
			select {
			case <-done:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}
