package core

import (
	"sync"

	"github.com/urbaine/upwatch/pkg/uploadclient"
)

// Form is the submission payload. The thread count is read again on every
// progress tick, so it may be changed while an upload is running.
type Form struct {
	FilePath  string
	FileField string
	Fields    map[string]string

	mu         sync.RWMutex
	numThreads string
}

func NewForm(filePath, numThreads string) *Form {
	return &Form{
		FilePath:   filePath,
		numThreads: numThreads,
	}
}

func (f *Form) NumThreads() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.numThreads
}

func (f *Form) SetNumThreads(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.numThreads = v
}

func (f *Form) request(onSent func(sent, total int64)) uploadclient.UploadRequest {
	return uploadclient.UploadRequest{
		FilePath:   f.FilePath,
		FileField:  f.FileField,
		NumThreads: f.NumThreads(),
		Fields:     f.Fields,
		OnSent:     onSent,
	}
}
