package gateway

import (
	"context"
	"sync"
)

type SavedPDF struct {
	FileName  string
	PDFBase64 string
}

type PDFSinkMock struct {
	lock sync.Mutex

	Saved []SavedPDF
	Err   error
}

func (s *PDFSinkMock) SavePDF(ctx context.Context, pdfBase64, filename string) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.Err != nil {
		return s.Err
	}

	s.Saved = append(s.Saved, SavedPDF{FileName: filename, PDFBase64: pdfBase64})

	return nil
}

func (s *PDFSinkMock) SavedFiles() []SavedPDF {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]SavedPDF(nil), s.Saved...)
}
