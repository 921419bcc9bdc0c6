package gateway

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/ThreeDotsLabs/go-event-driven/common/log"
)

// FileSink writes accepted badge PDFs to a directory and, when Open is set,
// hands them to the desktop viewer. A viewer that cannot be started leaves
// the saved file as the download.
type FileSink struct {
	dir    string
	open   bool
	opener func(path string) error
}

func NewFileSink(dir string, open bool) (*FileSink, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("could not create badge output dir %s: %w", dir, err)
	}

	return &FileSink{
		dir:    dir,
		open:   open,
		opener: openWithDesktop,
	}, nil
}

func (s *FileSink) SavePDF(ctx context.Context, pdfBase64, filename string) error {
	data, err := base64.StdEncoding.DecodeString(pdfBase64)
	if err != nil {
		return fmt.Errorf("could not decode badge pdf: %w", err)
	}

	path := filepath.Join(s.dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("could not write badge pdf %s: %w", path, err)
	}

	logger := log.FromContext(ctx).WithField("path", path)
	if !s.open {
		logger.Info("Badge saved")
		return nil
	}

	if err := s.opener(path); err != nil {
		logger.WithError(err).Warn("Could not open badge viewer, keeping the saved file")
		return nil
	}

	logger.Info("Badge opened")
	return nil
}

// openWithDesktop starts the viewer detached from any request context.
func openWithDesktop(path string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", path)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", path)
	default:
		cmd = exec.Command("xdg-open", path)
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	go func() {
		_ = cmd.Wait()
	}()

	return nil
}
