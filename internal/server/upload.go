package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	internalerrors "github.com/olegiv/crashlens-ai-go/internal/errors"
	"github.com/olegiv/crashlens-ai-go/internal/httpapi"
	"github.com/olegiv/crashlens-ai-go/internal/session"
)

const (
	uploadField = "file"
	// multipartOverhead allows for headers and boundaries around the file part.
	multipartOverhead = 1 << 20
	// multipartMemory is how much of a form is buffered before spilling to disk.
	multipartMemory = 8 << 20
)

const storedTimeLayout = "20060102_150405"

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// secureFilename reduces name to a safe base name of ASCII letters, digits,
// dot, dash and underscore. It returns "" when nothing usable remains.
func secureFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

func newFileID() string {
	return uuid.NewString()
}

// storedFile describes a log written to the uploads directory.
type storedFile struct {
	displayName string
	path        string
	size        int64
}

// storeUpload writes src to the uploads directory as 20060102_150405_<name>.
// A same-second name collision gets a short random infix.
func (s *Server) storeUpload(filename string, src io.Reader) (*storedFile, error) {
	safe := secureFilename(filename)
	if safe == "" {
		return nil, internalerrors.BadRequest("Invalid file name")
	}

	stamp := s.now().Format(storedTimeLayout)
	target := filepath.Join(s.opts.UploadDir, stamp+"_"+safe)
	f, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if errors.Is(err, os.ErrExist) {
		target = filepath.Join(s.opts.UploadDir, fmt.Sprintf("%s_%s_%s", stamp, newFileID()[:8], safe))
		f, err = os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create upload file: %w", err)
	}

	n, copyErr := io.Copy(f, src)
	closeErr := f.Close()
	if copyErr != nil || closeErr != nil {
		_ = os.Remove(target)
		if copyErr != nil {
			var maxErr *http.MaxBytesError
			if errors.As(copyErr, &maxErr) {
				return nil, internalerrors.WithStatus(copyErr, http.StatusRequestEntityTooLarge,
					"File too large. Maximum size is %dMB", s.opts.MaxUploadMB)
			}
			return nil, fmt.Errorf("failed to write upload: %w", copyErr)
		}
		return nil, fmt.Errorf("failed to close upload: %w", closeErr)
	}

	return &storedFile{displayName: safe, path: target, size: n}, nil
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sid := sessionID(w, r)
	reader := s.uploads

	maxBytes := int64(s.opts.MaxUploadMB) * 1024 * 1024
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+multipartOverhead)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			s.fail(w, internalerrors.WithStatus(err, http.StatusRequestEntityTooLarge,
				"File too large. Maximum size is %dMB", s.opts.MaxUploadMB))
			return
		}
		s.fail(w, internalerrors.WithStatus(err, http.StatusBadRequest, "No file provided"))
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	part, header, err := r.FormFile(uploadField)
	if err != nil {
		s.fail(w, internalerrors.WithStatus(err, http.StatusBadRequest, "No file provided"))
		return
	}
	defer func() { _ = part.Close() }()

	if header.Filename == "" {
		s.fail(w, internalerrors.BadRequest("No file selected"))
		return
	}
	if err := reader.CheckName(header.Filename); err != nil {
		s.fail(w, readerError(err, header.Filename))
		return
	}
	if header.Size > maxBytes {
		s.fail(w, internalerrors.NewStatus(http.StatusRequestEntityTooLarge,
			"File too large. Maximum size is %dMB", s.opts.MaxUploadMB))
		return
	}

	stored, err := s.storeUpload(header.Filename, part)
	if err != nil {
		s.fail(w, err)
		return
	}

	file := session.UploadedFile{
		ID:        newFileID(),
		Filename:  stored.displayName,
		Path:      stored.path,
		Size:      stored.size,
		Timestamp: s.now(),
	}
	s.sessions.AddFile(sid, file)

	s.log.Info().
		Str("file_id", file.ID).
		Str("filename", file.Filename).
		Int64("size", file.Size).
		Msg("Log uploaded")

	httpapi.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"status": "success",
		"file":   file,
	})
}
