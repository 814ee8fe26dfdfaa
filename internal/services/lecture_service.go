package services

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/markdave123-py/Lectern/internal/core"
	"github.com/markdave123-py/Lectern/internal/core/ingestion_engine"
	objectclient "github.com/markdave123-py/Lectern/internal/core/object-client"
	"github.com/markdave123-py/Lectern/internal/core/progress"
	"github.com/markdave123-py/Lectern/internal/logger"
	"github.com/markdave123-py/Lectern/internal/models"
)

var (
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".mkv": true, ".webm": true, ".avi": true, ".m4v": true}
	deckExts  = map[string]bool{".pptx": true, ".ppt": true, ".pdf": true, ".odp": true}
)

// FileUpload is one file of a multipart upload.
type FileUpload struct {
	Name        string
	ContentType string
	Body        io.Reader
}

// UploadRequest is a lecture video with its optional slide deck.
type UploadRequest struct {
	UploaderID  string
	Title       string
	Description string
	Language    string
	Video       FileUpload
	Slides      *FileUpload
}

// LectureService stores uploads and hands them to the ingestion queue.
type LectureService struct {
	store     core.LectureStore
	objects   core.ObjectClient // optional S3 mirror
	ingestor  ingestion_engine.Ingestor
	tracker   progress.Tracker
	uploadDir string
	log       *logger.Logger
}

func NewLectureService(store core.LectureStore, objects core.ObjectClient, ing ingestion_engine.Ingestor, tracker progress.Tracker, uploadDir string, log *logger.Logger) *LectureService {
	return &LectureService{
		store:     store,
		objects:   objects,
		ingestor:  ing,
		tracker:   tracker,
		uploadDir: uploadDir,
		log:       log.With("service", "LectureService"),
	}
}

// Upload saves the files under uploadDir/<id>/, mirrors them to object
// storage when configured and enqueues the lecture. It returns the lecture id
// right away; processing continues in the background.
func (s *LectureService) Upload(ctx context.Context, req UploadRequest) (string, error) {
	if strings.TrimSpace(req.Title) == "" {
		return "", fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if req.Video.Body == nil || !videoExts[ext(req.Video.Name)] {
		return "", fmt.Errorf("%w: video %q", ErrUnsupportedFile, req.Video.Name)
	}
	if req.Slides != nil && !deckExts[ext(req.Slides.Name)] {
		return "", fmt.Errorf("%w: slides %q", ErrUnsupportedFile, req.Slides.Name)
	}

	id := uuid.NewString()
	dir := filepath.Join(s.uploadDir, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create upload dir: %w", err)
	}

	in := ingestion_engine.LectureInput{
		ID:          id,
		Title:       strings.TrimSpace(req.Title),
		Description: req.Description,
		UploaderID:  req.UploaderID,
		Language:    req.Language,
	}

	var err error
	if in.VideoPath, err = saveFile(dir, req.Video); err != nil {
		_ = os.RemoveAll(dir)
		return "", err
	}
	s.mirror(ctx, id, in.VideoPath, req.Video.ContentType)

	if req.Slides != nil {
		if in.SlidesPath, err = saveFile(dir, *req.Slides); err != nil {
			_ = os.RemoveAll(dir)
			return "", err
		}
		s.mirror(ctx, id, in.SlidesPath, req.Slides.ContentType)
	}

	if _, err := s.ingestor.Enqueue(ctx, in); err != nil {
		_ = os.RemoveAll(dir)
		return "", fmt.Errorf("enqueue lecture: %w", err)
	}
	s.log.Info("lecture queued", "lecture_id", id, "uploader_id", req.UploaderID, "slides", in.SlidesPath != "")
	return id, nil
}

// Status reports live progress while a run is tracked and falls back to the
// stored lecture status otherwise.
func (s *LectureService) Status(ctx context.Context, id string) (*models.ProcessingState, error) {
	st, err := s.tracker.Get(ctx, id)
	if err != nil {
		s.log.Warn("progress lookup failed", "lecture_id", id, "error", err)
	}
	if st != nil {
		return st, nil
	}

	lec, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	state := &models.ProcessingState{LectureID: id, Status: lec.ProcessingStatus}
	if lec.ProcessingStatus == models.StatusCompleted {
		state.Progress = 100
	}
	return state, nil
}

func (s *LectureService) Get(ctx context.Context, id string) (*models.Lecture, error) {
	lec, err := s.store.GetLectureByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if lec == nil {
		return nil, core.NewError(core.CodeNotFound, "get lecture", fmt.Errorf("lecture %s", id))
	}
	return lec, nil
}

func (s *LectureService) ListByUploader(ctx context.Context, uploaderID string) ([]models.Lecture, error) {
	return s.store.ListLecturesByUploader(ctx, uploaderID)
}

func (s *LectureService) Transcript(ctx context.Context, id string) ([]models.TranscriptChunk, error) {
	if _, err := s.Get(ctx, id); err != nil {
		return nil, err
	}
	return s.store.GetChunksByLecture(ctx, id)
}

// Reprocess runs the requested sub-steps synchronously.
func (s *LectureService) Reprocess(ctx context.Context, id string, opts ingestion_engine.ReprocessOptions) (*ingestion_engine.ReprocessResult, error) {
	return s.ingestor.Reprocess(ctx, id, opts)
}

// Delete removes the lecture row (chunks, summaries and quizzes cascade) and
// then, best effort, its local files, mirrored objects and progress entry.
func (s *LectureService) Delete(ctx context.Context, id string) error {
	lec, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLecture(ctx, id); err != nil {
		return fmt.Errorf("delete lecture: %w", err)
	}

	if err := s.tracker.Delete(ctx, id); err != nil {
		s.log.Warn("clearing progress failed", "lecture_id", id, "error", err)
	}
	if err := os.RemoveAll(filepath.Join(s.uploadDir, id)); err != nil {
		s.log.Warn("removing upload dir failed", "lecture_id", id, "error", err)
	}
	if lec.AudioPath != "" {
		if err := os.Remove(lec.AudioPath); err != nil && !os.IsNotExist(err) {
			s.log.Warn("removing audio failed", "lecture_id", id, "error", err)
		}
	}
	if s.objects != nil {
		for _, p := range []string{lec.VideoPath, lec.SlidesPath} {
			if p == "" {
				continue
			}
			if err := s.objects.DeleteFile(ctx, s.objects.Bucket(), objectclient.LectureKey(id, p)); err != nil {
				s.log.Warn("deleting mirrored object failed", "lecture_id", id, "file", filepath.Base(p), "error", err)
			}
		}
	}
	s.log.Info("lecture deleted", "lecture_id", id)
	return nil
}

// mirror copies a saved upload to object storage. Failures are logged only;
// the local copy is what the pipeline reads.
func (s *LectureService) mirror(ctx context.Context, id, path, contentType string) {
	if s.objects == nil {
		return
	}
	f, err := os.Open(path)
	if err != nil {
		s.log.Warn("mirror upload failed", "lecture_id", id, "error", err)
		return
	}
	defer f.Close()

	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := objectclient.LectureKey(id, path)
	if _, err := s.objects.UploadFile(ctx, s.objects.Bucket(), key, f, contentType); err != nil {
		s.log.Warn("mirror upload failed", "lecture_id", id, "key", key, "error", err)
		return
	}
	s.log.Debug("upload mirrored", "lecture_id", id, "key", key)
}

func saveFile(dir string, up FileUpload) (string, error) {
	name := strings.ReplaceAll(filepath.Base(strings.TrimSpace(up.Name)), " ", "_")
	dst := filepath.Join(dir, name)

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", name, err)
	}
	if _, err := io.Copy(f, up.Body); err != nil {
		f.Close()
		return "", fmt.Errorf("write %s: %w", name, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", name, err)
	}
	return dst, nil
}

func ext(name string) string {
	return strings.ToLower(filepath.Ext(name))
}
