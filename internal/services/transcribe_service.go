package services

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/memovox/memovox/internal/notify"
	"github.com/memovox/memovox/internal/providers/stt"
	"github.com/memovox/memovox/internal/utils"
)

// Fixed phrases returned to the caller in place of a transcript.
const (
	PhraseNoFile           = "no file received"
	PhraseConversionFailed = "audio conversion failed"
	PhraseEmptyUpstream    = "empty reply from transcription service"
	PhraseNoTranscription  = "no transcription produced"
	PhraseRequestFailed    = "transcription request failed"
)

// Upload describes the raw file saved by the intake step. The request
// owns it exclusively; the service removes it before returning or in
// the detached finish task.
type Upload struct {
	Path string
	Name string
	MIME string
	Size int64
}

// Transcoder converts an upload into the fixed-profile encoded file
// and returns its path.
type Transcoder interface {
	Encode(ctx context.Context, inputPath string) (string, error)
}

// Notifier delivers the finished transcript; failures stay internal.
type Notifier interface {
	Dispatch(ctx context.Context, msg notify.Message)
}

type TranscribeService interface {
	// Process runs transcode -> transcribe and returns the transcript
	// phrase for the response. Notification and temp-file cleanup
	// continue in a detached task after it returns.
	Process(ctx context.Context, up Upload) (string, error)
	// Drain blocks until all detached finish tasks have completed.
	Drain()
}

type transcribeService struct {
	transcoder  Transcoder
	transcriber stt.Transcriber
	notifier    Notifier
	log         *logrus.Logger

	subjectTZ *time.Location
	wg        sync.WaitGroup
}

func NewTranscribeService(tc Transcoder, tr stt.Transcriber, n Notifier, log *logrus.Logger) TranscribeService {
	loc, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		loc = time.Local
	}
	return &transcribeService{
		transcoder:  tc,
		transcriber: tr,
		notifier:    n,
		log:         log,
		subjectTZ:   loc,
	}
}

func (s *transcribeService) Process(ctx context.Context, up Upload) (string, error) {
	const op = "TranscribeService.Process"

	log := s.log.WithFields(logrus.Fields{
		"file": up.Name,
		"mime": up.MIME,
		"size": up.Size,
	})
	log.Info("processing upload")

	encodedPath, err := s.transcoder.Encode(ctx, up.Path)
	if err != nil {
		s.cleanup(up.Path, "")
		return "", utils.E(utils.CodeInternal, op, PhraseConversionFailed, err)
	}

	outcome, err := s.transcriber.Transcribe(ctx, encodedPath)
	if err != nil {
		s.cleanup(up.Path, encodedPath)
		return "", utils.E(utils.CodeInternal, op, PhraseRequestFailed, err)
	}

	if outcome.Kind == stt.KindEmpty {
		s.cleanup(up.Path, encodedPath)
		return "", utils.E(utils.CodeBadGateway, op, PhraseEmptyUpstream, nil)
	}

	transcript := PhraseNoTranscription
	if outcome.Kind == stt.KindParsed && outcome.Text != "" {
		transcript = outcome.Text
	}

	s.finishDetached(up.Path, encodedPath, transcript)
	return transcript, nil
}

// finishDetached runs notification and cleanup outside the request
// path so mail latency and mail failures never reach the caller. The
// request context is not used: it dies when the response is written.
func (s *transcribeService) finishDetached(uploadPath, encodedPath, transcript string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				s.log.WithField("panic", r).Error("notification task panicked")
			}
		}()
		defer s.cleanup(uploadPath, encodedPath)

		if s.notifier == nil {
			return
		}

		now := time.Now()
		msg := notify.Message{
			Subject:        "Trascrizione vocale – " + now.In(s.subjectTZ).Format("02/01/2006 15:04:05"),
			Body:           transcript,
			AudioPath:      encodedPath,
			AudioName:      fmt.Sprintf("registrazione_%d.mp3", now.UnixMilli()),
			TranscriptName: fmt.Sprintf("trascrizione_%d.txt", now.UnixMilli()),
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		s.notifier.Dispatch(ctx, msg)
	}()
}

func (s *transcribeService) Drain() { s.wg.Wait() }

// cleanup removes whatever temp files exist. Removal failure is a
// warning, never a request failure.
func (s *transcribeService) cleanup(paths ...string) {
	for _, p := range paths {
		if p == "" {
			continue
		}
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", p).Warn("failed to remove temp file")
			continue
		}
		s.log.WithField("path", p).Debug("temp file removed")
	}
}
