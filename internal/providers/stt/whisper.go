package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

// WhisperClient talks to a whisper-style transcription endpoint:
// multipart POST with file/model/language fields and a bearer key.
type WhisperClient struct {
	Endpoint string
	APIKey   string
	Model    string
	Language string

	HTTPClient *http.Client
	Log        *logrus.Logger

	// MaxRetryElapsed bounds retries of transport-level failures
	// (connection refused/reset before any response arrives). A
	// received response is classified exactly once and never retried.
	MaxRetryElapsed time.Duration
}

func NewWhisperClient(endpoint, apiKey, model, language string, log *logrus.Logger) *WhisperClient {
	return &WhisperClient{
		Endpoint:        endpoint,
		APIKey:          apiKey,
		Model:           model,
		Language:        language,
		HTTPClient:      &http.Client{Timeout: 120 * time.Second},
		Log:             log,
		MaxRetryElapsed: 10 * time.Second,
	}
}

type whisperResponse struct {
	Text string `json:"text"`
}

func (c *WhisperClient) Transcribe(ctx context.Context, audioPath string) (Outcome, error) {
	payload, contentType, err := c.buildPayload(audioPath)
	if err != nil {
		return Outcome{}, err
	}

	log := c.Log.WithFields(logrus.Fields{
		"endpoint": c.Endpoint,
		"model":    c.Model,
		"file":     filepath.Base(audioPath),
	})
	log.Info("sending audio to transcription service")

	resp, err := c.post(ctx, payload, contentType)
	if err != nil {
		return Outcome{}, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{}, fmt.Errorf("read transcription response: %w", err)
	}

	log.WithFields(logrus.Fields{
		"status":     resp.StatusCode,
		"body_bytes": len(raw),
	}).Debug("transcription service replied")

	if len(raw) == 0 {
		log.Error("transcription service returned an empty body")
		return Outcome{Kind: KindEmpty}, nil
	}

	var wr whisperResponse
	if err := json.Unmarshal(raw, &wr); err != nil {
		log.WithError(err).Warn("transcription response is not valid JSON")
		return Outcome{Kind: KindMalformed}, nil
	}
	return Outcome{Kind: KindParsed, Text: wr.Text}, nil
}

// buildPayload assembles the whole multipart body in memory so the
// request can be rebuilt on a transport-level retry.
func (c *WhisperClient) buildPayload(audioPath string) ([]byte, string, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, "", fmt.Errorf("open encoded audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("model", c.Model); err != nil {
		return nil, "", err
	}
	if err := mw.WriteField("language", c.Language); err != nil {
		return nil, "", err
	}
	if err := mw.Close(); err != nil {
		return nil, "", err
	}
	return body.Bytes(), mw.FormDataContentType(), nil
}

func (c *WhisperClient) post(ctx context.Context, payload []byte, contentType string) (*http.Response, error) {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = c.MaxRetryElapsed

	var resp *http.Response
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
		req.Header.Set("Content-Type", contentType)

		r, err := c.HTTPClient.Do(req)
		if err != nil {
			c.Log.WithError(err).Warn("transcription request transport failure, retrying")
			return err
		}
		resp = r
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}
