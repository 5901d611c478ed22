package notify

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func newTestGraph(tokenURL, graphURL string) *GraphChannel {
	g := NewGraphChannel("tenant", "client-id", "secret", "noreply@example.com", "inbox@example.com", testLogger())
	g.TokenURL = tokenURL
	g.GraphURL = graphURL
	return g
}

func writeMP3(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "registrazione.mp3")
	if err := os.WriteFile(path, []byte("encoded-audio"), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestGraphSendInlineAttachments(t *testing.T) {
	var gotGrant string
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		gotGrant = r.FormValue("grant_type")
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok-123"})
	}))
	defer tokenSrv.Close()

	var gotAuth string
	var gotMail graphMail
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotMail); err != nil {
			t.Errorf("decode sendMail payload: %v", err)
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	defer graphSrv.Close()

	g := newTestGraph(tokenSrv.URL, graphSrv.URL)
	msg := Message{
		Subject:        "Trascrizione vocale",
		Body:           "ciao mondo",
		AudioPath:      writeMP3(t),
		AudioName:      "registrazione_1.mp3",
		TranscriptName: "trascrizione_1.txt",
	}
	if err := g.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotGrant != "client_credentials" {
		t.Errorf("expected client_credentials grant, got %q", gotGrant)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("expected bearer from token exchange, got %q", gotAuth)
	}
	if n := len(gotMail.Message.Attachments); n != 2 {
		t.Fatalf("expected 2 attachments, got %d", n)
	}
	audio, err := base64.StdEncoding.DecodeString(gotMail.Message.Attachments[0].ContentBytes)
	if err != nil || string(audio) != "encoded-audio" {
		t.Errorf("audio attachment not base64 of file contents: %v %q", err, audio)
	}
	txt, err := base64.StdEncoding.DecodeString(gotMail.Message.Attachments[1].ContentBytes)
	if err != nil || string(txt) != "ciao mondo" {
		t.Errorf("transcript attachment not base64 of body: %v %q", err, txt)
	}
	if gotMail.Message.ToRecipients[0].EmailAddress.Address != "inbox@example.com" {
		t.Errorf("wrong recipient: %+v", gotMail.Message.ToRecipients)
	}
}

func TestGraphSendTokenFailure(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"invalid_client"}`))
	}))
	defer tokenSrv.Close()

	g := newTestGraph(tokenSrv.URL, "http://unused.invalid")
	err := g.Send(context.Background(), Message{AudioPath: writeMP3(t)})
	if err == nil {
		t.Fatal("expected error when token exchange fails")
	}
}

func TestGraphSendMailRejected(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
	}))
	defer tokenSrv.Close()
	graphSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":"ErrorAccessDenied"}}`))
	}))
	defer graphSrv.Close()

	g := newTestGraph(tokenSrv.URL, graphSrv.URL)
	err := g.Send(context.Background(), Message{AudioPath: writeMP3(t)})
	if err == nil {
		t.Fatal("expected error on non-success sendMail status")
	}
}
