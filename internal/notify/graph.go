package notify

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// GraphChannel sends mail through the Microsoft Graph sendMail API
// using an app-only client-credentials token. Attachments travel
// inline as base64 per the Graph fileAttachment contract.
type GraphChannel struct {
	TokenURL  string
	GraphURL  string
	ClientID  string
	Secret    string
	Sender    string
	Recipient string

	HTTPClient *http.Client
	Log        *logrus.Logger
}

func NewGraphChannel(tenantID, clientID, secret, sender, recipient string, log *logrus.Logger) *GraphChannel {
	return &GraphChannel{
		TokenURL:   fmt.Sprintf("https://login.microsoftonline.com/%s/oauth2/v2.0/token", tenantID),
		GraphURL:   "https://graph.microsoft.com",
		ClientID:   clientID,
		Secret:     secret,
		Sender:     sender,
		Recipient:  recipient,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Log:        log,
	}
}

func (g *GraphChannel) Name() string { return "graph" }

type graphAttachment struct {
	ODataType    string `json:"@odata.type"`
	Name         string `json:"name"`
	ContentBytes string `json:"contentBytes"`
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphEmailAddress struct {
	Address string `json:"address"`
}

type graphRecipient struct {
	EmailAddress graphEmailAddress `json:"emailAddress"`
}

type graphMessage struct {
	Subject      string            `json:"subject"`
	Body         graphBody         `json:"body"`
	ToRecipients []graphRecipient  `json:"toRecipients"`
	Attachments  []graphAttachment `json:"attachments"`
}

type graphMail struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems string       `json:"saveToSentItems"`
}

func (g *GraphChannel) Send(ctx context.Context, msg Message) error {
	token, err := g.token(ctx)
	if err != nil {
		return fmt.Errorf("graph token: %w", err)
	}

	audio, err := os.ReadFile(msg.AudioPath)
	if err != nil {
		return fmt.Errorf("read audio attachment: %w", err)
	}

	mail := graphMail{
		SaveToSentItems: "true",
		Message: graphMessage{
			Subject:      msg.Subject,
			Body:         graphBody{ContentType: "Text", Content: msg.Body},
			ToRecipients: []graphRecipient{{EmailAddress: graphEmailAddress{Address: g.Recipient}}},
			Attachments: []graphAttachment{
				{
					ODataType:    "#microsoft.graph.fileAttachment",
					Name:         msg.AudioName,
					ContentBytes: base64.StdEncoding.EncodeToString(audio),
				},
				{
					ODataType:    "#microsoft.graph.fileAttachment",
					Name:         msg.TranscriptName,
					ContentBytes: base64.StdEncoding.EncodeToString([]byte(msg.Body)),
				},
			},
		},
	}

	payload, err := json.Marshal(mail)
	if err != nil {
		return err
	}

	endpoint := fmt.Sprintf("%s/v1.0/users/%s/sendMail", g.GraphURL, g.Sender)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("graph sendMail: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("graph sendMail status %d: %s", resp.StatusCode, string(body))
	}

	g.Log.WithField("to", g.Recipient).Info("mail sent via Microsoft Graph")
	return nil
}

// token performs the client-credentials exchange against Entra ID.
func (g *GraphChannel) token(ctx context.Context) (string, error) {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", g.ClientID)
	form.Set("client_secret", g.Secret)
	form.Set("scope", "https://graph.microsoft.com/.default")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if out.AccessToken == "" {
		return "", fmt.Errorf("token endpoint returned no access_token (status %d)", resp.StatusCode)
	}
	return out.AccessToken, nil
}
