// Package mailer sends transactional email through the Resend HTTP API.
package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// BaseURL is the Resend API endpoint, overridable in tests
var BaseURL = "https://api.resend.com"

// ErrNotConfigured is returned when no API key is set
var ErrNotConfigured = errors.New("email service not configured")

const verificationFrom = "onboarding@resend.dev"

// Mailer sends email via Resend
type Mailer struct {
	apiKey     string
	httpClient *http.Client
}

// NewMailer creates a mailer. An empty API key produces a mailer whose
// sends fail with ErrNotConfigured so the caller can map it to 503.
func NewMailer(apiKey string) *Mailer {
	return &Mailer{
		apiKey: apiKey,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// IsConfigured reports whether an API key is present
func (m *Mailer) IsConfigured() bool {
	return m.apiKey != ""
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}

type sendResponse struct {
	ID string `json:"id"`
}

// Send delivers a single email and returns the provider message ID
func (m *Mailer) Send(ctx context.Context, from, to, subject, html string) (string, error) {
	if !m.IsConfigured() {
		return "", ErrNotConfigured
	}

	payload, err := json.Marshal(sendRequest{
		From:    from,
		To:      to,
		Subject: subject,
		HTML:    html,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, BaseURL+"/emails", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+m.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		slog.Error("Resend API error", "status", resp.StatusCode, "body", string(body))
		return "", fmt.Errorf("resend returned status %d", resp.StatusCode)
	}

	var result sendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	slog.Info("Verification email sent", "to", to, "id", result.ID)
	return result.ID, nil
}

// SendVerification sends the account verification email
func (m *Mailer) SendVerification(ctx context.Context, email, username, verificationURL string) (string, error) {
	subject := fmt.Sprintf("Verify your ResearchBridge account - %s", username)
	return m.Send(ctx, verificationFrom, email, subject, verificationHTML(username, verificationURL))
}

func verificationHTML(username, verificationURL string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
  <head>
    <meta charset="utf-8">
    <style>
      body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
      .container { max-width: 500px; margin: 0 auto; padding: 20px; background: #f9f9f9; border-radius: 8px; }
      .header { color: #000; font-size: 24px; font-weight: bold; margin-bottom: 20px; }
      .button { display: inline-block; background: #000; color: #fff; padding: 12px 30px; text-decoration: none; border-radius: 6px; margin: 20px 0; }
      .footer { color: #666; font-size: 12px; margin-top: 20px; border-top: 1px solid #ddd; padding-top: 20px; }
      .warning { color: #666; font-size: 13px; margin-top: 15px; }
    </style>
  </head>
  <body>
    <div class="container">
      <div class="header">Welcome to ResearchBridge! 🔬</div>
      <p>Hi <strong>%s</strong>,</p>
      <p>Thanks for signing up! Please verify your email address to activate your account.</p>
      <a href="%s" class="button">Verify Email Address</a>
      <p>Or copy and paste this link:</p>
      <p><code>%s</code></p>
      <div class="warning">
        <p><strong>⚠️ Security Note:</strong> This link expires in 24 hours. If you didn't create this account, you can safely ignore this email.</p>
      </div>
      <div class="footer">
        <p>ResearchBridge Team</p>
        <p>Finding research opportunities made simple.</p>
      </div>
    </div>
  </body>
</html>`, username, verificationURL, verificationURL)
}
