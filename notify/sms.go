package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kilnworks/go-admin-gate/internal/config"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SMSGatewaySender posts one-time codes to an SMS delivery gateway as
// JSON. The gateway owns actual carrier delivery.
type SMSGatewaySender struct {
	url    string
	apiKey string
	client *http.Client
}

func NewSMSGatewaySender(cfg config.EnvConfig) *SMSGatewaySender {
	return &SMSGatewaySender{
		url:    cfg.GetSmsGatewayURL(),
		apiKey: cfg.GetSmsAPIKey(),
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type smsPayload struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

func (s *SMSGatewaySender) SendCode(ctx context.Context, address, code string) error {
	if s.url == "" {
		return errors.New("[SMSGatewaySender.SendCode] SMS gateway URL not configured")
	}

	body, err := json.Marshal(smsPayload{
		To:      address,
		Message: fmt.Sprintf("Your admin verification code is %s", code),
	})
	if err != nil {
		return errors.Wrap(err, "[SMSGatewaySender.SendCode] json.Marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return errors.Wrap(err, "[SMSGatewaySender.SendCode] http.NewRequestWithContext")
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "[SMSGatewaySender.SendCode] gateway request")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return errors.Errorf("[SMSGatewaySender.SendCode] gateway returned %d: %s", resp.StatusCode, string(detail))
	}

	log.Debug().Str("to", address).Msg("verification code sent over sms")
	return nil
}
