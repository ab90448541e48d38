package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/hibiken/asynq"

	"liteassistant/internal/utils"
)

// Provider names stored in notification_configs.provider
const (
	ProviderTelegram = "telegram"
	ProviderNtfy     = "ntfy"
)

const notificationTitle = "LiteAssistant Notification"

func configString(config map[string]interface{}, key string) string {
	return strings.TrimSpace(utils.Stringify(config[key]))
}

// sendTelegram config: {"bot_token": "...", "chat_id": "..."}
func (s *Service) sendTelegram(ctx context.Context, config map[string]interface{}, message string) error {
	token := configString(config, "bot_token")
	chatID := configString(config, "chat_id")
	if token == "" || chatID == "" {
		log.Println("NOTIFY: Telegram config missing bot_token or chat_id")
		return fmt.Errorf("telegram config incomplete: %w", asynq.SkipRetry)
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    chatID,
		"text":       message,
		"parse_mode": "HTML",
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.telegramAPI, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	if err := s.do(req, "Telegram"); err != nil {
		return err
	}
	log.Println("NOTIFY: Telegram notification sent")
	return nil
}

// sendNtfy config: {"topic": "...", "server_url": "https://ntfy.sh", "priority": "default", "username": "", "password": ""}
func (s *Service) sendNtfy(ctx context.Context, config map[string]interface{}, message string) error {
	topic := configString(config, "topic")
	if topic == "" {
		log.Println("NOTIFY: Ntfy config missing topic")
		return fmt.Errorf("ntfy config incomplete: %w", asynq.SkipRetry)
	}
	server := strings.TrimRight(configString(config, "server_url"), "/")
	if server == "" {
		server = "https://ntfy.sh"
	}
	priority := configString(config, "priority")
	if priority == "" {
		priority = "default"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, server+"/"+topic, strings.NewReader(message))
	if err != nil {
		return err
	}
	req.Header.Set("Title", notificationTitle)
	req.Header.Set("Priority", priority)
	if user, pass := configString(config, "username"), configString(config, "password"); user != "" && pass != "" {
		req.SetBasicAuth(user, pass)
	}

	if err := s.do(req, "Ntfy"); err != nil {
		return err
	}
	log.Println("NOTIFY: Ntfy notification sent")
	return nil
}

func (s *Service) do(req *http.Request, provider string) error {
	resp, err := s.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrDelivery, provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: %s API error (%d): %s", ErrDelivery, provider, resp.StatusCode, text)
	}
	return nil
}
