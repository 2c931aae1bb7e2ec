package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"astra/models"

	"github.com/go-resty/resty/v2"
)

const segmentDelimiter = "|||"

// Session は会話をまたいで引き継ぐ情報
// Chat が成功するたびに SessionID と UserID が更新される
type Session struct {
	Name          string
	BirthDate     string
	BirthTime     string
	BirthLocation string
	Timezone      string
	Character     string
	Language      string
	PromptVariant string
	SessionID     string
	UserID        int64
}

// Reply は1往復分の応答
type Reply struct {
	Response  string              `json:"response"`
	Messages  []string            `json:"messages"`
	SessionID string              `json:"session_id"`
	UserID    int64               `json:"user_id"`
	Character models.CharacterRef `json:"character"`
	Language  string              `json:"language"`
	Intent    string              `json:"intent"`
}

// Segments は表示用に分割したメッセージを返す
func (r *Reply) Segments() []string {
	if len(r.Messages) > 0 {
		return r.Messages
	}
	var out []string
	for _, part := range strings.Split(r.Response, segmentDelimiter) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// APIError はサーバーが返した {success:false, error} と HTTP ステータス
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("astra api error (status %d): %s", e.StatusCode, e.Message)
}

// Client は Astra HTTP API のクライアント
type Client struct {
	http *resty.Client
}

func New(baseURL, apiKey string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	if apiKey != "" {
		c.SetHeader("X-API-Key", apiKey)
	}
	return &Client{http: c}
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	var failure models.ErrorResponse
	req := c.http.R().
		SetContext(ctx).
		SetResult(result).
		SetError(&failure)
	if body != nil {
		req.SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("failed to call %s %s: %w", method, path, err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = strings.TrimSpace(resp.String())
		}
		return &APIError{StatusCode: resp.StatusCode(), Message: msg}
	}
	return nil
}

// Chat はメッセージを送り、応答のセッション情報を s に書き戻す
func (c *Client) Chat(ctx context.Context, s *Session, message string) (*Reply, error) {
	req := models.ChatRequest{
		Name:              s.Name,
		BirthDate:         s.BirthDate,
		BirthTime:         s.BirthTime,
		BirthLocation:     s.BirthLocation,
		Timezone:          s.Timezone,
		Message:           message,
		Character:         models.CharacterRef{ID: s.Character},
		PreferredLanguage: s.Language,
		PromptVariant:     s.PromptVariant,
		SessionID:         s.SessionID,
	}

	var reply Reply
	if err := c.do(ctx, resty.MethodPost, "/api/v1/chat", req, &reply); err != nil {
		return nil, err
	}
	s.SessionID = reply.SessionID
	s.UserID = reply.UserID
	return &reply, nil
}

func (c *Client) Characters(ctx context.Context) ([]models.PersonaDescriptor, error) {
	var out struct {
		Characters []models.PersonaDescriptor `json:"characters"`
	}
	if err := c.do(ctx, resty.MethodGet, "/api/v1/characters", nil, &out); err != nil {
		return nil, err
	}
	return out.Characters, nil
}

// History は s のセッションの保存済みターンを返す
func (c *Client) History(ctx context.Context, s *Session) ([]models.Conversation, error) {
	if s.SessionID == "" {
		return nil, nil
	}
	path := "/api/v1/sessions/" + s.SessionID + "/history"
	if s.UserID != 0 {
		path += fmt.Sprintf("?user_id=%d", s.UserID)
	}
	var out struct {
		Messages []models.Conversation `json:"messages"`
	}
	if err := c.do(ctx, resty.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Health はサーバーの状態 ("healthy" など) を返す
func (c *Client) Health(ctx context.Context) (string, error) {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, resty.MethodGet, "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}
