package offline

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/agamariel/canteen/internal/models"
)

const defaultClientTimeout = 10 * time.Second

// BusinessError - терминальный отказ сервера: запрос доставлен и обработан,
// но заказ провести нельзя. Повторная отправка даст тот же результат.
type BusinessError struct {
	Kind    models.ErrorKind
	Message string
}

func (e *BusinessError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// TransientError - временный сбой доставки или обработки: сеть, недоступный
// сервер, конфликт конкурентного изменения. Отправку имеет смысл повторить.
type TransientError struct {
	Message string
	Err     error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *TransientError) Unwrap() error { return e.Err }

// Client - HTTP-клиент серверного API проведения заказов.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент API. При нулевом таймауте используется умолчание.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Submit отправляет заказ на проведение. Коды 201 и 200 считаются успехом,
// 200 помечает результат как повтор уже проведённого заказа. Ошибки
// классифицируются на терминальные (BusinessError) и временные
// (TransientError) - от этого зависит судьба заказа в очереди.
func (c *Client) Submit(ctx context.Context, req *models.SettlementRequest, token string) (*models.SettlementResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal settlement request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/orders", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, &TransientError{Message: "submit order", Err: err}
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusCreated || resp.StatusCode == http.StatusOK:
		var result models.SettlementResult
		if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
			return nil, fmt.Errorf("decode settlement result: %w", err)
		}
		result.Duplicate = resp.StatusCode == http.StatusOK
		return &result, nil

	case resp.StatusCode == http.StatusUnauthorized:
		return nil, &TransientError{Message: "credential rejected"}

	case resp.StatusCode >= http.StatusInternalServerError:
		return nil, &TransientError{Message: fmt.Sprintf("server error %d: %s", resp.StatusCode, readErrorMessage(resp))}

	default:
		kind, message := readErrorKind(resp)
		return nil, &BusinessError{Kind: kind, Message: message}
	}
}

// Login аутентифицирует родителя и возвращает токен.
func (c *Client) Login(ctx context.Context, login, password string) (string, error) {
	body, err := json.Marshal(models.LoginRequest{Login: login, Password: password})
	if err != nil {
		return "", fmt.Errorf("marshal login request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", &TransientError{Message: "login", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login failed with status %d: %s", resp.StatusCode, readErrorMessage(resp))
	}

	var auth models.AuthResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return "", fmt.Errorf("decode auth response: %w", err)
	}
	return auth.Token, nil
}

// Ping проверяет доступность сервера.
func (c *Client) Ping(ctx context.Context) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/ping", nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &TransientError{Message: "ping", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &TransientError{Message: fmt.Sprintf("ping returned status %d", resp.StatusCode)}
	}
	return nil
}

// readErrorKind вытаскивает машинный код и сообщение из тела ошибки.
// Нечитаемое тело сводится к внутренней ошибке с текстом статуса.
func readErrorKind(resp *http.Response) (models.ErrorKind, string) {
	var errResp models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Error == "" {
		return models.ErrorKindInternal, fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return errResp.Error, errResp.Message
}

func readErrorMessage(resp *http.Response) string {
	var errResp models.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&errResp); err != nil || errResp.Message == "" {
		return http.StatusText(resp.StatusCode)
	}
	return errResp.Message
}

// ClientConnectivity проверяет доступность сервера коротким запросом.
type ClientConnectivity struct {
	client  *Client
	timeout time.Duration
}

// NewClientConnectivity создаёт проверку доступности поверх клиента API.
func NewClientConnectivity(client *Client, timeout time.Duration) *ClientConnectivity {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &ClientConnectivity{client: client, timeout: timeout}
}

// Online возвращает true, если сервер ответил на пинг.
func (c *ClientConnectivity) Online() bool {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	return c.client.Ping(ctx) == nil
}

// LoginTokenSource получает свежий токен перед каждой попыткой отправки.
// Токен не кешируется: очередь живёт между запусками и паузами дольше срока
// жизни токена, а повторный вход дешевле обработки протухшего.
type LoginTokenSource struct {
	client   *Client
	login    string
	password string
}

// NewLoginTokenSource создаёт источник токенов по логину и паролю родителя.
func NewLoginTokenSource(client *Client, login, password string) *LoginTokenSource {
	return &LoginTokenSource{client: client, login: login, password: password}
}

// Token выполняет вход и возвращает токен.
func (s *LoginTokenSource) Token(ctx context.Context) (string, error) {
	return s.client.Login(ctx, s.login, s.password)
}

// StaticTokenSource всегда возвращает заранее выданный токен.
type StaticTokenSource struct {
	token string
}

// NewStaticTokenSource создаёт источник с фиксированным токеном.
func NewStaticTokenSource(token string) *StaticTokenSource {
	return &StaticTokenSource{token: token}
}

// Token возвращает фиксированный токен.
func (s *StaticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}
