// Пакет tgclient: HTTP-клиент Telegram Bot API.
// Канал Telegram служит журналом только на добавление: видео и превью
// загружаются как сообщения, метаданные публикуются текстовым сообщением,
// а file_id превращается в временную ссылку на CDN через getFile.
// Клиент не хранит состояния и не повторяет запросы: частота исходящих
// запросов ограничивается (x/time/rate), а при серии сбоев срабатывает
// circuit breaker (sony/gobreaker).
package tgclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/bigkaa/goartstore/catalog-module/internal/domain/model"
)

// DefaultAPIURL: базовый URL Bot API.
const DefaultAPIURL = "https://api.telegram.org"

// defaultRetryAfter: задержка, если Bot API вернул 429 без parameters.retry_after.
const defaultRetryAfter = 60

// Prometheus-метрики обращений к Bot API.
var (
	remoteRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cm_remote_requests_total",
		Help: "Общее количество запросов к Telegram Bot API.",
	}, []string{"method", "result"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cm_remote_request_duration_seconds",
		Help:    "Длительность запросов к Telegram Bot API в секундах.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

// Options: параметры клиента. Заполняются из config.Config при старте процесса.
type Options struct {
	// BotToken: токен бота
	BotToken string
	// ChannelID: канал (@name или числовой id), в который публикуются сообщения
	ChannelID string
	// APIURL: базовый URL Bot API (пусто = DefaultAPIURL)
	APIURL string
	// Timeout: таймаут обычных вызовов (sendMessage, getUpdates, getFile)
	Timeout time.Duration
	// UploadTimeout: таймаут загрузки файлов (sendVideo, sendPhoto)
	UploadTimeout time.Duration
	// RequestsPerSecond и Burst: ограничение частоты исходящих запросов
	RequestsPerSecond float64
	Burst             int
	// BreakerFailures: число подряд идущих сбоев, после которого breaker открывается
	BreakerFailures uint32
	// BreakerTimeout: время в открытом состоянии до пробного запроса
	BreakerTimeout time.Duration
}

// Client: клиент Telegram Bot API.
type Client struct {
	httpClient    *http.Client
	apiURL        string
	token         string
	channelID     string
	timeout       time.Duration
	uploadTimeout time.Duration
	limiter       *rate.Limiter
	breaker       *gobreaker.CircuitBreaker[json.RawMessage]
	logger        *slog.Logger
}

// New создаёт клиент Bot API.
func New(opts Options, logger *slog.Logger) *Client {
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UploadTimeout <= 0 {
		opts.UploadTimeout = 10 * time.Minute
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 25
	}
	if opts.Burst <= 0 {
		opts.Burst = 1
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}

	log := logger.With(slog.String("component", "tg_client"))

	c := &Client{
		httpClient: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConnsPerHost: 10,
			},
		},
		apiURL:        strings.TrimRight(opts.APIURL, "/"),
		token:         opts.BotToken,
		channelID:     opts.ChannelID,
		timeout:       opts.Timeout,
		uploadTimeout: opts.UploadTimeout,
		limiter:       rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), opts.Burst),
		logger:        log,
	}

	failures := opts.BreakerFailures
	c.breaker = gobreaker.NewCircuitBreaker[json.RawMessage](gobreaker.Settings{
		Name:        "telegram-bot-api",
		MaxRequests: 1,
		Timeout:     opts.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Сбоем считается только ExternalServiceError: 429 и "не найдено"
		// означают, что сервис отвечает.
		IsSuccessful: func(err error) bool {
			var ese *model.ExternalServiceError
			return !errors.As(err, &ese)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker сменил состояние",
				slog.String("name", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})

	return c
}

// ChannelID возвращает канал, в который публикуются сообщения.
func (c *Client) ChannelID() string {
	return c.channelID
}

// APIURL возвращает базовый URL Bot API (для проверки зависимостей).
func (c *Client) APIURL() string {
	return c.apiURL
}

// apiResponse: конверт ответа Bot API.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	ErrorCode   int             `json:"error_code"`
	Description string          `json:"description"`
	Parameters  *struct {
		RetryAfter int `json:"retry_after"`
	} `json:"parameters"`
}

// requestBuilder создаёт HTTP-запрос к методу Bot API.
// Вызывается один раз на вызов метода.
type requestBuilder func(ctx context.Context, methodURL string) (*http.Request, error)

// callJSON вызывает метод Bot API с JSON-телом и разбирает result в out.
func (c *Client) callJSON(ctx context.Context, method string, params any, out any) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("сериализация параметров %s: %w", method, err)
	}

	return c.call(ctx, c.timeout, method, func(ctx context.Context, methodURL string) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, methodURL, strings.NewReader(string(body)))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}, out)
}

// call выполняет запрос через limiter и circuit breaker, учитывает метрики
// и переводит ответ Bot API в таксономию ошибок каталога.
// timeout ограничивает один вызов; его истечение считается сбоем Bot API,
// а отмена parent вызывающим нет.
func (c *Client) call(parent context.Context, timeout time.Duration, method string, build requestBuilder, out any) error {
	start := time.Now()
	defer func() {
		remoteRequestDuration.WithLabelValues(method).Observe(time.Since(start).Seconds())
	}()

	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		if parent.Err() != nil {
			remoteRequestsTotal.WithLabelValues(method, "canceled").Inc()
			return fmt.Errorf("%s прерван вызывающим: %w", method, context.Cause(parent))
		}
		remoteRequestsTotal.WithLabelValues(method, "error").Inc()
		return &model.ExternalServiceError{Code: 0, Description: "ожидание лимита запросов: " + err.Error()}
	}

	result, err := c.breaker.Execute(func() (json.RawMessage, error) {
		res, err := c.do(ctx, method, build)
		if err != nil && parent.Err() != nil {
			// Клиент ушёл раньше ответа: для breaker это не сбой сервиса
			return nil, fmt.Errorf("%s прерван вызывающим: %w", method, context.Cause(parent))
		}
		return res, err
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		remoteRequestsTotal.WithLabelValues(method, "rejected").Inc()
		return &model.ExternalServiceError{Code: http.StatusServiceUnavailable, Description: "circuit breaker open"}
	}
	remoteRequestsTotal.WithLabelValues(method, resultLabel(err)).Inc()
	if err != nil {
		c.logger.Debug("Ошибка вызова Bot API",
			slog.String("method", method),
			slog.String("error", err.Error()),
		)
		return err
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(result, out); err != nil {
		return &model.ExternalServiceError{Code: http.StatusOK, Description: fmt.Sprintf("неожиданный result в ответе %s: %v", method, err)}
	}
	return nil
}

// do выполняет один HTTP-запрос и возвращает поле result.
func (c *Client) do(ctx context.Context, method string, build requestBuilder) (json.RawMessage, error) {
	req, err := build(ctx, c.methodURL(method))
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s: %w", method, err)
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return nil, &model.ExternalServiceError{Code: 0, Description: redact(err).Error()}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &model.ExternalServiceError{Code: 0, Description: "чтение ответа: " + redact(err).Error()}
	}

	var env apiResponse
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, &model.ExternalServiceError{
			Code:        resp.StatusCode,
			Description: fmt.Sprintf("некорректный ответ %s (HTTP %d)", method, resp.StatusCode),
		}
	}
	if env.OK {
		return env.Result, nil
	}
	return nil, mapError(method, resp.StatusCode, &env)
}

// mapError переводит неуспешный ответ Bot API в ошибку каталога.
func mapError(method string, httpStatus int, env *apiResponse) error {
	code := env.ErrorCode
	if code == 0 {
		code = httpStatus
	}

	switch {
	case code == http.StatusTooManyRequests:
		retry := defaultRetryAfter
		if env.Parameters != nil && env.Parameters.RetryAfter > 0 {
			retry = env.Parameters.RetryAfter
		}
		return &model.RateLimitedError{RetryAfterSeconds: retry}
	case method == "getFile" && (code == http.StatusBadRequest || code == http.StatusNotFound):
		return &model.NotFoundError{Subject: "content"}
	default:
		desc := env.Description
		if desc == "" {
			desc = "Telegram API error"
		}
		return &model.ExternalServiceError{Code: code, Description: desc}
	}
}

func resultLabel(err error) string {
	var (
		rl *model.RateLimitedError
		nf *model.NotFoundError
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	case errors.As(err, &rl):
		return "rate_limited"
	case errors.As(err, &nf):
		return "not_found"
	default:
		return "error"
	}
}

func (c *Client) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", c.apiURL, c.token, method)
}

// redact убирает из транспортной ошибки URL запроса: он содержит токен бота.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%s: %w", ue.Op, ue.Err)
	}
	return err
}
