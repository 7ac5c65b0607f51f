package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"riskguard/internal/models"
	"riskguard/pkg/ratelimit"
	"riskguard/pkg/retry"
)

const (
	bybitBaseURL    = "https://api.bybit.com"
	bybitRecvWindow = "5000"

	// Биржа ограничивает страницу истории 100 записями
	bybitPageLimit = "100"

	// Предохранитель от бесконечной пагинации по курсору
	bybitMaxPages = 20
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Bybit реализует AccountClient для приватного REST API Bybit v5.
//
// Клиент не хранит ключи: credential приходит в каждый вызов. Все
// подписанные запросы проходят через общий SpacingGate, поэтому
// конкурентные вызовы не превышают лимит частоты биржи.
type Bybit struct {
	httpClient *HTTPClient
	gate       *ratelimit.SpacingGate
	log        *zap.Logger

	baseURL string // переопределяется в тестах
}

// NewBybit создаёт новый клиент Bybit с внедрёнными зависимостями
func NewBybit(httpClient *HTTPClient, gate *ratelimit.SpacingGate, log *zap.Logger) *Bybit {
	return &Bybit{
		httpClient: httpClient,
		gate:       gate,
		log:        log,
		baseURL:    bybitBaseURL,
	}
}

func (b *Bybit) Name() string {
	return "bybit"
}

// sign создаёт подпись HMAC-SHA256 для запроса к Bybit API v5
func sign(secret, timestamp, apiKey, params string) string {
	message := timestamp + apiKey + bybitRecvWindow + params
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(message))
	return hex.EncodeToString(h.Sum(nil))
}

// category возвращает категорию продуктов Bybit для вида аккаунта
func category(cred *models.Credential) (string, error) {
	switch cred.AccountKind {
	case models.AccountKindSpot:
		return "spot", nil
	case models.AccountKindFutures:
		return "linear", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAccountKind, cred.AccountKind)
	}
}

// doSigned выполняет подписанный GET запрос к API с повторными
// попытками на сетевых сбоях. Ошибки авторизации не повторяются.
//
// Отказывается отправлять запрос без ключей: молчаливый
// неподписанный fallback недопустим.
func (b *Bybit) doSigned(ctx context.Context, cred *models.Credential, endpoint string, params url.Values) ([]byte, error) {
	if cred == nil || cred.APIKey == "" || cred.SecretKey == "" {
		return nil, ErrMissingCredential
	}

	cfg := retry.DefaultConfig()
	cfg.RetryIf = retry.RetryIfTransient
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		b.log.Warn("retrying request",
			zap.String("endpoint", endpoint),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err))
	}

	return retry.DoWithResult(ctx, func() ([]byte, error) {
		return b.doSignedOnce(ctx, cred, endpoint, params)
	}, cfg)
}

// doSignedOnce выполняет одну попытку запроса.
// Перед отправкой ждёт слот в SpacingGate.
func (b *Bybit) doSignedOnce(ctx context.Context, cred *models.Credential, endpoint string, params url.Values) ([]byte, error) {
	if err := b.gate.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate gate: %w", err)
	}

	query := params.Encode()
	reqURL := b.baseURL + endpoint
	if query != "" {
		reqURL += "?" + query
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}

	timestamp := strconv.FormatInt(time.Now().UnixMilli(), 10)
	signature := sign(cred.SecretKey, timestamp, cred.APIKey, query)

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-BAPI-API-KEY", cred.APIKey)
	req.Header.Set("X-BAPI-SIGN", signature)
	req.Header.Set("X-BAPI-TIMESTAMP", timestamp)
	req.Header.Set("X-BAPI-RECV-WINDOW", bybitRecvWindow)

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var baseResp struct {
		RetCode int    `json:"retCode"`
		RetMsg  string `json:"retMsg"`
	}
	if err := json.Unmarshal(body, &baseResp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if baseResp.RetCode != 0 {
		exchErr := &ExchangeError{
			Exchange: "bybit",
			Endpoint: endpoint,
			Code:     strconv.Itoa(baseResp.RetCode),
			Message:  baseResp.RetMsg,
		}
		// 10003 invalid api key, 10004 invalid signature, 10005 permission denied
		switch baseResp.RetCode {
		case 10003, 10004, 10005:
			return nil, retry.Permanent(exchErr)
		}
		return nil, exchErr
	}

	return body, nil
}

// ============================================================
// Баланс и позиции
// ============================================================

func (b *Bybit) Balance(ctx context.Context, cred *models.Credential) (models.Balance, error) {
	params := url.Values{}
	params.Set("accountType", "UNIFIED")

	body, err := b.doSigned(ctx, cred, "/v5/account/wallet-balance", params)
	if err != nil {
		return models.Balance{}, err
	}

	var resp struct {
		Result struct {
			List []struct {
				TotalEquity           string `json:"totalEquity"`
				TotalAvailableBalance string `json:"totalAvailableBalance"`
				TotalPerpUPL          string `json:"totalPerpUPL"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.Balance{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if len(resp.Result.List) == 0 {
		return models.Balance{}, fmt.Errorf("%w: empty wallet-balance list", ErrMalformedResponse)
	}

	acc := resp.Result.List[0]
	total, err := requireFloat("totalEquity", acc.TotalEquity)
	if err != nil {
		return models.Balance{}, err
	}
	available, err := optionalFloat("totalAvailableBalance", acc.TotalAvailableBalance)
	if err != nil {
		return models.Balance{}, err
	}
	upl, err := optionalFloat("totalPerpUPL", acc.TotalPerpUPL)
	if err != nil {
		return models.Balance{}, err
	}

	return models.Balance{
		Total:         total,
		Available:     available,
		UnrealizedPnl: upl,
		Known:         true,
		UpdatedAt:     time.Now(),
	}, nil
}

func (b *Bybit) Positions(ctx context.Context, cred *models.Credential) ([]models.Position, error) {
	// У spot-аккаунтов позиций нет
	if cred != nil && cred.AccountKind == models.AccountKindSpot {
		return []models.Position{}, nil
	}

	params := url.Values{}
	params.Set("category", "linear")
	params.Set("settleCoin", "USDT")

	body, err := b.doSigned(ctx, cred, "/v5/position/list", params)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Result struct {
			List []struct {
				Symbol        string `json:"symbol"`
				Side          string `json:"side"`
				Size          string `json:"size"`
				AvgPrice      string `json:"avgPrice"`
				MarkPrice     string `json:"markPrice"`
				Leverage      string `json:"leverage"`
				LiqPrice      string `json:"liqPrice"`
				UnrealisedPnl string `json:"unrealisedPnl"`
				UpdatedTime   string `json:"updatedTime"`
			} `json:"list"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	positions := make([]models.Position, 0, len(resp.Result.List))
	for _, p := range resp.Result.List {
		size, err := requireFloat("size", p.Size)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}

		entryPrice, err := requireFloat("avgPrice", p.AvgPrice)
		if err != nil {
			return nil, err
		}
		markPrice, err := optionalFloat("markPrice", p.MarkPrice)
		if err != nil {
			return nil, err
		}
		liqPrice, err := optionalFloat("liqPrice", p.LiqPrice)
		if err != nil {
			return nil, err
		}
		unrealized, err := optionalFloat("unrealisedPnl", p.UnrealisedPnl)
		if err != nil {
			return nil, err
		}
		leverage, err := optionalLeverage(p.Leverage)
		if err != nil {
			return nil, err
		}
		updated, err := optionalMillis(p.UpdatedTime)
		if err != nil {
			return nil, err
		}

		positions = append(positions, models.Position{
			Symbol:           p.Symbol,
			Side:             normalizeSide(p.Side),
			Size:             size,
			EntryPrice:       entryPrice,
			MarkPrice:        markPrice,
			Leverage:         leverage,
			LiquidationPrice: liqPrice,
			UnrealizedPnl:    unrealized,
			UpdatedAt:        updated,
		})
	}

	return positions, nil
}

// ============================================================
// Исторические фиды
// ============================================================

func (b *Bybit) OrderHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawOrder, error) {
	cat, err := category(cred)
	if err != nil {
		return nil, err
	}

	var orders []RawOrder
	err = b.paginate(ctx, cred, "/v5/order/history", cat, start, end, func(body []byte) (string, error) {
		var resp struct {
			Result struct {
				NextPageCursor string `json:"nextPageCursor"`
				List           []struct {
					OrderID     string `json:"orderId"`
					Symbol      string `json:"symbol"`
					Side        string `json:"side"`
					OrderStatus string `json:"orderStatus"`
					AvgPrice    string `json:"avgPrice"`
					CumExecQty  string `json:"cumExecQty"`
					CreatedTime string `json:"createdTime"`
				} `json:"list"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		for _, o := range resp.Result.List {
			if o.OrderID == "" || o.Symbol == "" {
				return "", fmt.Errorf("%w: order without id or symbol", ErrMalformedResponse)
			}
			avgPrice, err := optionalFloat("avgPrice", o.AvgPrice)
			if err != nil {
				return "", err
			}
			execQty, err := optionalFloat("cumExecQty", o.CumExecQty)
			if err != nil {
				return "", err
			}
			created, err := requireMillis("createdTime", o.CreatedTime)
			if err != nil {
				return "", err
			}

			orders = append(orders, RawOrder{
				OrderID:     o.OrderID,
				Symbol:      o.Symbol,
				Side:        normalizeSide(o.Side),
				Status:      normalizeOrderStatus(o.OrderStatus),
				AvgPrice:    avgPrice,
				ExecutedQty: execQty,
				CreatedAt:   created,
			})
		}
		return resp.Result.NextPageCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return orders, nil
}

func (b *Bybit) Fills(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawFill, error) {
	cat, err := category(cred)
	if err != nil {
		return nil, err
	}

	var fills []RawFill
	err = b.paginate(ctx, cred, "/v5/execution/list", cat, start, end, func(body []byte) (string, error) {
		var resp struct {
			Result struct {
				NextPageCursor string `json:"nextPageCursor"`
				List           []struct {
					OrderID   string `json:"orderId"`
					ExecQty   string `json:"execQty"`
					ExecPrice string `json:"execPrice"`
					ExecTime  string `json:"execTime"`
					ExecPnl   string `json:"execPnl"`  // опционально: есть не во всех режимах аккаунта
					Leverage  string `json:"leverage"` // опционально
				} `json:"list"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		for _, f := range resp.Result.List {
			if f.OrderID == "" {
				return "", fmt.Errorf("%w: execution without orderId", ErrMalformedResponse)
			}
			qty, err := requireFloat("execQty", f.ExecQty)
			if err != nil {
				return "", err
			}
			price, err := requireFloat("execPrice", f.ExecPrice)
			if err != nil {
				return "", err
			}
			execTime, err := requireMillis("execTime", f.ExecTime)
			if err != nil {
				return "", err
			}
			pnl, err := optionalFloat("execPnl", f.ExecPnl)
			if err != nil {
				return "", err
			}
			leverage, err := optionalLeverage(f.Leverage)
			if err != nil {
				return "", err
			}

			fills = append(fills, RawFill{
				OrderID:     f.OrderID,
				Qty:         qty,
				Price:       price,
				Leverage:    leverage,
				RealizedPnl: pnl,
				ExecTime:    execTime,
			})
		}
		return resp.Result.NextPageCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return fills, nil
}

func (b *Bybit) IncomeHistory(ctx context.Context, cred *models.Credential, start, end time.Time) ([]RawIncomeEntry, error) {
	// Журнал транзакций ведётся только для деривативов
	if cred != nil && cred.AccountKind == models.AccountKindSpot {
		return []RawIncomeEntry{}, nil
	}

	var entries []RawIncomeEntry
	err := b.paginate(ctx, cred, "/v5/account/transaction-log", "linear", start, end, func(body []byte) (string, error) {
		var resp struct {
			Result struct {
				NextPageCursor string `json:"nextPageCursor"`
				List           []struct {
					Symbol          string `json:"symbol"`
					Type            string `json:"type"`
					Change          string `json:"change"`
					TransactionTime string `json:"transactionTime"`
				} `json:"list"`
			} `json:"result"`
		}
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedResponse, err)
		}

		for _, e := range resp.Result.List {
			change, err := optionalFloat("change", e.Change)
			if err != nil {
				return "", err
			}
			ts, err := requireMillis("transactionTime", e.TransactionTime)
			if err != nil {
				return "", err
			}

			entries = append(entries, RawIncomeEntry{
				Symbol:     e.Symbol,
				Income:     change,
				IncomeType: e.Type,
				Timestamp:  ts,
			})
		}
		return resp.Result.NextPageCursor, nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// paginate обходит страницы endpoint'а по курсору.
// parse разбирает страницу и возвращает курсор следующей (пустой = конец).
func (b *Bybit) paginate(
	ctx context.Context,
	cred *models.Credential,
	endpoint, cat string,
	start, end time.Time,
	parse func(body []byte) (string, error),
) error {
	cursor := ""
	for page := 0; page < bybitMaxPages; page++ {
		params := url.Values{}
		params.Set("category", cat)
		params.Set("startTime", strconv.FormatInt(start.UnixMilli(), 10))
		params.Set("endTime", strconv.FormatInt(end.UnixMilli(), 10))
		params.Set("limit", bybitPageLimit)
		if cursor != "" {
			params.Set("cursor", cursor)
		}

		body, err := b.doSigned(ctx, cred, endpoint, params)
		if err != nil {
			return err
		}

		next, err := parse(body)
		if err != nil {
			return err
		}
		if next == "" || next == cursor {
			return nil
		}
		cursor = next
	}

	b.log.Warn("pagination cut off at page limit",
		zap.String("endpoint", endpoint),
		zap.Int("max_pages", bybitMaxPages))
	return nil
}

// ============================================================
// Парсинг полей на границе
// ============================================================
//
// Биржа кодирует числа строками. Невалидное значение означает
// повреждённый ответ: запись отклоняется, NaN и заглушки не
// подставляются.

func requireFloat(field, value string) (float64, error) {
	if value == "" {
		return 0, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, field)
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: field %q = %q", ErrMalformedResponse, field, value)
	}
	return f, nil
}

// optionalFloat допускает отсутствие поля, но не мусор в нём
func optionalFloat(field, value string) (float64, error) {
	if value == "" {
		return 0, nil
	}
	return requireFloat(field, value)
}

func optionalLeverage(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	// Bybit может вернуть плечо дробной строкой ("12.5")
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("%w: field %q = %q", ErrMalformedResponse, "leverage", value)
	}
	return int(f), nil
}

func requireMillis(field, value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, fmt.Errorf("%w: missing field %q", ErrMalformedResponse, field)
	}
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms < 0 {
		return time.Time{}, fmt.Errorf("%w: field %q = %q", ErrMalformedResponse, field, value)
	}
	return time.UnixMilli(ms), nil
}

func optionalMillis(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return requireMillis("updatedTime", value)
}

func normalizeSide(side string) string {
	if side == "Sell" {
		return models.SideSell
	}
	return models.SideBuy
}

func normalizeOrderStatus(status string) string {
	switch status {
	case "Filled":
		return OrderStatusFilled
	case "Cancelled", "PartiallyFilledCanceled", "Deactivated":
		return OrderStatusCancelled
	case "Rejected":
		return OrderStatusRejected
	default:
		return OrderStatusOpen
	}
}
