package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

const defaultSMSCTimeout = 10 * time.Second

// SMSCGateway sends text messages through the SMSC.ru HTTP API.
type SMSCGateway struct {
	login      string
	password   string
	sendURL    string
	balanceURL string
	warnBelow  decimal.Decimal
	timeout    time.Duration
	logger     *slog.Logger
}

// SMSCConfig configures an SMSCGateway. A zero WarnBelow disables the balance probe.
type SMSCConfig struct {
	Login     string
	Password  string
	APIURL    string
	WarnBelow decimal.Decimal
	Timeout   time.Duration
}

// NewSMSCGateway builds a gateway. The balance endpoint sits next to send.php.
func NewSMSCGateway(cfg SMSCConfig, logger *slog.Logger) *SMSCGateway {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSMSCTimeout
	}
	return &SMSCGateway{
		login:      cfg.Login,
		password:   cfg.Password,
		sendURL:    cfg.APIURL,
		balanceURL: strings.Replace(cfg.APIURL, "send.php", "balance.php", 1),
		warnBelow:  cfg.WarnBelow,
		timeout:    cfg.Timeout,
		logger:     logger,
	}
}

type smscResponse struct {
	ID        int64  `json:"id"`
	Count     int    `json:"cnt"`
	Balance   string `json:"balance"`
	Error     string `json:"error"`
	ErrorCode int    `json:"error_code"`
}

// Send delivers message.Body to message.Destination. A low provider balance is
// only logged; an error reported by SMSC fails the send.
func (g *SMSCGateway) Send(ctx context.Context, message Message) error {
	if g.warnBelow.IsPositive() {
		g.checkBalance(ctx)
	}

	params := g.credentials()
	params.Set("phones", message.Destination)
	params.Set("mes", message.Body)

	resp, err := g.call(ctx, g.sendURL, params)
	if err != nil {
		return err
	}
	if resp.Error != "" {
		return fmt.Errorf("%w: smsc error %d: %s", ErrGateway, resp.ErrorCode, resp.Error)
	}
	g.logger.Debug("sms sent", slog.Int64("smsc_id", resp.ID), slog.Int("parts", resp.Count))
	return nil
}

func (g *SMSCGateway) checkBalance(ctx context.Context) {
	resp, err := g.call(ctx, g.balanceURL, g.credentials())
	if err != nil || resp.Error != "" {
		g.logger.Warn("smsc balance probe failed", slog.Any("error", err), slog.String("smsc_error", resp.Error))
		return
	}
	balance, err := decimal.NewFromString(resp.Balance)
	if err != nil {
		g.logger.Warn("smsc balance unreadable", slog.String("balance", resp.Balance))
		return
	}
	if balance.LessThan(g.warnBelow) {
		g.logger.Warn("smsc balance low",
			slog.String("balance", balance.String()),
			slog.String("threshold", g.warnBelow.String()))
	}
}

func (g *SMSCGateway) credentials() url.Values {
	params := url.Values{}
	params.Set("login", g.login)
	params.Set("psw", g.password)
	params.Set("fmt", "3")
	return params
}

func (g *SMSCGateway) call(ctx context.Context, endpoint string, params url.Values) (smscResponse, error) {
	if err := ctx.Err(); err != nil {
		return smscResponse{}, fmt.Errorf("%w: %v", ErrGateway, err)
	}
	timeout := g.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Get(endpoint).QueryString(params.Encode()).Timeout(timeout)
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return smscResponse{}, fmt.Errorf("%w: %v", ErrGateway, errs[0])
	}
	if status != fiber.StatusOK {
		return smscResponse{}, fmt.Errorf("%w: smsc status %d", ErrGateway, status)
	}

	var resp smscResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return smscResponse{}, fmt.Errorf("%w: decode smsc response: %v", ErrGateway, err)
	}
	return resp, nil
}
