// Package usage reports billing usage through the OpenAI proxy.
package usage

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/shl518/vchat/internal/proxy"
	"github.com/shl518/vchat/internal/vchat"
)

const (
	usagePath        = "dashboard/billing/usage"
	subscriptionPath = "dashboard/billing/subscription"
	dateLayout       = "2006-01-02"

	// lookahead pushes the window end past today so the current day is
	// always included by the billing API.
	lookahead = 2 * 24 * time.Hour
)

// Usage is the billing summary in dollars. A nil field was missing or zero
// in the upstream response.
type Usage struct {
	Used         *float64 `json:"used,omitempty"`
	Subscription *float64 `json:"subscription,omitempty"`
}

type usageResponse struct {
	TotalUsage *float64 `json:"total_usage"`
	Error      *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

type subscriptionResponse struct {
	HardLimitUSD *float64 `json:"hard_limit_usd"`
}

// Window returns the billing query range for now: the end is two days
// ahead and the start is the first day of the end's month.
func Window(now time.Time) (start, end string) {
	e := now.Add(lookahead)
	s := time.Date(e.Year(), e.Month(), 1, 0, 0, 0, 0, e.Location())
	return s.Format(dateLayout), e.Format(dateLayout)
}

// Reporter queries usage and subscription limits.
type Reporter struct {
	proxy    *proxy.Client
	notifier vchat.Notifier
	now      func() time.Time
	logger   *slog.Logger
}

// NewReporter creates a Reporter. notifier receives upstream error messages.
func NewReporter(client *proxy.Client, notifier vchat.Notifier, logger *slog.Logger) *Reporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reporter{proxy: client, notifier: notifier, now: time.Now, logger: logger}
}

// Report fetches usage and subscription concurrently. When the usage
// endpoint answers with a typed error, its message is shown through the
// notifier and Report returns nil without error.
func (r *Reporter) Report(ctx context.Context) (*Usage, error) {
	start, end := Window(r.now())
	query := url.Values{}
	query.Set("start_date", start)
	query.Set("end_date", end)

	var used usageResponse
	var subs subscriptionResponse

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return r.get(gCtx, usagePath+"?"+query.Encode(), &used)
	})
	g.Go(func() error {
		return r.get(gCtx, subscriptionPath, &subs)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if used.Error != nil && used.Error.Type != "" {
		r.logger.Debug("usage error", "type", used.Error.Type, "message", used.Error.Message)
		if r.notifier != nil {
			r.notifier.ShowToast(used.Error.Message)
		}
		return nil, nil
	}

	usage := &Usage{}
	if used.TotalUsage != nil && *used.TotalUsage != 0 {
		v := math.Round(*used.TotalUsage) / 100
		usage.Used = &v
	}
	if subs.HardLimitUSD != nil && *subs.HardLimitUSD != 0 {
		v := math.Round(*subs.HardLimitUSD*100) / 100
		usage.Subscription = &v
	}
	return usage, nil
}

func (r *Reporter) get(ctx context.Context, path string, v any) error {
	resp, err := r.proxy.Do(ctx, path, nil, http.MethodGet)
	if err != nil {
		return err
	}
	if !r.proxy.DecodeJSON(resp, v) {
		return fmt.Errorf("invalid response from %s", path)
	}
	return nil
}
