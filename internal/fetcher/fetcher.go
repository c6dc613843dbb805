package fetcher

import (
	"context"
	"fmt"
	"net/url"

	"npbc-dashboard/internal/device"
)

// Endpoints served by the boiler controller.
const (
	EndpointInfo               = "api/getInfo"
	EndpointStats              = "api/getStats"
	EndpointConsumptionStats   = "api/getConsumptionStats"
	EndpointConsumptionByMonth = "api/getConsumptionByMonth"
)

// Fetcher retrieves one endpoint and decodes its JSON body into dst. It
// reports false when the dataset is unavailable; it never fails loudly.
type Fetcher interface {
	Fetch(ctx context.Context, endpoint string, dst any) bool
}

// DeviceAPI is the typed view of the four controller endpoints. A failed
// fetch yields nil records: a decoder that gave up halfway may have filled
// part of the slice.
type DeviceAPI struct {
	fetcher Fetcher
}

// NewDeviceAPI wraps a Fetcher.
func NewDeviceAPI(f Fetcher) *DeviceAPI {
	return &DeviceAPI{fetcher: f}
}

// Info returns the current-status records.
func (a *DeviceAPI) Info(ctx context.Context) ([]device.StatusRecord, bool) {
	var out []device.StatusRecord
	if !a.fetcher.Fetch(ctx, EndpointInfo, &out) {
		return nil, false
	}
	return out, true
}

// Stats returns history samples recorded since the Unix second boundary.
func (a *DeviceAPI) Stats(ctx context.Context, since int64) ([]device.HistoryRecord, bool) {
	var out []device.HistoryRecord
	if !a.fetcher.Fetch(ctx, withTimestamp(EndpointStats, since), &out) {
		return nil, false
	}
	return out, true
}

// ConsumptionStats returns hourly feeder run time since the boundary.
func (a *DeviceAPI) ConsumptionStats(ctx context.Context, since int64) ([]device.ConsumptionRecord, bool) {
	var out []device.ConsumptionRecord
	if !a.fetcher.Fetch(ctx, withTimestamp(EndpointConsumptionStats, since), &out) {
		return nil, false
	}
	return out, true
}

// ConsumptionByMonth returns the cumulative monthly feeder run time. It is
// not windowed.
func (a *DeviceAPI) ConsumptionByMonth(ctx context.Context) ([]device.MonthlyRecord, bool) {
	var out []device.MonthlyRecord
	if !a.fetcher.Fetch(ctx, EndpointConsumptionByMonth, &out) {
		return nil, false
	}
	return out, true
}

func withTimestamp(endpoint string, since int64) string {
	q := url.Values{}
	q.Set("timestamp", fmt.Sprintf("%d", since))
	return endpoint + "?" + q.Encode()
}
