// Package mock provides in-process providers for local development and tests.
// They fabricate plausible data deterministically enough for demos without
// talking to any real vendor or portal.
package mock

import (
	"context"
	"math/rand"
	"time"

	"github.com/google/uuid"

	"github.com/vibehealth/healthsync/internal/provider"
)

const deviceVendor = "mock"

// DeviceProvider fabricates daily step, heart rate and sleep measurements.
type DeviceProvider struct{}

// NewDeviceProvider creates a mock device provider.
func NewDeviceProvider() *DeviceProvider {
	return &DeviceProvider{}
}

func (p *DeviceProvider) Authorize(ctx context.Context, authCode, redirectURI string) (*provider.TokenSet, error) {
	return &provider.TokenSet{
		AccessToken:  "mock_access_token_" + uuid.New().String(),
		RefreshToken: "mock_refresh_token_" + uuid.New().String(),
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}, nil
}

func (p *DeviceProvider) RefreshToken(ctx context.Context, refreshToken string) (*provider.TokenSet, error) {
	return &provider.TokenSet{
		AccessToken:  "mock_access_token_" + uuid.New().String(),
		RefreshToken: refreshToken,
		ExpiresIn:    3600,
		TokenType:    "Bearer",
	}, nil
}

func (p *DeviceProvider) GetHealthData(ctx context.Context, accessToken string, start, end time.Time) ([]provider.HealthDataPoint, error) {
	var data []provider.HealthDataPoint

	for current := startOfDay(start); !current.After(end); current = current.AddDate(0, 0, 1) {
		data = append(data, provider.HealthDataPoint{
			RecordDate: current,
			MetricType: "STEPS",
			Values: map[string]interface{}{
				"steps": randomInt(3000, 12000),
			},
			MeasuredAt: current,
		})
		data = append(data, provider.HealthDataPoint{
			RecordDate: current,
			MetricType: "HEART_RATE",
			Values: map[string]interface{}{
				"resting": randomInt(55, 75),
				"average": randomInt(65, 85),
				"max":     randomInt(100, 150),
			},
			MeasuredAt: current,
		})
		data = append(data, provider.HealthDataPoint{
			RecordDate: current,
			MetricType: "SLEEP",
			Values: map[string]interface{}{
				"duration": randomDouble(5.0, 9.0),
				"quality":  randomInt(60, 95),
			},
			MeasuredAt: current,
		})
	}

	return data, nil
}

func (p *DeviceProvider) RevokeAccess(ctx context.Context, accessToken string) error {
	return nil
}

func (p *DeviceProvider) Vendor() string {
	return deviceVendor
}

func (p *DeviceProvider) SupportedDataTypes() []string {
	return []string{"STEPS", "HEART_RATE", "SLEEP"}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func randomInt(min, max int) int {
	return min + rand.Intn(max-min+1)
}

func randomDouble(min, max float64) float64 {
	v := min + rand.Float64()*(max-min)
	return float64(int(v*10+0.5)) / 10
}

var _ provider.DeviceDataProvider = (*DeviceProvider)(nil)
