package app_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/tavolo/tavolo/internal/cache"
	"github.com/tavolo/tavolo/internal/domain"
	"github.com/tavolo/tavolo/internal/domaintest"
)

type fakeClock struct {
	now   time.Time
	mutex sync.Mutex
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.now = c.now.Add(d)
}

func newCache(clock *fakeClock) *cache.Cache {
	return cache.New(cache.NewStore(time.Minute, clock.Now))
}

type mockedTenantDataProvider struct {
	t     *testing.T
	clock *fakeClock

	settingsErr error
	productsErr error
	statusErr   error

	// Bumped on every call so tests can tell fresh data from cached data
	settingsCalls int
	productsCalls int
	statusCalls   int

	mutex sync.Mutex
}

func (m *mockedTenantDataProvider) GetSettings(ctx context.Context, tenantID string) (domain.TenantSettings, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.settingsCalls++
	if m.settingsErr != nil {
		return domain.TenantSettings{}, m.settingsErr
	}
	settings := domaintest.NewTenantSettings(tenantID, m.clock.Now())
	settings.Name = settings.Name + " v" + string(rune('0'+m.settingsCalls))
	return settings, nil
}

func (m *mockedTenantDataProvider) ListProducts(ctx context.Context, tenantID string, onlyAvailable bool) ([]domain.Product, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.productsCalls++
	if m.productsErr != nil {
		return nil, m.productsErr
	}
	builder := domaintest.NewProductsBuilder(tenantID).WithProduct("Lasagna", 1450, true)
	if !onlyAvailable {
		builder = builder.WithProduct("Tiramisu", 650, false)
	}
	return builder.Build(), nil
}

func (m *mockedTenantDataProvider) GetLiveStatus(ctx context.Context, tenantID string) (domain.LiveStatus, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.statusCalls++
	if m.statusErr != nil {
		return domain.LiveStatus{}, m.statusErr
	}
	return domaintest.NewLiveStatus(tenantID, m.statusCalls, m.clock.Now()), nil
}

func (m *mockedTenantDataProvider) calls() (int, int, int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.settingsCalls, m.productsCalls, m.statusCalls
}

func (m *mockedTenantDataProvider) setSettingsErr(err error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.settingsErr = err
}
