package temporal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDirectory struct {
	timezone    string
	timezoneErr error
	services    []TenantService
	servicesErr error
}

func (d *fakeDirectory) GetTenantTimezone(_ context.Context, _ int64) (string, error) {
	return d.timezone, d.timezoneErr
}

func (d *fakeDirectory) ListTenantServices(_ context.Context, _ int64) ([]TenantService, error) {
	return d.services, d.servicesErr
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestGetCurrentTimeContext(t *testing.T) {
	dir := &fakeDirectory{
		timezone: "America/New_York",
		services: []TenantService{
			{Name: "Spa", IsAvailable: true, AvailableHours: "9:00 AM - 5:00 PM"},
			{Name: "Gym", IsAvailable: true},
			{Name: "Pool", IsAvailable: false},
		},
	}
	svc := NewService(nil, dir, "UTC")
	// 18:30 UTC is 14:30 in New York (summer).
	svc.Now = fixedClock(time.Date(2025, time.July, 9, 18, 30, 0, 0, time.UTC))

	tc, err := svc.GetCurrentTimeContext(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, "America/New_York", tc.Timezone)
	assert.Equal(t, time.Wednesday, tc.DayOfWeek)
	assert.False(t, tc.IsWeekend)
	assert.True(t, tc.IsBusinessHours)
	assert.Equal(t, MealLunch, tc.MealPeriod)
	assert.True(t, tc.ServiceAvailability["Spa"])
	assert.True(t, tc.ServiceAvailability["Gym"])
	assert.False(t, tc.ServiceAvailability["Pool"])
}

func TestGetCurrentTimeContextWeekendLateNight(t *testing.T) {
	svc := NewService(nil, nil, "UTC")
	svc.Now = fixedClock(time.Date(2025, time.July, 12, 23, 30, 0, 0, time.UTC))

	tc, err := svc.GetCurrentTimeContext(context.Background(), 1)
	require.NoError(t, err)

	assert.True(t, tc.IsWeekend)
	assert.False(t, tc.IsBusinessHours)
	assert.Equal(t, MealLateNight, tc.MealPeriod)
}

func TestMealPeriodBoundaries(t *testing.T) {
	tests := []struct {
		hour int
		want MealPeriod
	}{
		{5, MealLateNight},
		{6, MealBreakfast},
		{10, MealBreakfast},
		{11, MealLunch},
		{15, MealLunch},
		{16, MealDinner},
		{21, MealDinner},
		{22, MealLateNight},
		{2, MealLateNight},
	}
	for _, tt := range tests {
		local := time.Date(2025, time.March, 3, tt.hour, 0, 0, 0, time.UTC)
		assert.Equal(t, tt.want, mealPeriodAt(local), "hour %d", tt.hour)
	}
}

func TestIsServiceAvailable(t *testing.T) {
	dir := &fakeDirectory{
		timezone: "UTC",
		services: []TenantService{
			{Name: "Room Service", IsAvailable: true, AvailableHours: "06:00-22:00"},
			{Name: "Spa", IsAvailable: false},
		},
	}
	svc := NewService(nil, dir, "UTC")
	svc.Now = fixedClock(time.Date(2025, time.July, 9, 12, 0, 0, 0, time.UTC))

	t.Run("open within hours", func(t *testing.T) {
		available, err := svc.IsServiceAvailable(context.Background(), 1, "room service", time.Time{})
		require.NoError(t, err)
		assert.True(t, available)
	})

	t.Run("closed outside hours", func(t *testing.T) {
		at := time.Date(2025, time.July, 9, 23, 0, 0, 0, time.UTC)
		available, err := svc.IsServiceAvailable(context.Background(), 1, "Room Service", at)
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("service marked unavailable", func(t *testing.T) {
		available, err := svc.IsServiceAvailable(context.Background(), 1, "Spa", time.Time{})
		require.NoError(t, err)
		assert.False(t, available)
	})

	t.Run("unknown service is unavailable with error", func(t *testing.T) {
		available, err := svc.IsServiceAvailable(context.Background(), 1, "Helipad", time.Time{})
		require.Error(t, err)
		assert.False(t, available)
	})

	t.Run("lookup fault defaults to available", func(t *testing.T) {
		broken := NewService(nil, &fakeDirectory{servicesErr: errors.New("db down")}, "UTC")
		available, err := broken.IsServiceAvailable(context.Background(), 1, "Spa", time.Time{})
		require.NoError(t, err)
		assert.True(t, available)
	})
}

func TestResolveTimeReference(t *testing.T) {
	svc := NewService(nil, nil, "UTC")
	// Wednesday 2025-07-09 10:00 UTC.
	base := time.Date(2025, time.July, 9, 10, 0, 0, 0, time.UTC)
	svc.Now = fixedClock(base)

	tests := []struct {
		name       string
		expression string
		want       time.Time
	}{
		{"tonight", "can we do it tonight", time.Date(2025, 7, 9, 19, 0, 0, 0, time.UTC)},
		{"tomorrow", "book for tomorrow please", time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC)},
		{"next week", "sometime next week works", time.Date(2025, 7, 14, 9, 0, 0, 0, time.UTC)},
		{"weekend", "this weekend would be great", time.Date(2025, 7, 12, 10, 0, 0, 0, time.UTC)},
		{"clock pm", "around 7:30 pm", time.Date(2025, 7, 9, 19, 30, 0, 0, time.UTC)},
		{"clock 12am", "12 am checkout", time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)},
		{"unresolvable", "whenever you can", base},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := svc.ResolveTimeReference(context.Background(), 1, tt.expression)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestParseServiceHours(t *testing.T) {
	tests := []struct {
		input     string
		wantStart time.Duration
		wantEnd   time.Duration
		wantOK    bool
	}{
		{"9:00 AM - 5:00 PM", 9 * time.Hour, 17 * time.Hour, true},
		{"09:00-17:00", 9 * time.Hour, 17 * time.Hour, true},
		{"12:00 PM - 12:00 AM", 12 * time.Hour, 0, true},
		{"6:30 am - 10:15 pm", 6*time.Hour + 30*time.Minute, 22*time.Hour + 15*time.Minute, true},
		{"always open", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		start, end, ok := ParseServiceHours(tt.input)
		assert.Equal(t, tt.wantOK, ok, "input %q", tt.input)
		if tt.wantOK {
			assert.Equal(t, tt.wantStart, start, "input %q", tt.input)
			assert.Equal(t, tt.wantEnd, end, "input %q", tt.input)
		}
	}
}

func TestParseClock(t *testing.T) {
	d, err := ParseClock("07:30")
	require.NoError(t, err)
	assert.Equal(t, 7*time.Hour+30*time.Minute, d)

	for _, bad := range []string{"", "7", "25:00", "10:99", "ten:30"} {
		_, err := ParseClock(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestTimezoneFallbacks(t *testing.T) {
	t.Run("directory error falls back", func(t *testing.T) {
		svc := NewService(nil, &fakeDirectory{timezoneErr: errors.New("boom")}, "Europe/Paris")
		svc.Now = fixedClock(time.Date(2025, time.July, 9, 10, 0, 0, 0, time.UTC))
		tc, err := svc.GetCurrentTimeContext(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, "Europe/Paris", tc.Timezone)
	})

	t.Run("bad timezone uses UTC wall time", func(t *testing.T) {
		svc := NewService(nil, &fakeDirectory{timezone: "Mars/Olympus"}, "UTC")
		now := time.Date(2025, time.July, 9, 10, 0, 0, 0, time.UTC)
		svc.Now = fixedClock(now)
		tc, err := svc.GetCurrentTimeContext(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, now.Hour(), tc.LocalTime.Hour())
	})
}
