package temporal

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/hostr-app/guest-messaging-platform/pkg/logging"
)

// MealPeriod is the hotel meal window the current local time falls into.
type MealPeriod string

const (
	MealNone      MealPeriod = "NONE"
	MealBreakfast MealPeriod = "BREAKFAST"
	MealLunch     MealPeriod = "LUNCH"
	MealDinner    MealPeriod = "DINNER"
	MealLateNight MealPeriod = "LATE_NIGHT"
)

// Context describes the tenant-local time situation for one evaluation.
type Context struct {
	UTCTime             time.Time
	LocalTime           time.Time
	Timezone            string
	DayOfWeek           time.Weekday
	IsWeekend           bool
	IsBusinessHours     bool
	MealPeriod          MealPeriod
	ServiceAvailability map[string]bool
}

// TenantService is one bookable hotel service with optional opening hours
// in "9:00 AM - 5:00 PM" or "09:00-17:00" form.
type TenantService struct {
	Name                   string
	AvailableHours         string
	IsAvailable            bool
	RequiresAdvanceBooking bool
	AdvanceBookingHours    int
}

// TenantDirectory resolves per-tenant timezone and service configuration.
type TenantDirectory interface {
	GetTenantTimezone(ctx context.Context, tenantID int64) (string, error)
	ListTenantServices(ctx context.Context, tenantID int64) ([]TenantService, error)
}

// Business-hour defaults when the tenant configures nothing.
const (
	defaultBusinessStart = 6 * time.Hour
	defaultBusinessEnd   = 22 * time.Hour
)

// Service computes tenant-local time context: business hours, meal period
// and per-service availability. All lookups fail open toward "available";
// a broken clock config must not silence the concierge.
type Service struct {
	logger    *logging.Logger
	directory TenantDirectory
	fallback  string // timezone when directory has none

	// Business-hours window applied to every tenant. Defaults to
	// 06:00-22:00; override after construction from configuration.
	BusinessStart time.Duration
	BusinessEnd   time.Duration

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

// NewService creates a temporal context service. directory may be nil, in
// which case the fallback timezone and default hours apply to every tenant.
func NewService(logger *logging.Logger, directory TenantDirectory, fallbackTimezone string) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if fallbackTimezone == "" {
		fallbackTimezone = "UTC"
	}
	return &Service{
		logger:        logger.WithComponent("temporal"),
		directory:     directory,
		fallback:      fallbackTimezone,
		BusinessStart: defaultBusinessStart,
		BusinessEnd:   defaultBusinessEnd,
		Now:           time.Now,
	}
}

// GetCurrentTimeContext builds the full time context for a tenant.
func (s *Service) GetCurrentTimeContext(ctx context.Context, tenantID int64) (Context, error) {
	timezone := s.tenantTimezone(ctx, tenantID)
	local := s.toTenantTime(s.Now().UTC(), timezone)

	tc := Context{
		UTCTime:             s.Now().UTC(),
		LocalTime:           local,
		Timezone:            timezone,
		DayOfWeek:           local.Weekday(),
		IsWeekend:           local.Weekday() == time.Saturday || local.Weekday() == time.Sunday,
		IsBusinessHours:     withinWindow(timeOfDay(local), s.BusinessStart, s.BusinessEnd),
		MealPeriod:          mealPeriodAt(local),
		ServiceAvailability: map[string]bool{},
	}

	if s.directory != nil {
		services, err := s.directory.ListTenantServices(ctx, tenantID)
		if err != nil {
			s.logger.Warn("could not list tenant services", "tenant_id", tenantID, "error", err)
			return tc, nil
		}
		for _, svc := range services {
			available := svc.IsAvailable
			if available && svc.AvailableHours != "" {
				if start, end, ok := ParseServiceHours(svc.AvailableHours); ok {
					available = withinWindow(timeOfDay(local), start, end)
				}
			}
			tc.ServiceAvailability[svc.Name] = available
		}
	}

	return tc, nil
}

// IsServiceAvailable reports whether the named service is open at the given
// time (or now, when at is zero). Unknown services are unavailable; lookup
// faults default to available.
func (s *Service) IsServiceAvailable(ctx context.Context, tenantID int64, serviceName string, at time.Time) (bool, error) {
	if s.directory == nil {
		return true, nil
	}

	services, err := s.directory.ListTenantServices(ctx, tenantID)
	if err != nil {
		s.logger.Warn("service availability lookup failed, defaulting to available",
			"tenant_id", tenantID,
			"service", serviceName,
			"error", err,
		)
		return true, nil
	}

	var match *TenantService
	lowerName := strings.ToLower(serviceName)
	for i := range services {
		if strings.ToLower(services[i].Name) == lowerName {
			match = &services[i]
			break
		}
	}
	if match == nil {
		return false, fmt.Errorf("temporal: service %q not configured for tenant %d", serviceName, tenantID)
	}
	if !match.IsAvailable {
		return false, nil
	}

	checkTime := at
	if checkTime.IsZero() {
		checkTime = s.Now().UTC()
	}
	local := s.toTenantTime(checkTime, s.tenantTimezone(ctx, tenantID))

	if match.AvailableHours != "" {
		if start, end, ok := ParseServiceHours(match.AvailableHours); ok {
			return withinWindow(timeOfDay(local), start, end), nil
		}
	}
	return true, nil
}

// GetService returns the named tenant service, or nil when not configured.
func (s *Service) GetService(ctx context.Context, tenantID int64, serviceName string) (*TenantService, error) {
	if s.directory == nil {
		return nil, nil
	}
	services, err := s.directory.ListTenantServices(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("temporal: list services: %w", err)
	}
	lowerName := strings.ToLower(serviceName)
	for i := range services {
		if strings.ToLower(services[i].Name) == lowerName {
			return &services[i], nil
		}
	}
	return nil, nil
}

var relativeDayPatterns = []struct {
	re     *regexp.Regexp
	adjust func(base time.Time) time.Time
}{
	{regexp.MustCompile(`(?i)\b(tonight|this evening)\b`), func(b time.Time) time.Time { return atHour(b, 19) }},
	{regexp.MustCompile(`(?i)\b(tomorrow|next day)\b`), func(b time.Time) time.Time { return atHour(b.AddDate(0, 0, 1), 9) }},
	{regexp.MustCompile(`(?i)\b(this morning|today morning)\b`), func(b time.Time) time.Time { return atHour(b, 8) }},
	{regexp.MustCompile(`(?i)\b(this afternoon|today afternoon)\b`), func(b time.Time) time.Time { return atHour(b, 14) }},
	{regexp.MustCompile(`(?i)\b(now|right now|immediately)\b`), func(b time.Time) time.Time { return b }},
	{regexp.MustCompile(`(?i)\b(later|later today)\b`), func(b time.Time) time.Time { return b.Add(2 * time.Hour) }},
	{regexp.MustCompile(`(?i)\bnext week\b`), func(b time.Time) time.Time {
		daysUntilMonday := (8 - int(b.Weekday())) % 7
		if daysUntilMonday == 0 {
			daysUntilMonday = 7
		}
		return atHour(b.AddDate(0, 0, daysUntilMonday), 9)
	}},
	{regexp.MustCompile(`(?i)\b(this weekend|weekend)\b`), func(b time.Time) time.Time {
		daysUntilSaturday := (int(time.Saturday) - int(b.Weekday()) + 7) % 7
		return atHour(b.AddDate(0, 0, daysUntilSaturday), 10)
	}},
}

var clockMentionRe = regexp.MustCompile(`(?i)\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)

// ResolveTimeReference turns a colloquial time expression into a concrete
// tenant-local timestamp. Unresolvable expressions return the current time.
func (s *Service) ResolveTimeReference(ctx context.Context, tenantID int64, expression string) time.Time {
	base := s.toTenantTime(s.Now().UTC(), s.tenantTimezone(ctx, tenantID))

	for _, p := range relativeDayPatterns {
		if p.re.MatchString(expression) {
			return p.adjust(base)
		}
	}

	if m := clockMentionRe.FindStringSubmatch(expression); m != nil {
		hour, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		meridiem := strings.ToLower(m[3])
		if meridiem == "pm" && hour != 12 {
			hour += 12
		}
		if meridiem == "am" && hour == 12 {
			hour = 0
		}
		if hour < 24 && minute < 60 {
			return time.Date(base.Year(), base.Month(), base.Day(), hour, minute, 0, 0, base.Location())
		}
	}

	return base
}

// ParseClock decodes a "HH:MM" configuration value into an offset from
// midnight.
func ParseClock(value string) (time.Duration, error) {
	parts := strings.SplitN(strings.TrimSpace(value), ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("temporal: invalid clock value %q", value)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("temporal: invalid clock value %q", value)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("temporal: invalid clock value %q", value)
	}
	return time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute, nil
}

var serviceHoursRe = regexp.MustCompile(`(?i)(\d{1,2}):?(\d{2})?\s*(am|pm)?\s*-\s*(\d{1,2}):?(\d{2})?\s*(am|pm)?`)

// ParseServiceHours decodes "9:00 AM - 5:00 PM" or "09:00-17:00" into
// offsets from midnight.
func ParseServiceHours(hours string) (start, end time.Duration, ok bool) {
	m := serviceHoursRe.FindStringSubmatch(hours)
	if m == nil {
		return 0, 0, false
	}

	startHour, _ := strconv.Atoi(m[1])
	startMinute := 0
	if m[2] != "" {
		startMinute, _ = strconv.Atoi(m[2])
	}
	endHour, _ := strconv.Atoi(m[4])
	endMinute := 0
	if m[5] != "" {
		endMinute, _ = strconv.Atoi(m[5])
	}

	startHour = to24Hour(startHour, m[3])
	endHour = to24Hour(endHour, m[6])
	if startHour > 23 || endHour > 23 || startMinute > 59 || endMinute > 59 {
		return 0, 0, false
	}

	start = time.Duration(startHour)*time.Hour + time.Duration(startMinute)*time.Minute
	end = time.Duration(endHour)*time.Hour + time.Duration(endMinute)*time.Minute
	return start, end, true
}

func to24Hour(hour int, meridiem string) int {
	switch strings.ToLower(meridiem) {
	case "pm":
		if hour != 12 {
			hour += 12
		}
	case "am":
		if hour == 12 {
			hour = 0
		}
	}
	return hour
}

func (s *Service) tenantTimezone(ctx context.Context, tenantID int64) string {
	if s.directory == nil {
		return s.fallback
	}
	timezone, err := s.directory.GetTenantTimezone(ctx, tenantID)
	if err != nil || timezone == "" {
		return s.fallback
	}
	return timezone
}

func (s *Service) toTenantTime(utc time.Time, timezone string) time.Time {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		s.logger.Warn("unknown timezone, using UTC", "timezone", timezone)
		return utc
	}
	return utc.In(loc)
}

func mealPeriodAt(local time.Time) MealPeriod {
	switch hour := local.Hour(); {
	case hour >= 6 && hour < 11:
		return MealBreakfast
	case hour >= 11 && hour < 16:
		return MealLunch
	case hour >= 16 && hour < 22:
		return MealDinner
	default:
		return MealLateNight
	}
}

func withinWindow(tod, start, end time.Duration) bool {
	return tod >= start && tod <= end
}

func timeOfDay(t time.Time) time.Duration {
	return time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second
}

func atHour(base time.Time, hour int) time.Time {
	return time.Date(base.Year(), base.Month(), base.Day(), hour, 0, 0, 0, base.Location())
}
