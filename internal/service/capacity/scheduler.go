package capacity

import (
	"time"

	"github.com/shopspring/decimal"

	"prod-planner/internal/apperr"
	"prod-planner/internal/storage"
)

const (
	DefaultDailyCapacityMinutes = 480
	DefaultHorizonDays          = 60
	dateLayout                  = "2006-01-02"
)

type Scheduler struct {
	DailyCapacityMinutes decimal.Decimal
	SkipWeekends         bool
	HorizonDays          int
}

func New(dailyCapacityMinutes int, skipWeekends bool, horizonDays int) Scheduler {
	if dailyCapacityMinutes <= 0 {
		dailyCapacityMinutes = DefaultDailyCapacityMinutes
	}
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	return Scheduler{
		DailyCapacityMinutes: decimal.NewFromInt(int64(dailyCapacityMinutes)),
		SkipWeekends:         skipWeekends,
		HorizonDays:          horizonDays,
	}
}

// EstimatedMinutes = target / rate.
func EstimatedMinutes(recipe storage.Recipe, targetKg decimal.Decimal) (decimal.Decimal, error) {
	if !recipe.ProductionRateKgPerMinute.IsPositive() {
		return decimal.Zero, &apperr.InvalidRecipeError{RecipeID: recipe.ID, Reason: "production rate must be positive"}
	}
	return targetKg.Div(recipe.ProductionRateKgPerMinute), nil
}

// Workload - занятые минуты по дням.
type Workload map[string]decimal.Decimal

func DateKey(t time.Time) string {
	return t.Format(dateLayout)
}

func (w Workload) Used(date time.Time) decimal.Decimal {
	return w[DateKey(date)]
}

func (w Workload) Add(date time.Time, minutes decimal.Decimal) {
	key := DateKey(date)
	w[key] = w[key].Add(minutes)
}

// BuildWorkload суммирует время заказов planned и ongoing, кроме excludeID.
func BuildWorkload(orders []storage.ProductionOrder, recipes map[int64]storage.Recipe, excludeID int64) Workload {
	w := make(Workload)
	for _, o := range orders {
		if o.Status != storage.OrderPlanned && o.Status != storage.OrderOngoing {
			continue
		}
		if excludeID != 0 && o.ID == excludeID {
			continue
		}
		recipe, ok := recipes[o.RecipeID]
		if !ok {
			continue
		}
		minutes, err := EstimatedMinutes(recipe, o.TargetQuantityKg)
		if err != nil {
			continue
		}
		w.Add(o.PlannedDate, minutes)
	}
	return w
}

type Part struct {
	Date             time.Time       `json:"date"`
	BatchSizeKg      decimal.Decimal `json:"batch_size_kg"`
	EstimatedMinutes decimal.Decimal `json:"estimated_minutes"`
}

type Decision struct {
	Fits             bool            `json:"fits"`
	CapacityMinutes  decimal.Decimal `json:"capacity_minutes"`
	UsedMinutes      decimal.Decimal `json:"used_minutes"`
	CandidateMinutes decimal.Decimal `json:"candidate_minutes"`
	OverflowMinutes  decimal.Decimal `json:"overflow_minutes"`
	Parts            []Part          `json:"parts,omitempty"`
}

// Plan проверяет, помещается ли заказ в день, и при переполнении предлагает разбиение.
// Разбиение жадно заполняет остаток мощности последовательных дней начиная с plannedDate.
func (s Scheduler) Plan(recipe storage.Recipe, targetKg decimal.Decimal, plannedDate time.Time, workload Workload) (Decision, error) {
	if !s.DailyCapacityMinutes.IsPositive() {
		return Decision{}, apperr.Validation("daily_capacity_minutes", "must be positive")
	}
	if !targetKg.IsPositive() {
		return Decision{}, apperr.Validation("target_quantity_kg", "must be positive, got %s", targetKg)
	}

	candidate, err := EstimatedMinutes(recipe, targetKg)
	if err != nil {
		return Decision{}, err
	}

	day := truncateDay(plannedDate)
	used := workload.Used(day)
	decision := Decision{
		CapacityMinutes:  s.DailyCapacityMinutes,
		UsedMinutes:      used,
		CandidateMinutes: candidate,
	}

	if used.Add(candidate).LessThanOrEqual(s.DailyCapacityMinutes) {
		decision.Fits = true
		return decision, nil
	}

	decision.OverflowMinutes = used.Add(candidate).Sub(s.DailyCapacityMinutes)

	parts, err := s.split(recipe, targetKg, day, workload)
	if err != nil {
		return Decision{}, err
	}
	decision.Parts = parts

	return decision, nil
}

func (s Scheduler) split(recipe storage.Recipe, targetKg decimal.Decimal, start time.Time, workload Workload) ([]Part, error) {
	rate := recipe.ProductionRateKgPerMinute
	remaining := targetKg
	var parts []Part

	for i := 0; i < s.HorizonDays && remaining.IsPositive(); i++ {
		date := start.AddDate(0, 0, i)
		if s.SkipWeekends && isWeekend(date) {
			continue
		}

		free := s.DailyCapacityMinutes.Sub(workload.Used(date))
		if !free.IsPositive() {
			continue
		}

		take := decimal.Min(free.Mul(rate), remaining)
		parts = append(parts, Part{
			Date:             date,
			BatchSizeKg:      take,
			EstimatedMinutes: take.Div(rate),
		})
		remaining = remaining.Sub(take)
	}

	if remaining.IsPositive() {
		return nil, apperr.Validation("target_quantity_kg", "%s kg cannot be scheduled within %d days", remaining, s.HorizonDays)
	}

	return parts, nil
}

// SameParts сравнивает предложение, которое видел планировщик, со свежим.
func SameParts(a, b []Part) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if DateKey(a[i].Date) != DateKey(b[i].Date) || !a[i].BatchSizeKg.Equal(b[i].BatchSizeKg) {
			return false
		}
	}
	return true
}

func SumParts(parts []Part) decimal.Decimal {
	total := decimal.Zero
	for _, p := range parts {
		total = total.Add(p.BatchSizeKg)
	}
	return total
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
