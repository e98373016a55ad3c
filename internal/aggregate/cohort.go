package aggregate

import (
	"sort"

	"example.com/backstage/services/analytics/internal/models"

	"github.com/rs/zerolog/log"
)

// UserMonth records that a user had at least one event in a calendar month (YYYY-MM)
type UserMonth struct {
	UserID string `gorm:"column:user_id"`
	Month  string `gorm:"column:bucket_month"`
}

// monthlyActivity is the distinct set of active users per month index
type monthlyActivity map[int]map[string]struct{}

func buildActivity(rows []UserMonth) monthlyActivity {
	activity := make(monthlyActivity)
	for _, row := range rows {
		idx, err := monthIndex(row.Month)
		if err != nil {
			log.Warn().Err(err).Str("user_id", row.UserID).Msg("Skipping activity row")
			continue
		}
		users, ok := activity[idx]
		if !ok {
			users = make(map[string]struct{})
			activity[idx] = users
		}
		users[row.UserID] = struct{}{}
	}
	return activity
}

func (a monthlyActivity) months() []int {
	months := make([]int, 0, len(a))
	for m := range a {
		months = append(months, m)
	}
	sort.Ints(months)
	return months
}

// Retention assigns each user to the cohort of their first active month and reports,
// for the maxCohorts most recent cohorts, the share of the cohort active at each month offset.
// Points are ordered by cohort then offset, both ascending.
func Retention(rows []UserMonth, maxCohorts int) []models.RetentionPoint {
	activity := buildActivity(rows)
	months := activity.months()

	firstSeen := make(map[string]int)
	for _, m := range months {
		for user := range activity[m] {
			if _, ok := firstSeen[user]; !ok {
				firstSeen[user] = m
			}
		}
	}

	cohortSize := make(map[int]int64)
	for _, cohort := range firstSeen {
		cohortSize[cohort]++
	}

	cohorts := make([]int, 0, len(cohortSize))
	for cohort := range cohortSize {
		cohorts = append(cohorts, cohort)
	}
	sort.Ints(cohorts)
	if maxCohorts > 0 && len(cohorts) > maxCohorts {
		cohorts = cohorts[len(cohorts)-maxCohorts:]
	}

	// active[cohort][offset] = distinct users
	active := make(map[int]map[int]int64, len(cohorts))
	for _, cohort := range cohorts {
		active[cohort] = make(map[int]int64)
	}
	for _, m := range months {
		for user := range activity[m] {
			cohort := firstSeen[user]
			if offsets, ok := active[cohort]; ok {
				offsets[m-cohort]++
			}
		}
	}

	points := make([]models.RetentionPoint, 0)
	for _, cohort := range cohorts {
		size := cohortSize[cohort]
		if size == 0 {
			continue
		}

		offsets := make([]int, 0, len(active[cohort]))
		for offset := range active[cohort] {
			offsets = append(offsets, offset)
		}
		sort.Ints(offsets)

		for _, offset := range offsets {
			users := active[cohort][offset]
			points = append(points, models.RetentionPoint{
				Cohort:        formatMonth(cohort),
				MonthOffset:   offset,
				ActiveUsers:   users,
				CohortSize:    size,
				RetentionRate: Percent(users, size),
			})
		}
	}

	return points
}

// Churn reports, for each month with active users, how many of them have no activity in
// the following month. The maxMonths most recent months are returned, newest first.
func Churn(rows []UserMonth, maxMonths int) []models.ChurnPoint {
	activity := buildActivity(rows)
	months := activity.months()

	points := make([]models.ChurnPoint, 0, len(months))
	for i := len(months) - 1; i >= 0; i-- {
		if maxMonths > 0 && len(points) == maxMonths {
			break
		}

		m := months[i]
		users := activity[m]
		if len(users) == 0 {
			continue
		}

		next := activity[m+1]
		var lost int64
		for user := range users {
			if _, ok := next[user]; !ok {
				lost++
			}
		}

		total := int64(len(users))
		points = append(points, models.ChurnPoint{
			Month:       formatMonth(m),
			ActiveUsers: total,
			LostUsers:   lost,
			ChurnRate:   Percent(lost, total),
		})
	}

	return points
}
