package aggregate

import (
	"fmt"
	"math"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_RetentionOffsetZeroIsComplete(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	// Every user is active in their own first month, so offset 0 is always 100%
	properties.Property("offset zero retention is 100 for every cohort", prop.ForAll(
		func(cohortSizes []int, later []int) bool {
			var rows []UserMonth
			for c, size := range cohortSizes {
				month := formatMonth(2020*12 + c)
				for u := 0; u < size; u++ {
					user := fmt.Sprintf("c%d-u%d", c, u)
					rows = append(rows, UserMonth{user, month})
					if len(later) > 0 {
						offset := later[(c+u)%len(later)]
						rows = append(rows, UserMonth{user, formatMonth(2020*12 + c + offset)})
					}
				}
			}

			for _, p := range Retention(rows, 0) {
				if p.MonthOffset < 0 || p.ActiveUsers > p.CohortSize {
					return false
				}
				if p.MonthOffset == 0 && p.RetentionRate != 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 20)),
		gen.SliceOf(gen.IntRange(0, 6)),
	))

	properties.TestingRun(t)
}

func TestProperty_ChurnBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("lost users never exceed active users", prop.ForAll(
		func(months []int) bool {
			var rows []UserMonth
			for i, m := range months {
				rows = append(rows, UserMonth{fmt.Sprintf("u%d", i%7), formatMonth(2022*12 + m)})
			}

			for _, p := range Churn(rows, 12) {
				if p.ActiveUsers == 0 || p.LostUsers > p.ActiveUsers {
					return false
				}
				if p.ChurnRate < 0 || p.ChurnRate > 100 {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(0, 30)),
	))

	properties.TestingRun(t)
}

func TestProperty_PercentileWithinRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("percentile lies between min and max", prop.ForAll(
		func(values []float64, q float64) bool {
			if len(values) == 0 {
				return Percentile(values, q) == 0
			}
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, v := range values {
				lo = math.Min(lo, v)
				hi = math.Max(hi, v)
			}
			p := Percentile(values, q)
			return p >= lo && p <= hi
		},
		gen.SliceOf(gen.Float64Range(0, 10000)),
		gen.Float64Range(0, 1),
	))

	properties.Property("error rate is a rounded percentage", prop.ForAll(
		func(total, errs int64) bool {
			if errs > total {
				errs = total
			}
			rate := Percent(errs, total)
			return rate >= 0 && rate <= 100 && rate == Round2(rate)
		},
		gen.Int64Range(0, 100000),
		gen.Int64Range(0, 100000),
	))

	properties.TestingRun(t)
}
