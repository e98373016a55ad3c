package aggregate

import (
	"math"

	"example.com/backstage/services/analytics/internal/models"
)

// Trend labels of an earnings prediction
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

const flatSlope = 0.01

// ForecastWindow is the number of calendar months, ending at the latest one, a forecast fits over
const ForecastWindow = 12

type monthPoint struct {
	x, y float64
}

// ForecastEarnings fits a least-squares line through the monthly totals that fall inside the
// ForecastWindow months ending at the latest month, and projects the month after it. Months
// without earnings are left out of the fit, not counted as zero.
func ForecastEarnings(monthly []models.MonthlyAmount) models.EarningsPrediction {
	points := monthlyPoints(monthly)
	n := len(points)

	switch n {
	case 0:
		return models.EarningsPrediction{Trend: TrendFlat}
	case 1:
		return models.EarningsPrediction{
			PredictedNextMonth: Round2(math.Max(0, points[0].y)),
			Trend:              TrendFlat,
			BasedOnMonths:      1,
		}
	}

	var meanX, meanY float64
	for _, p := range points {
		meanX += p.x
		meanY += p.y
	}
	meanX /= float64(n)
	meanY /= float64(n)

	var sxy, sxx float64
	for _, p := range points {
		dx := p.x - meanX
		sxy += dx * (p.y - meanY)
		sxx += dx * dx
	}
	slope := sxy / sxx
	intercept := meanY - slope*meanX

	var ssRes, ssTot float64
	for _, p := range points {
		fit := intercept + slope*p.x
		ssRes += (p.y - fit) * (p.y - fit)
		ssTot += (p.y - meanY) * (p.y - meanY)
	}

	confidence := 1.0
	if ssTot > 0 {
		confidence = math.Min(1, math.Max(0, 1-ssRes/ssTot))
	}

	trend := TrendFlat
	switch {
	case slope > flatSlope:
		trend = TrendUp
	case slope < -flatSlope:
		trend = TrendDown
	}

	next := float64(ForecastWindow)
	return models.EarningsPrediction{
		PredictedNextMonth: Round2(math.Max(0, intercept+slope*next)),
		Trend:              trend,
		Confidence:         Round2(confidence),
		BasedOnMonths:      n,
	}
}

// monthlyPoints returns one point per month inside the window, x being the month's position in it
func monthlyPoints(monthly []models.MonthlyAmount) []monthPoint {
	byMonth := make(map[int]float64, len(monthly))
	last := math.MinInt
	for _, m := range monthly {
		idx, err := monthIndex(m.Month)
		if err != nil {
			continue
		}
		byMonth[idx] += m.Amount
		last = max(last, idx)
	}
	if len(byMonth) == 0 {
		return nil
	}

	first := last - ForecastWindow + 1
	points := make([]monthPoint, 0, len(byMonth))
	for idx := first; idx <= last; idx++ {
		if amount, ok := byMonth[idx]; ok {
			points = append(points, monthPoint{x: float64(idx - first), y: amount})
		}
	}
	return points
}
