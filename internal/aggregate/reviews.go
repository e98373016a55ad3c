package aggregate

import (
	"math"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
)

// PositiveRating is the lowest rating that counts as a successful job
const PositiveRating = 4.0

// ExtractRating reads the numeric "rating" field of an event metadata blob.
// Malformed JSON, a missing field or a non-numeric value all report ok=false.
func ExtractRating(metadata string) (rating float64, ok bool) {
	if !gjson.Valid(metadata) {
		return 0, false
	}

	value := gjson.Get(metadata, "rating")
	switch value.Type {
	case gjson.Number:
		return value.Num, true
	case gjson.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(value.Str), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// JobSuccessScore is the share of reviews rated PositiveRating or higher, as a whole
// percentage. Reviews without a readable rating count as reviews but not as positive.
// With no reviews at all the score is 100.
func JobSuccessScore(reviewMetadata []string) int {
	if len(reviewMetadata) == 0 {
		return 100
	}

	var positive int
	for _, metadata := range reviewMetadata {
		if rating, ok := ExtractRating(metadata); ok && rating >= PositiveRating {
			positive++
		}
	}

	return int(math.Round(100 * float64(positive) / float64(len(reviewMetadata))))
}
