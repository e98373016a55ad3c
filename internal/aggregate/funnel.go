package aggregate

import "example.com/backstage/services/analytics/internal/models"

// FunnelStages are the hiring funnel steps in order, keyed by the event type that marks each one
var FunnelStages = []struct {
	Name      string
	EventType string
}{
	{"Profile Views", models.EventTypeProfileView},
	{"Proposals Sent", models.EventTypeProposalSubmitted},
	{"Interviews", models.EventTypeInterviewScheduled},
	{"Hires", models.EventTypeContractStarted},
}

// FunnelEventTypes lists the event types FunnelStages reads
func FunnelEventTypes() []string {
	types := make([]string, 0, len(FunnelStages))
	for _, stage := range FunnelStages {
		types = append(types, stage.EventType)
	}
	return types
}

// BuildFunnel turns per-event-type counts into funnel steps and step-to-step conversion rates
func BuildFunnel(counts map[string]int64) models.Funnel {
	steps := make([]models.FunnelStep, 0, len(FunnelStages))
	for _, stage := range FunnelStages {
		steps = append(steps, models.FunnelStep{Name: stage.Name, Count: counts[stage.EventType]})
	}

	return models.Funnel{
		Steps: steps,
		ConversionRates: models.ConversionRates{
			ViewToApp:       Percent(steps[1].Count, steps[0].Count),
			AppToInterview:  Percent(steps[2].Count, steps[1].Count),
			InterviewToHire: Percent(steps[3].Count, steps[2].Count),
		},
	}
}
