package tool

// BaseCost covers the sentiment and intent classification calls.
const BaseCost = 0.002

const defaultToolCost = 0.001

var toolCosts = map[string]float64{
	CreateTicket:        0.0015,
	UpdateTicket:        0.001,
	EscalateTicket:      0.003,
	CreateRefundRequest: 0.0015,
	ExplainRefundState:  0.0005,
	ExplainOrderState:   0.0005,
}

func Cost(tool string) float64 {
	if c, ok := toolCosts[tool]; ok {
		return c
	}
	return defaultToolCost
}

// TotalCost is BaseCost plus one increment per attempted tool.
func TotalCost(attempted []string) float64 {
	total := BaseCost
	for _, name := range attempted {
		total += Cost(name)
	}
	return total
}
