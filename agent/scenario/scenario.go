package scenario

import (
	"fmt"
	"strconv"
	"strings"
)

type Scenario struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	UserID      string `json:"user_id"`
	UserQuery   string `json:"user_query"`
}

var demo = []Scenario{
	{
		Name:        "refund_bluetooth_earbuds",
		Description: "Wants a refund",
		UserID:      "user_001",
		UserQuery:   "I need a refund for my bluetooth electronics purchase, I don't like the product",
	},
	{
		Name:        "refund_dryer",
		Description: "Angry customer",
		UserID:      "user_002",
		UserQuery:   "I'm SICK OF ORDERING EVERYTHING and RETURNING EVERYTHING. Y'all aren't a good company. refund my tablet",
	},
	{
		Name:        "refund_gaming_mouse",
		Description: "Reporting broken mouse",
		UserID:      "user_003",
		UserQuery:   "My gaming mouse is broken, the scroll wheel stopped working after just a few days",
	},
	{
		Name:        "refund_air_purifier",
		Description: "Return air purifier",
		UserID:      "user_004",
		UserQuery:   "I want to return my air purifier, I changed my mind about needing it",
	},
	{
		Name:        "refund_coffee_maker",
		Description: "Reporting a broken coffee maker",
		UserID:      "user_005",
		UserQuery:   "My coffee maker stopped working, it won't heat water anymore",
	},
	{
		Name:        "refund_speakers",
		Description: "Not happy with speaker quality",
		UserID:      "user_006",
		UserQuery:   "I'm not happy with my speaker system, the sound quality is not what I expected",
	},
	{
		Name:        "enquire_status_of_order",
		Description: "Asking about costume delivery",
		UserID:      "user_007",
		UserQuery:   "Was my costume delivered?",
	},
}

// List returns the demo scenarios in index order.
func List() []Scenario {
	return append([]Scenario{}, demo...)
}

func ByIndex(i int) (Scenario, error) {
	if i < 0 || i >= len(demo) {
		return Scenario{}, fmt.Errorf("scenario index %d out of range [0,%d]", i, len(demo)-1)
	}
	return demo[i], nil
}

func ByName(name string) (Scenario, error) {
	name = strings.TrimSpace(name)
	for _, s := range demo {
		if s.Name == name {
			return s, nil
		}
	}
	return Scenario{}, fmt.Errorf("unknown scenario %q", name)
}

// Lookup accepts either a scenario name or its index.
func Lookup(ref string) (Scenario, error) {
	if i, err := strconv.Atoi(strings.TrimSpace(ref)); err == nil {
		return ByIndex(i)
	}
	return ByName(ref)
}
