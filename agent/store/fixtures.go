package store

import (
	"time"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

// Fixtures is the full record set a store can be seeded with.
type Fixtures struct {
	Orders   []contractx.Order
	Policies []contractx.Policy
	Requests []contractx.RefundRequest
	Tickets  []contractx.Ticket
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func at(y int, m time.Month, d, hh, mm int) time.Time {
	return time.Date(y, m, d, hh, mm, 0, 0, time.UTC)
}

func order(id, userID, sku, name string, qty int, price float64, date time.Time, city, country, status string) contractx.Order {
	return contractx.Order{
		ID:              id,
		UserID:          userID,
		SKU:             sku,
		ProductName:     name,
		Quantity:        qty,
		UnitPrice:       price,
		Currency:        "USD",
		OrderDate:       date,
		ShippingAddress: contractx.Address{City: city, Country: country},
		Status:          status,
	}
}

// DemoFixtures returns the seven-customer demo data set.
func DemoFixtures() Fixtures {
	euUntil := day(2024, time.July, 31)

	return Fixtures{
		Orders: []contractx.Order{
			order("order_001", "user_001", "ELEC_TOOTHBRUSH_001", "Electric Toothbrush Pro", 1, 89.99, day(2025, time.August, 1), "New York", "US", "delivered"),
			order("order_002", "user_001", "ELEC_EARBUDS_001", "Wireless Earbuds", 1, 129.99, day(2024, time.August, 5), "New York", "US", "delivered"),
			order("order_003", "user_002", "ELEC_WASHER_001", "Smart Washing Machine", 1, 899.99, day(2024, time.July, 15), "Los Angeles", "US", "returned"),
			order("order_004", "user_002", "ELEC_DRILL_001", "Cordless Drill Set", 1, 199.99, day(2024, time.August, 10), "Los Angeles", "US", "returned"),
			order("order_005", "user_002", "ELEC_DRYER_002", "Smart Dryer", 1, 200.00, day(2024, time.September, 10), "London", "UK", "returned"),
			order("order_006", "user_002", "ELEC_TABLET_001", "10-inch Android Tablet", 1, 299.99, day(2024, time.October, 5), "Los Angeles", "US", "delivered"),
			order("order_007", "user_003", "ELEC_LAPTOP_001", "Gaming Laptop Pro", 1, 1299.99, day(2024, time.June, 20), "Chicago", "US", "delivered"),
			order("order_008", "user_003", "ELEC_MOUSE_001", "Wireless Gaming Mouse", 2, 79.99, day(2024, time.July, 5), "Chicago", "US", "delivered"),
			order("order_009", "user_003", "ELEC_KEYBOARD_001", "Mechanical Keyboard RGB", 1, 149.99, day(2024, time.August, 15), "Chicago", "US", "delivered"),
			order("order_010", "user_004", "ELEC_VACUUM_001", "Robot Vacuum Cleaner", 1, 399.99, day(2024, time.May, 10), "Miami", "US", "delivered"),
			order("order_011", "user_004", "ELEC_AIRPURIFIER_001", "Smart Air Purifier", 1, 299.99, day(2024, time.June, 25), "Miami", "US", "delivered"),
			order("order_012", "user_004", "ELEC_SMARTWATCH_001", "Fitness Smartwatch", 1, 249.99, day(2024, time.September, 1), "Miami", "US", "delivered"),
			order("order_013", "user_005", "ELEC_COFFEEMAKER_001", "Smart Coffee Maker", 1, 199.99, day(2024, time.April, 15), "Seattle", "US", "delivered"),
			order("order_014", "user_005", "ELEC_BLENDER_001", "High-Speed Blender", 1, 179.99, day(2024, time.May, 30), "Seattle", "US", "delivered"),
			order("order_015", "user_005", "ELEC_TOASTER_001", "4-Slice Toaster Oven", 1, 89.99, day(2024, time.July, 20), "Seattle", "US", "delivered"),
			order("order_016", "user_006", "ELEC_TV_001", "55-inch Smart TV", 1, 799.99, day(2024, time.March, 10), "Austin", "US", "delivered"),
			order("order_017", "user_006", "ELEC_SPEAKER_001", "Bluetooth Speaker System", 1, 199.99, day(2024, time.April, 5), "Austin", "US", "delivered"),
			order("order_018", "user_006", "ELEC_HEADPHONES_001", "Noise-Canceling Headphones", 1, 349.99, day(2024, time.August, 25), "Austin", "US", "delivered"),
			order("order_019", "user_006", "ELEC_GAMECONSOLE_001", "Gaming Console Pro", 1, 499.99, day(2024, time.September, 15), "Austin", "US", "delivered"),
			order("order_020", "user_007", "HALL_COSTUME_001", "Halloween Costume Dracula", 1, 89.99, day(2025, time.September, 14), "Portland", "US", "in-transit"),
		},
		Policies: []contractx.Policy{
			{
				ID:            "policy_eu_current_001",
				Region:        contractx.RegionEU,
				Version:       "v24.1",
				EffectiveFrom: day(2024, time.August, 1),
				Clauses:       []string{"refund_window", "category_electronics", "region_scope"},
				FullText: "EU Electronics Return Policy v24.1: Customers in the European Union may return electronics within 14 days of purchase. " +
					"This applies to all electronic devices excluding custom-built items. Refunds will be processed in the original currency.",
				RefundWindowDays: 14,
				Exclusions:       []string{"custom_built"},
			},
			{
				ID:            "policy_us_current_001",
				Region:        contractx.RegionUS,
				Version:       "v24.1",
				EffectiveFrom: day(2024, time.August, 1),
				Clauses:       []string{"refund_window", "category_electronics", "region_scope"},
				FullText: "US Electronics Return Policy v24.1: Customers in the United States may return electronics within 30 days of purchase. " +
					"This applies to all electronic devices. Refunds will be processed in USD.",
				RefundWindowDays: 30,
				Exclusions:       []string{},
			},
			{
				ID:               "policy_eu_previous_001",
				Region:           contractx.RegionEU,
				Version:          "v23.2",
				EffectiveFrom:    day(2020, time.January, 1),
				EffectiveUntil:   &euUntil,
				Clauses:          []string{"refund_window", "category_electronics"},
				FullText:         "EU Electronics Return Policy v23.2: Customers may return electronics within 10 days. Previous policy with shorter window.",
				RefundWindowDays: 10,
				Exclusions:       []string{"custom_built", "opened_software"},
			},
		},
		Requests: []contractx.RefundRequest{
			{
				ID:              "refund_002",
				UserID:          "user_002",
				SKU:             "ELEC_DRILL_001",
				ProductName:     "Cordless Drill Set",
				Amount:          199.99,
				Currency:        "USD",
				Status:          "paid",
				FiledDate:       at(2024, time.August, 12, 9, 15),
				PurchaseDate:    day(2024, time.August, 10),
				Reason:          "defective_product",
				Description:     "Drill stopped working after 2 days, battery won't hold charge",
				OrderID:         "order_004",
				RefundMethod:    "original_payment",
				Category:        "electronics",
				Subcategory:     "tools",
				WarrantyCovered: true,
				CreatedAt:       at(2024, time.August, 12, 9, 15),
				UpdatedAt:       at(2024, time.August, 18, 16, 30),
			},
			{
				ID:           "refund_003",
				UserID:       "user_002",
				SKU:          "ELEC_WASHER_001",
				ProductName:  "Smart Washing Machine",
				Amount:       899.99,
				Currency:     "USD",
				Status:       "paid",
				FiledDate:    at(2024, time.July, 20, 14, 30),
				PurchaseDate: day(2024, time.July, 15),
				Reason:       "size_issue",
				Description:  "Washing machine too large for laundry room doorway",
				OrderID:      "order_003",
				RefundMethod: "original_payment",
				Category:     "appliances",
				Subcategory:  "washing_machine",
				CreatedAt:    at(2024, time.July, 20, 14, 30),
				UpdatedAt:    at(2024, time.July, 28, 11, 45),
			},
			{
				ID:           "refund_004",
				UserID:       "user_002",
				SKU:          "ELEC_DRYER_002",
				ProductName:  "Smart Dryer",
				Amount:       200.00,
				Currency:     "USD",
				Status:       "paid",
				FiledDate:    at(2024, time.September, 15, 10, 20),
				PurchaseDate: day(2024, time.September, 10),
				Reason:       "changed_mind",
				Description:  "Customer changed mind about purchase, item unused in original packaging",
				OrderID:      "order_005",
				RefundMethod: "original_payment",
				Category:     "appliances",
				Subcategory:  "dryer",
				CreatedAt:    at(2024, time.September, 15, 10, 20),
				UpdatedAt:    at(2024, time.September, 25, 14, 10),
			},
		},
		Tickets: []contractx.Ticket{
			{
				ID:                "ticket_001",
				TicketNumber:      "TKT-2024-001",
				UserID:            "user_002",
				Title:             "Defective Drill Return Request",
				Description:       "Customer is requesting a refund for a cordless drill that stopped working after 2 days.",
				Status:            "resolved",
				Priority:          "high",
				Assignee:          "employee_001",
				Channel:           "email",
				CustomerSentiment: contractx.SentimentNegative,
				Category:          "refund_request",
				OrderID:           "order_004",
				Tags:              []string{"electronics", "refund", "defective", "tools", "urgent"},
				CreatedDate:       at(2024, time.August, 12, 9, 15),
				UpdatedDate:       at(2024, time.August, 18, 16, 30),
			},
			{
				ID:                "ticket_002",
				TicketNumber:      "TKT-2024-002",
				UserID:            "user_002",
				Title:             "Washing Machine Return Request - Size Issue",
				Description:       "Customer is requesting a refund for a smart washing machine that is too large for their laundry room.",
				Status:            "resolved",
				Priority:          "medium",
				Assignee:          "employee_003",
				Channel:           "phone",
				CustomerSentiment: contractx.SentimentNeutral,
				Category:          "refund_request",
				OrderID:           "order_003",
				Tags:              []string{"appliances", "refund", "size", "washing_machine", "return"},
				CreatedDate:       at(2024, time.July, 20, 14, 30),
				UpdatedDate:       at(2024, time.July, 28, 11, 45),
			},
			{
				ID:                "ticket_003",
				TicketNumber:      "TKT-2024-003",
				UserID:            "user_002",
				Title:             "Dryer Return Request - Changed Mind",
				Description:       "Customer is requesting a refund for a smart dryer because they changed their mind about the purchase.",
				Status:            "resolved",
				Priority:          "low",
				Assignee:          "employee_004",
				Channel:           "email",
				CustomerSentiment: contractx.SentimentNeutral,
				Category:          "refund_request",
				OrderID:           "order_005",
				Tags:              []string{"appliances", "refund", "dryer", "return", "unused"},
				CreatedDate:       at(2024, time.September, 15, 10, 20),
				UpdatedDate:       at(2024, time.September, 25, 14, 10),
			},
		},
	}
}
