package tool

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	contractx "github.com/tanpawarit/ops-desk/agent/contract"
)

const commentTimeLayout = "2006-01-02 15:04:05"

var refundStatusSentences = map[string]string{
	"investigation":      "Your refund request is currently under investigation by our team.",
	"refund in progress": "Your refund is being processed and will be completed soon.",
	"paid":               "Your refund has been successfully processed and paid.",
	"closed":             "This refund request has been closed.",
	"cancelled":          "This refund request has been cancelled.",
}

var orderStatusSentences = map[string]string{
	"delivered":  "Your order has been successfully delivered and is ready for use.",
	"shipped":    "Your order has been shipped and is on its way to you.",
	"processing": "Your order is currently being processed and prepared for shipment.",
	"returned":   "This order has been returned and refunded.",
	"cancelled":  "This order has been cancelled.",
	"pending":    "Your order is pending confirmation.",
}

// FindExistingTicket returns the user's first active ticket, else any ticket of the user.
func FindExistingTicket(tickets []contractx.Ticket, userID string) *contractx.Ticket {
	for i := range tickets {
		if tickets[i].UserID == userID && tickets[i].IsActive() {
			return &tickets[i]
		}
	}
	for i := range tickets {
		if tickets[i].UserID == userID {
			return &tickets[i]
		}
	}
	return nil
}

func (c *Catalog) createRefundRequest(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, CreateRefundRequest); err != nil {
		return nil, err
	}
	if rate := in.Toggles.RefundAPIErrorRate; rate > 0 && c.float() < rate {
		return nil, fmt.Errorf("%w: refund api returned a synthetic error", contractx.ErrToolFailed)
	}

	amount := 0.0
	currency := "USD"
	if latest := in.Records.LatestRequest(); latest != nil {
		amount = latest.Amount
		if latest.Currency != "" {
			currency = latest.Currency
		}
	}

	return map[string]any{
		"status":            http.StatusCreated,
		"refund_request_id": fmt.Sprintf("RR_%d", c.intRange(10000, 99999)),
		"user_id":           in.UserID,
		"amount":            amount,
		"currency":          currency,
		"description":       truncate(in.Query, 200),
		"refund_status":     "investigation",
		"status_message":    "Refund request created",
	}, nil
}

func (c *Catalog) createTicket(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, CreateTicket); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":             http.StatusCreated,
		"ticket_id":          c.ticketID(),
		"user_id":            in.UserID,
		"title":              "Customer Request",
		"description":        truncate(in.Query, 280),
		"customer_sentiment": string(in.Sentiment),
		"comments":           c.comment("Ops desk creating ticket"),
		"status_message":     "Ticket created",
	}, nil
}

func (c *Catalog) updateTicket(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, UpdateTicket); err != nil {
		return nil, err
	}
	ticketID := c.existingTicketID(in)
	return map[string]any{
		"status":             http.StatusOK,
		"ticket_id":          ticketID,
		"customer_sentiment": string(in.Sentiment),
		"comments":           c.comment("Ops desk updating ticket"),
		"status_message":     "Ticket updated",
	}, nil
}

func (c *Catalog) escalateTicket(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, EscalateTicket); err != nil {
		return nil, err
	}
	return map[string]any{
		"status":             http.StatusOK,
		"ticket_id":          c.existingTicketID(in),
		"escalation_level":   "tier2",
		"assigned_agent":     fmt.Sprintf("agent_%d", c.intRange(100, 999)),
		"customer_sentiment": string(in.Sentiment),
		"escalation_reason":  fmt.Sprintf("Negative sentiment detected: %s", truncate(in.Query, 100)),
		"status_message":     "Ticket escalated to tier 2 support",
	}, nil
}

func (c *Catalog) explainRefundState(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, ExplainRefundState); err != nil {
		return nil, err
	}

	var explanation string
	latest := in.Records.LatestRequest()
	if latest == nil {
		explanation = fmt.Sprintf("Based on your inquiry '%s...', no refund requests found for this user.", truncate(in.Query, 50))
	} else {
		currency := latest.Currency
		if currency == "" {
			currency = "USD"
		}
		explanation = fmt.Sprintf("Regarding your inquiry: %s... Refund Request Status: %s. Amount: %s %.2f.",
			truncate(in.Query, 100), describe(refundStatusSentences, latest.Status), currency, latest.Amount)
	}

	return map[string]any{
		"status":         http.StatusOK,
		"explanation":    explanation,
		"status_message": "Refund state explained",
	}, nil
}

func (c *Catalog) explainOrderState(ctx context.Context, in Input) (map[string]any, error) {
	if err := c.simulate(ctx, ExplainOrderState); err != nil {
		return nil, err
	}

	resp := map[string]any{
		"status":         http.StatusOK,
		"status_message": "Order state explained",
	}

	latest := in.Records.LatestOrder()
	if latest == nil {
		resp["explanation"] = fmt.Sprintf("Based on your inquiry '%s...', no orders found for this user.", truncate(in.Query, 50))
		return resp, nil
	}

	status := latest.Status
	fabricated, isFabricated := in.Toggles.FabricatedStatus(in.UserID)
	if isFabricated {
		status = fabricated
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Regarding your inquiry: %s... ", truncate(in.Query, 100))
	fmt.Fprintf(&b, "Order Status: %s. ", describe(orderStatusSentences, status))
	fmt.Fprintf(&b, "Product: %s. ", latest.ProductName)
	fmt.Fprintf(&b, "Order Date: %s.", latest.OrderDate.Format("2006-01-02"))
	if isFabricated {
		fmt.Fprintf(&b, " [WARNING: reported status may be fabricated - reported: %s, recorded: %s]", fabricated, latest.Status)
		resp["fabricated_status"] = true
	}
	if n := len(in.Records.Orders); n > 1 {
		fmt.Fprintf(&b, " You have %d total orders in your account.", n)
	}

	resp["order_status"] = status
	resp["explanation"] = b.String()
	return resp, nil
}

func (c *Catalog) existingTicketID(in Input) string {
	if t := FindExistingTicket(in.Records.Tickets, in.UserID); t != nil && t.ID != "" {
		return t.ID
	}
	return c.ticketID()
}

func (c *Catalog) ticketID() string {
	return fmt.Sprintf("TKT_%d", c.intRange(10000, 99999))
}

func (c *Catalog) comment(text string) map[string]any {
	return map[string]any{c.now().UTC().Format(commentTimeLayout): text}
}

func describe(table map[string]string, status string) string {
	if sentence, ok := table[status]; ok {
		return sentence
	}
	return "Status: " + status
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
