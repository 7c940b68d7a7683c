package services

import (
	"fmt"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/currency"

	domain "github.com/orderdesk/adminsearch/internal/domain"
)

const (
	displayDateLayout = "Jan 2, 2006"
	machineDateLayout = "2006-01-02T15:04:05Z07:00"
)

// OrderFormatter is the single construction path for OrderSummary. No other
// code builds that shape, so AJAX responses, the debug panel, and the
// self-test all see identical fields.
type OrderFormatter struct {
	policy       *bluemonday.Policy
	adminBaseURL string
}

// NewOrderFormatter builds the formatter. Display strings pass through the
// strict sanitiser before entering any result payload.
func NewOrderFormatter(adminBaseURL string) *OrderFormatter {
	return &OrderFormatter{
		policy:       bluemonday.StrictPolicy(),
		adminBaseURL: strings.TrimRight(adminBaseURL, "/"),
	}
}

// Summary renders one order.
func (f *OrderFormatter) Summary(order domain.Order) OrderSummary {
	number := order.Number
	if number == "" {
		number = fmt.Sprintf("%d", order.ID)
	}

	name := strings.TrimSpace(order.BillingFirstName + " " + order.BillingLastName)
	if name == "" {
		name = "Guest"
	}

	summary := OrderSummary{
		ID:           order.ID,
		Number:       f.escape(number),
		Status:       string(order.Status),
		StatusLabel:  order.Status.Label(),
		TotalCents:   order.TotalCents,
		TotalDisplay: formatMoney(order.TotalCents, order.Currency),
		Currency:     f.escape(order.Currency),
		Customer: OrderCustomer{
			Name:  f.escape(name),
			Email: f.escape(order.BillingEmail),
		},
		ViewURL: f.OrderViewURL(order.ID),
	}
	if !order.CreatedAt.IsZero() {
		created := order.CreatedAt.UTC()
		summary.DateCreated = created.Format(machineDateLayout)
		summary.DateDisplay = created.Format(displayDateLayout)
	}
	return summary
}

// OrderViewURL is the canonical admin URL for one order, used both in
// summaries and as the auto-redirect target.
func (f *OrderFormatter) OrderViewURL(orderID int64) string {
	return fmt.Sprintf("%s/orders/%d", f.adminBaseURL, orderID)
}

// CustomerEditURL is the canonical admin URL for one customer.
func (f *OrderFormatter) CustomerEditURL(customerID int64) string {
	return fmt.Sprintf("%s/customers/%d", f.adminBaseURL, customerID)
}

// CouponEditURL is the canonical admin URL for one coupon.
func (f *OrderFormatter) CouponEditURL(couponID int64) string {
	return fmt.Sprintf("%s/coupons/%d", f.adminBaseURL, couponID)
}

func (f *OrderFormatter) escape(s string) string {
	if f == nil || f.policy == nil {
		return s
	}
	return f.policy.Sanitize(s)
}

// formatCouponAmount renders a coupon discount: percentage types show a
// percent sign, everything else shows a plain decimal amount.
func formatCouponAmount(amount float64, discountType string) string {
	if strings.Contains(strings.ToLower(discountType), "percent") {
		return fmt.Sprintf("%g%%", amount)
	}
	return fmt.Sprintf("%.2f", amount)
}

// formatMoney renders a cent amount with its currency symbol, falling back to
// a plain "12.34 XYZ" rendering for unknown ISO codes.
func formatMoney(cents int64, code string) string {
	amount := float64(cents) / 100
	unit, err := currency.ParseISO(strings.TrimSpace(code))
	if err != nil {
		if code == "" {
			return fmt.Sprintf("%.2f", amount)
		}
		return fmt.Sprintf("%.2f %s", amount, strings.ToUpper(code))
	}
	return fmt.Sprintf("%v", currency.Symbol(unit.Amount(amount)))
}
