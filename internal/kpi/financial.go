package kpi

import (
	"github.com/shopspring/decimal"

	"github.com/savegress/clinicpulse/pkg/models"
)

// financial derives revenue and claims metrics. All currency math runs
// in integer cents through decimal; values only become display
// currency at the caller's boundary, never here.
func financial(records []models.EventRecord) map[string]models.MetricValue {
	var payments, refunds, invoices, claims, denied int

	// Exclusions are tracked per event type so a refund or invoice
	// missing its amount never distorts a payment metric.
	var paymentExcluded, refundExcluded, invoiceExcluded int

	received := decimal.Zero
	refunded := decimal.Zero
	invoiced := decimal.Zero

	for _, r := range records {
		switch r.EventType {
		case string(models.EventPaymentReceived):
			payments++
			if r.HasAmount {
				received = received.Add(decimal.NewFromInt(r.AmountCents))
			} else {
				paymentExcluded++
			}
		case string(models.EventPaymentRefunded):
			refunds++
			if r.HasAmount {
				refunded = refunded.Add(decimal.NewFromInt(r.AmountCents))
			} else {
				refundExcluded++
			}
		case string(models.EventInvoiceIssued):
			invoices++
			if r.HasAmount {
				invoiced = invoiced.Add(decimal.NewFromInt(r.AmountCents))
			} else {
				invoiceExcluded++
			}
		case string(models.EventClaimSubmitted):
			claims++
		case string(models.EventClaimDenied):
			denied++
		}
	}

	net := received.Sub(refunded)

	avgPayment := models.MetricValue{Excluded: paymentExcluded}
	if paid := payments - paymentExcluded; paid > 0 {
		v, _ := received.Div(decimal.NewFromInt(int64(paid))).Round(2).Float64()
		avgPayment.Value = &v
	}

	collectionRate := models.NotApplicable()
	if invoiced.IsPositive() {
		v, _ := received.Div(invoiced).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		collectionRate.Value = &v
	}

	return map[string]models.MetricValue{
		"payments_received":    count(payments),
		"refunds":              count(refunds),
		"invoices_issued":      count(invoices),
		"claims_submitted":     count(claims),
		"claims_denied":        count(denied),
		"total_revenue_cents":  decimalMetric(received, paymentExcluded),
		"total_refunded_cents": decimalMetric(refunded, refundExcluded),
		"net_revenue_cents":    decimalMetric(net, paymentExcluded+refundExcluded),
		"total_invoiced_cents": decimalMetric(invoiced, invoiceExcluded),
		"avg_payment_cents":    avgPayment,
		"claim_denial_rate":    rate(float64(denied), float64(claims)),
		"collection_rate":      collectionRate,
	}
}

func decimalMetric(d decimal.Decimal, excluded int) models.MetricValue {
	v, _ := d.Float64()
	return models.MetricValue{Value: &v, Excluded: excluded}
}
