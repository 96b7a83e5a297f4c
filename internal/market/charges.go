package market

import "nifty-paper/internal/models"

// Statutory charge rates for NSE derivative orders.
const (
	BrokeragePerOrder = 20.0    // Flat per executed order
	STTRate           = 0.0005  // 0.05% on sell notional
	ExchangeRate      = 0.0005  // 0.05% transaction charge
	GSTRate           = 0.18    // 18% on brokerage + exchange
	SEBIRatePerCrore  = 10.0    // Rs 10 per crore of notional
	StampDutyRate     = 0.00003 // 0.003% on buy notional
)

// ChargeBreakdown itemizes the statutory charges on an order.
type ChargeBreakdown struct {
	Brokerage float64 `json:"brokerage"`
	STT       float64 `json:"stt"`
	Exchange  float64 `json:"exchange"`
	GST       float64 `json:"gst"`
	SEBI      float64 `json:"sebi"`
	StampDuty float64 `json:"stamp_duty"`
	Total     float64 `json:"total"`
}

// Charges computes the statutory charge breakdown for an order of the given
// side and notional value. STT applies to sells only, stamp duty to buys only.
func Charges(side models.OrderSide, notional float64) ChargeBreakdown {
	b := ChargeBreakdown{
		Brokerage: BrokeragePerOrder,
		Exchange:  notional * ExchangeRate,
		SEBI:      notional / 10000000 * SEBIRatePerCrore,
	}
	if side == models.OrderSideSell {
		b.STT = notional * STTRate
	} else {
		b.StampDuty = notional * StampDutyRate
	}
	b.GST = (b.Brokerage + b.Exchange) * GSTRate
	b.Total = b.Brokerage + b.STT + b.Exchange + b.GST + b.SEBI + b.StampDuty
	return b
}

// TotalCharges is a convenience wrapper returning only the summed charges.
func TotalCharges(side models.OrderSide, notional float64) float64 {
	return Charges(side, notional).Total
}
