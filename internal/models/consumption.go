package models

type ConsumptionReason string

const (
	ConsumptionEvent          ConsumptionReason = "event_consumption"
	ConsumptionSampling       ConsumptionReason = "sampling"
	ConsumptionDamageWriteoff ConsumptionReason = "damage_writeoff"
	ConsumptionQualityControl ConsumptionReason = "quality_control"
	ConsumptionMarketing      ConsumptionReason = "marketing"
	ConsumptionInternalUse    ConsumptionReason = "internal_use"
)

func (r ConsumptionReason) Valid() bool {
	switch r {
	case ConsumptionEvent, ConsumptionSampling, ConsumptionDamageWriteoff,
		ConsumptionQualityControl, ConsumptionMarketing, ConsumptionInternalUse:
		return true
	}
	return false
}
