package engine

import (
	"fmt"
	"strings"

	"resto-vision/internal/domain/vision"
)

// zoneObservations holds the detections already filtered to one zone by the
// geometry evaluator.
type zoneObservations struct {
	items       []vision.Detection
	personCount int
	hands       []vision.Point
	faces       []vision.ResolvedFace
	stockItems  []vision.Detection
}

func countItems(items []vision.Detection) map[string]int {
	counts := make(map[string]int)
	for _, item := range items {
		counts[item.Name]++
	}
	return counts
}

func customerBreakdown(faces []vision.ResolvedFace) vision.CustomerInfo {
	var info vision.CustomerInfo
	for _, face := range faces {
		switch {
		case face.IsStaff:
			info.StaffCount++
		case face.CustomerType == vision.CustomerRegular:
			info.RegularCount++
		case face.CustomerType == vision.CustomerNew:
			info.NewCount++
		}
	}
	info.TotalCustomers = info.RegularCount + info.NewCount
	return info
}

// evalTable runs the table zone rules: billing per item type present, then
// TERISI / KOTOR / BERSIH with a tick-based dirty timer. The timer counts
// analysis ticks, not seconds.
func (e *Engine) evalTable(zoneName string, prev vision.ZoneState, obs zoneObservations) (vision.TableState, []vision.BillingEvent, []vision.SecurityAlert) {
	itemCounts := countItems(obs.items)

	var billing []vision.BillingEvent
	for name, qty := range itemCounts {
		billing = append(billing, vision.BillingEvent{ZoneName: zoneName, ItemName: name, Qty: qty})
	}

	prevTimer := 0
	if prevTable, ok := prev.(vision.TableState); ok {
		prevTimer = prevTable.Timer
	}

	var state vision.TableState
	var alerts []vision.SecurityAlert
	switch {
	case obs.personCount > 0:
		state = vision.TableState{
			Status:       vision.TableOccupied,
			Timer:        0,
			PersonCount:  obs.personCount,
			ItemCount:    len(itemCounts),
			Items:        itemCounts,
			CustomerInfo: customerBreakdown(obs.faces),
		}
	case len(itemCounts) > 0:
		timer := prevTimer + 1
		state = vision.TableState{
			Status:        vision.TableDirty,
			Timer:         timer,
			ItemCount:     len(itemCounts),
			Items:         itemCounts,
			NeedsCleaning: timer > e.cfg.DirtyTickThreshold,
		}
		if state.NeedsCleaning {
			alerts = append(alerts, vision.SecurityAlert{
				Type:     vision.AlertDirtyTable,
				Message:  fmt.Sprintf("%s perlu dibersihkan (Items: %d)", zoneName, len(itemCounts)),
				ZoneName: zoneName,
			})
		}
	default:
		state = vision.TableState{
			Status: vision.TableClean,
			Items:  map[string]int{},
		}
	}
	return state, billing, alerts
}

// evalQueue counts persons in a kasir/queue zone and raises a long_queue
// alert every tick the count exceeds the limit. Alert de-duplication is the
// persistence layer's job.
func (e *Engine) evalQueue(zoneName string, obs zoneObservations) (vision.QueueState, []vision.SecurityAlert) {
	state := vision.QueueState{
		PersonCount:  obs.personCount,
		CustomerInfo: customerBreakdown(obs.faces),
	}

	var alerts []vision.SecurityAlert
	if obs.personCount > e.cfg.QueueLimit {
		alerts = append(alerts, vision.SecurityAlert{
			Type:     vision.AlertLongQueue,
			Message:  fmt.Sprintf("Antrian %s Penuh (%d orang)", zoneName, obs.personCount),
			ZoneName: zoneName,
		})
	}
	return state, alerts
}

// evalGorengan computes stocked-item zone state. Specialized detections win;
// generic containers act as proxy stock otherwise. Stock counts flow out as
// billing events every tick so the billing pipeline doubles as a stock log.
func (e *Engine) evalGorengan(zoneName string, obs zoneObservations) (vision.GorenganState, []vision.BillingEvent, []vision.SecurityAlert) {
	stock := make(map[string]int)
	total := 0
	for _, item := range obs.stockItems {
		stock[item.Name]++
		total++
	}
	if total == 0 {
		for _, item := range obs.items {
			if e.proxyContainers[item.Name] {
				stock["wadah_"+item.Name]++
				total++
			}
		}
	}

	var billing []vision.BillingEvent
	for name, qty := range stock {
		billing = append(billing, vision.BillingEvent{
			ZoneName: zoneName,
			ItemName: "GORENGAN_" + strings.ToUpper(name),
			Qty:      qty,
		})
	}
	billing = append(billing, vision.BillingEvent{
		ZoneName: zoneName,
		ItemName: "GORENGAN_TOTAL_STOCK",
		Qty:      total,
	})

	if len(obs.hands) > 0 {
		return vision.GorenganState{Status: vision.GorenganBeingTaken}, billing, nil
	}

	var alerts []vision.SecurityAlert
	switch {
	case total == 0:
		alerts = append(alerts, vision.SecurityAlert{
			Type:     vision.AlertLowStock,
			Message:  fmt.Sprintf("Tempat Gorengan %s perlu diisi ulang (Stock: 0)", zoneName),
			ZoneName: zoneName,
		})
		return vision.GorenganState{Status: vision.GorenganEmpty}, billing, alerts
	case total < e.cfg.MinStockThreshold:
		alerts = append(alerts, vision.SecurityAlert{
			Type:     vision.AlertLowStock,
			Message:  fmt.Sprintf("Tempat Gorengan %s stock rendah (Stock: %d, Min: %d)", zoneName, total, e.cfg.MinStockThreshold),
			ZoneName: zoneName,
		})
	}
	return vision.GorenganState{Status: vision.GorenganStocked, Total: total, Detail: stock}, billing, alerts
}

// evalRestricted logs staff attendance per staff face and raises a single
// intruder alert when any non-staff face is present, however many there are.
func (e *Engine) evalRestricted(zoneName string, obs zoneObservations) (vision.RestrictedState, []vision.SecurityAlert) {
	var state vision.RestrictedState
	var alerts []vision.SecurityAlert
	for _, face := range obs.faces {
		if face.IsStaff {
			state.StaffCount++
			alerts = append(alerts, vision.SecurityAlert{
				Type:      vision.AlertStaffTracking,
				Message:   fmt.Sprintf("Staff %s di %s", face.Name, zoneName),
				ZoneName:  zoneName,
				StaffName: face.Name,
			})
		} else {
			state.NonStaffPresent = true
		}
	}
	if state.NonStaffPresent {
		alerts = append(alerts, vision.SecurityAlert{
			Type:     vision.AlertIntruder,
			Message:  fmt.Sprintf("ORANG ASING di %s!", zoneName),
			ZoneName: zoneName,
		})
	}
	return state, alerts
}
