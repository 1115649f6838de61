package engine

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resto-vision/internal/domain/vision"
)

func zoneTestEngine() *Engine {
	return New(nil, nil, nil, nil, nil, DefaultConfig(), zerolog.Nop())
}

func bowls(n int) []vision.Detection {
	items := make([]vision.Detection, n)
	for i := range items {
		items[i] = vision.Detection{Name: "mangkok", Centroid: vision.Point{X: 10, Y: 10}}
	}
	return items
}

func alertTypes(alerts []vision.SecurityAlert) []vision.AlertType {
	types := make([]vision.AlertType, 0, len(alerts))
	for _, a := range alerts {
		types = append(types, a.Type)
	}
	return types
}

func TestTableDirtyProgression(t *testing.T) {
	e := zoneTestEngine()

	var prev vision.ZoneState = vision.TableState{Status: vision.TableClean, Timer: 0}
	obs := zoneObservations{items: bowls(2)}

	// First tick with abandoned tableware: dirty, timer 1, not yet flagged.
	state, billing, alerts := e.evalTable("Meja 1", prev, obs)
	assert.Equal(t, vision.TableDirty, state.Status)
	assert.Equal(t, 1, state.Timer)
	assert.False(t, state.NeedsCleaning)
	assert.Empty(t, alerts)
	require.Len(t, billing, 1)
	assert.Equal(t, vision.BillingEvent{ZoneName: "Meja 1", ItemName: "mangkok", Qty: 2}, billing[0])

	// Three more unchanged ticks: timer reaches 4 and the alert fires.
	for tick := 2; tick <= 4; tick++ {
		state, _, alerts = e.evalTable("Meja 1", state, obs)
		assert.Equal(t, tick, state.Timer)
	}
	assert.True(t, state.NeedsCleaning)
	require.Len(t, alerts, 1)
	assert.Equal(t, vision.AlertDirtyTable, alerts[0].Type)
	assert.Contains(t, alerts[0].Message, "Meja 1")
	assert.Contains(t, alerts[0].Message, "Items: 1")

	// Once flagged, feeding the state back keeps it flagged.
	state, _, alerts = e.evalTable("Meja 1", state, obs)
	assert.True(t, state.NeedsCleaning)
	assert.Len(t, alerts, 1)
}

func TestTableOccupiedResetsTimer(t *testing.T) {
	e := zoneTestEngine()

	prev := vision.TableState{Status: vision.TableDirty, Timer: 5, NeedsCleaning: true}
	obs := zoneObservations{
		items:       bowls(1),
		personCount: 2,
		faces: []vision.ResolvedFace{
			{CustomerType: vision.CustomerRegular},
			{CustomerType: vision.CustomerNew},
			{IsStaff: true, CustomerType: vision.CustomerStaff},
		},
	}

	state, billing, alerts := e.evalTable("Meja 2", prev, obs)
	assert.Equal(t, vision.TableOccupied, state.Status)
	assert.Equal(t, 0, state.Timer)
	assert.Equal(t, 2, state.PersonCount)
	assert.False(t, state.NeedsCleaning)
	assert.Empty(t, alerts)
	assert.Len(t, billing, 1, "items on an occupied table still bill")

	assert.Equal(t, 1, state.CustomerInfo.RegularCount)
	assert.Equal(t, 1, state.CustomerInfo.NewCount)
	assert.Equal(t, 1, state.CustomerInfo.StaffCount)
	assert.Equal(t, 2, state.CustomerInfo.TotalCustomers)
}

func TestTableCleanWhenEmpty(t *testing.T) {
	e := zoneTestEngine()

	prev := vision.TableState{Status: vision.TableDirty, Timer: 2}
	state, billing, alerts := e.evalTable("Meja 3", prev, zoneObservations{})
	assert.Equal(t, vision.TableClean, state.Status)
	assert.Equal(t, 0, state.Timer)
	assert.Zero(t, state.ItemCount)
	assert.Empty(t, billing)
	assert.Empty(t, alerts)
}

func TestTableEmptyPreviousState(t *testing.T) {
	e := zoneTestEngine()

	state, _, _ := e.evalTable("Meja 4", nil, zoneObservations{items: bowls(1)})
	assert.Equal(t, vision.TableDirty, state.Status)
	assert.Equal(t, 1, state.Timer)
}

func TestQueueAlertThreshold(t *testing.T) {
	e := zoneTestEngine()

	tests := []struct {
		persons   int
		wantAlert bool
	}{
		{0, false},
		{4, false},
		{5, true},
		{9, true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d persons", tt.persons), func(t *testing.T) {
			state, alerts := e.evalQueue("Kasir", zoneObservations{personCount: tt.persons})
			assert.Equal(t, tt.persons, state.PersonCount)
			if !tt.wantAlert {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, vision.AlertLongQueue, alerts[0].Type)
			assert.Contains(t, alerts[0].Message, fmt.Sprintf("%d orang", tt.persons))
		})
	}
}

func TestGorenganHandsBlockStatus(t *testing.T) {
	e := zoneTestEngine()

	obs := zoneObservations{
		hands:      []vision.Point{{X: 5, Y: 5}},
		stockItems: []vision.Detection{{Name: "bakwan"}, {Name: "bakwan"}},
	}
	state, billing, alerts := e.evalGorengan("Etalase", obs)
	assert.Equal(t, vision.GorenganBeingTaken, state.Status)
	assert.Empty(t, alerts)
	// Stock still flows to the billing log even while being picked up.
	assert.Len(t, billing, 2)
}

func TestGorenganStockBranches(t *testing.T) {
	e := zoneTestEngine()

	t.Run("empty", func(t *testing.T) {
		state, billing, alerts := e.evalGorengan("Etalase", zoneObservations{})
		assert.Equal(t, vision.GorenganEmpty, state.Status)
		require.Len(t, alerts, 1)
		assert.Equal(t, vision.AlertLowStock, alerts[0].Type)
		assert.Contains(t, alerts[0].Message, "Stock: 0")
		require.Len(t, billing, 1)
		assert.Equal(t, vision.BillingEvent{ZoneName: "Etalase", ItemName: "GORENGAN_TOTAL_STOCK", Qty: 0}, billing[0])
	})

	t.Run("below minimum", func(t *testing.T) {
		obs := zoneObservations{stockItems: []vision.Detection{{Name: "bakwan"}, {Name: "risol"}}}
		state, _, alerts := e.evalGorengan("Etalase", obs)
		assert.Equal(t, vision.GorenganStocked, state.Status)
		assert.Equal(t, 2, state.Total)
		require.Len(t, alerts, 1)
		assert.Contains(t, alerts[0].Message, "Stock: 2")
		assert.Contains(t, alerts[0].Message, "Min: 3")
	})

	t.Run("sufficient", func(t *testing.T) {
		obs := zoneObservations{stockItems: []vision.Detection{
			{Name: "bakwan"}, {Name: "bakwan"}, {Name: "tahu_goreng"},
		}}
		state, billing, alerts := e.evalGorengan("Etalase", obs)
		assert.Equal(t, vision.GorenganStocked, state.Status)
		assert.Equal(t, 3, state.Total)
		assert.Equal(t, map[string]int{"bakwan": 2, "tahu_goreng": 1}, state.Detail)
		assert.Empty(t, alerts)

		names := make(map[string]int)
		for _, b := range billing {
			names[b.ItemName] = b.Qty
		}
		assert.Equal(t, 2, names["GORENGAN_BAKWAN"])
		assert.Equal(t, 1, names["GORENGAN_TAHU_GORENG"])
		assert.Equal(t, 3, names["GORENGAN_TOTAL_STOCK"])
	})
}

func TestGorenganProxyFallback(t *testing.T) {
	e := zoneTestEngine()

	// No specialized detections: generic containers stand in for stock.
	obs := zoneObservations{items: []vision.Detection{
		{Name: "mangkok"}, {Name: "mangkok"}, {Name: "garpu"},
	}}
	state, billing, _ := e.evalGorengan("Etalase", obs)
	assert.Equal(t, 2, state.Total, "forks are not stock containers")
	assert.Equal(t, map[string]int{"wadah_mangkok": 2}, state.Detail)

	names := make(map[string]int)
	for _, b := range billing {
		names[b.ItemName] = b.Qty
	}
	assert.Equal(t, 2, names["GORENGAN_WADAH_MANGKOK"])
}

func TestRestrictedZoneAlerts(t *testing.T) {
	e := zoneTestEngine()

	t.Run("single intruder alert for many strangers", func(t *testing.T) {
		obs := zoneObservations{faces: []vision.ResolvedFace{
			{Name: "Budi", IsStaff: true},
			{Name: "Unknown"},
			{Name: "Unknown"},
			{Name: "Unknown"},
		}}
		state, alerts := e.evalRestricted("Dapur", obs)
		assert.True(t, state.NonStaffPresent)
		assert.Equal(t, 1, state.StaffCount)

		types := alertTypes(alerts)
		assert.Equal(t, []vision.AlertType{vision.AlertStaffTracking, vision.AlertIntruder}, types)
	})

	t.Run("staff only", func(t *testing.T) {
		obs := zoneObservations{faces: []vision.ResolvedFace{
			{Name: "Budi", IsStaff: true},
			{Name: "Siti", IsStaff: true},
		}}
		state, alerts := e.evalRestricted("Dapur", obs)
		assert.False(t, state.NonStaffPresent)
		assert.Equal(t, []vision.AlertType{vision.AlertStaffTracking, vision.AlertStaffTracking}, alertTypes(alerts))
		for _, a := range alerts {
			assert.Contains(t, a.Message, "Dapur")
		}
	})

	t.Run("empty zone", func(t *testing.T) {
		state, alerts := e.evalRestricted("Dapur", zoneObservations{})
		assert.Empty(t, alerts)
		assert.False(t, state.NonStaffPresent)
	})
}
