package tracker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiptwin/internal/events"
	"shiptwin/internal/geofence"
	"shiptwin/internal/model"
	"shiptwin/internal/store"
)

func f(v float64) *float64 { return &v }

// north returns a point m metres due north of (0,0).
func north(m float64) (lat, lon float64) {
	return m / 6371000 * 180 / math.Pi, 0
}

func record(shipmentID string, lat, lon float64) model.TelemetryRecord {
	return model.TelemetryRecord{
		ShipmentID: shipmentID,
		DeviceID:   "D-" + shipmentID,
		Timestamp:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Location:   &model.LocationIn{Latitude: f(lat), Longitude: f(lon)},
	}
}

// recorder collects every emitted event in order.
type recorder struct {
	mu  sync.Mutex
	evs []events.Event
}

func (r *recorder) handle(_ context.Context, e events.Event) error {
	r.mu.Lock()
	r.evs = append(r.evs, e)
	r.mu.Unlock()
	return nil
}

func (r *recorder) kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.evs))
	for _, e := range r.evs {
		out = append(out, e.Kind())
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.evs = nil
	r.mu.Unlock()
}

type fixture struct {
	e   *Engine
	rec *recorder
	now time.Time
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	fx := &fixture{rec: &recorder{}, now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time {
		fx.now = fx.now.Add(time.Second)
		return fx.now
	}
	fx.e = New(append([]Option{WithClock(clock)}, opts...)...)
	fx.e.Notifier().SubscribeAll(fx.rec.handle)
	return fx
}

func TestIngest_CreatesTwinAndEmits(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r := record("S1", 10, 20)
	r.Sensors = &model.Sensors{Temperature: f(21)}
	r.Battery = f(90)
	r.Signal = &model.Signal{Strength: -70, Network: "lte"}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	tw, ok := fx.e.GetDigitalTwin("S1")
	require.True(t, ok)
	require.Equal(t, "D-S1", tw.DeviceID)
	require.Equal(t, 1, tw.TelemetryCount)
	require.InDelta(t, 10, tw.CurrentLocation.Latitude, 0)
	require.Equal(t, r.Timestamp, tw.CurrentLocation.ObservedAt)
	require.Empty(t, tw.LocationHistory)
	require.InDelta(t, 21, *tw.LatestSensors.Temperature, 0)
	require.InDelta(t, 90, *tw.BatteryLevel, 0)
	require.Equal(t, "lte", tw.Signal.Network)
	require.Nil(t, tw.GeofenceStatus)
	require.Empty(t, tw.Alerts)

	require.Equal(t, []events.Kind{events.KindTwinUpdated}, fx.rec.kinds())
	upd := fx.rec.evs[0].(events.TwinUpdated)
	require.Equal(t, "S1", upd.ShipmentID)
	require.Equal(t, tw, upd.Twin)
}

func TestIngest_LastArrivalWins(t *testing.T) {
	fx := newFixture(t, WithHistorySize(3))
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		r := record("S1", float64(i), 0)
		// Claimed timestamps run backwards; arrival order still decides.
		r.Timestamp = base.Add(-time.Duration(i) * time.Minute)
		require.NoError(t, fx.e.IngestTelemetry(ctx, r))
	}

	tw, _ := fx.e.GetDigitalTwin("S1")
	require.InDelta(t, 4, tw.CurrentLocation.Latitude, 0)
	require.Equal(t, 5, tw.TelemetryCount)
	require.Len(t, tw.LocationHistory, 3)
	for i, l := range tw.LocationHistory {
		require.InDelta(t, float64(i+1), l.Latitude, 0)
	}
}

func TestIngest_MergesPartialSensors(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r := record("S1", 0, 0)
	r.Sensors = &model.Sensors{Temperature: f(5), Humidity: f(40)}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	r = record("S1", 0, 0)
	r.Sensors = &model.Sensors{Humidity: f(45), Tilt: f(10)}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	tw, _ := fx.e.GetDigitalTwin("S1")
	require.InDelta(t, 5, *tw.LatestSensors.Temperature, 0)
	require.InDelta(t, 45, *tw.LatestSensors.Humidity, 0)
	require.InDelta(t, 10, *tw.LatestSensors.Tilt, 0)
	require.Nil(t, tw.LatestSensors.Shock)
}

func TestIngest_RepeatedBreachRefreshes(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	for _, temp := range []float64{70, 75} {
		r := record("S1", 0, 0)
		r.Sensors = &model.Sensors{Temperature: f(temp)}
		require.NoError(t, fx.e.IngestTelemetry(ctx, r))
	}

	active, err := fx.e.GetActiveAlerts("S1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, model.AlertTemperature, active[0].Type)
	require.InDelta(t, 75, active[0].Value, 0)
	require.Equal(t, 2, active[0].Occurrences)

	// Only the first breach is announced.
	require.Equal(t, []events.Kind{
		events.KindAlertRaised, events.KindTwinUpdated,
		events.KindTwinUpdated,
	}, fx.rec.kinds())
}

func TestBatteryScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r := record("S1", 0, 0)
	r.Battery = f(15)
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	active, err := fx.e.GetActiveAlerts("S1")
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, model.AlertBattery, active[0].Type)
	require.Equal(t, "below 20%", active[0].Threshold)

	raised := fx.rec.evs[0].(events.AlertRaised)
	require.Equal(t, "D-S1", raised.DeviceID)
	require.Equal(t, active[0].ID, raised.Alert.ID)

	r = record("S1", 0, 0)
	r.Battery = f(50)
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	active, _ = fx.e.GetActiveAlerts("S1")
	require.Len(t, active, 1, "battery alerts do not clear on their own")

	fx.rec.reset()
	require.NoError(t, fx.e.ResolveAlert(ctx, "S1", active[0].ID))
	active, _ = fx.e.GetActiveAlerts("S1")
	require.Empty(t, active)
	require.Equal(t, []events.Kind{events.KindAlertResolved}, fx.rec.kinds())

	resolved := fx.rec.evs[0].(events.AlertResolved)
	require.Equal(t, model.ResolvedManual, resolved.Alert.ResolvedBy)
}

func TestGeofenceScenario(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	gf := model.Geofence{Center: model.Point{}, Radius: 1000}
	require.NoError(t, fx.e.SetGeofence(ctx, "S2", gf))
	require.Equal(t, []events.Kind{events.KindGeofenceSet}, fx.rec.kinds())

	// Inside.
	lat, lon := north(500)
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S2", lat, lon)))
	tw, _ := fx.e.GetDigitalTwin("S2")
	require.True(t, tw.GeofenceStatus.Inside)
	require.Empty(t, tw.Alerts)

	// Outside.
	fx.rec.reset()
	lat, lon = north(2000)
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S2", lat, lon)))
	active, _ := fx.e.GetActiveAlerts("S2")
	require.Len(t, active, 1)
	require.Equal(t, model.AlertGeofence, active[0].Type)
	require.InDelta(t, 2000, active[0].Value, 1)
	require.Equal(t, []events.Kind{events.KindAlertRaised, events.KindTwinUpdated}, fx.rec.kinds())

	// Back inside: resolved without an external call.
	fx.rec.reset()
	lat, lon = north(100)
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S2", lat, lon)))
	active, _ = fx.e.GetActiveAlerts("S2")
	require.Empty(t, active)
	require.Equal(t, []events.Kind{events.KindAlertResolved, events.KindTwinUpdated}, fx.rec.kinds())

	res := fx.rec.evs[0].(events.AlertResolved)
	require.Equal(t, model.ResolvedAuto, res.Alert.ResolvedBy)
	require.NotNil(t, res.Alert.ResolvedAt)

	tw, _ = fx.e.GetDigitalTwin("S2")
	require.Len(t, tw.Alerts, 1, "resolved alerts stay in the twin")
	require.True(t, tw.Alerts[0].Resolved)
}

func TestGeofence_BoundaryIsInside(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	lat, lon := north(1000)
	radius := geofence.Distance(model.Point{Latitude: lat, Longitude: lon}, model.Point{})
	require.NoError(t, fx.e.SetGeofence(ctx, "S1", model.Geofence{Radius: radius}))
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", lat, lon)))

	tw, _ := fx.e.GetDigitalTwin("S1")
	require.True(t, tw.GeofenceStatus.Inside)
	require.Empty(t, tw.Alerts)
}

func TestGeofence_AllowedZones(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	zoneLat, _ := north(10000)
	gf := model.Geofence{
		Radius:       1000,
		AllowedZones: []model.Zone{{Center: model.Point{Latitude: zoneLat}, Radius: 500}},
	}
	require.NoError(t, fx.e.SetGeofence(ctx, "S1", gf))

	lat, lon := north(10200)
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", lat, lon)))

	tw, _ := fx.e.GetDigitalTwin("S1")
	require.True(t, tw.GeofenceStatus.Inside)
	require.Equal(t, 1, tw.GeofenceStatus.Zone)
	require.Empty(t, tw.Alerts)
}

func TestSetGeofence_CreatesTwinAndClearsStatus(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.e.SetGeofence(ctx, "S1", model.Geofence{Radius: 1000}))
	tw, ok := fx.e.GetDigitalTwin("S1")
	require.True(t, ok)
	require.NotNil(t, tw.Geofence)
	require.Nil(t, tw.CurrentLocation)

	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", 0, 0)))
	tw, _ = fx.e.GetDigitalTwin("S1")
	require.NotNil(t, tw.GeofenceStatus)

	require.NoError(t, fx.e.SetGeofence(ctx, "S1", model.Geofence{Radius: 50}))
	tw, _ = fx.e.GetDigitalTwin("S1")
	require.Nil(t, tw.GeofenceStatus)
	require.InDelta(t, 50, tw.Geofence.Radius, 0)

	set := fx.rec.evs[len(fx.rec.evs)-1].(events.GeofenceSet)
	require.InDelta(t, 50, set.Geofence.Radius, 0)
}

func TestSetGeofence_Invalid(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	cases := map[string]model.Geofence{
		"zero radius":     {Radius: 0},
		"bad center":      {Center: model.Point{Latitude: 91}, Radius: 10},
		"bad zone radius": {Radius: 10, AllowedZones: []model.Zone{{Radius: -1}}},
		"infinite radius": {Radius: math.Inf(1)},
		"infinite zone":   {Radius: 10, AllowedZones: []model.Zone{{Radius: math.Inf(1)}}},
	}
	for name, gf := range cases {
		err := fx.e.SetGeofence(ctx, "S1", gf)
		require.True(t, IsValidation(err), name)
	}
	require.True(t, IsValidation(fx.e.SetGeofence(ctx, " ", model.Geofence{Radius: 1})))

	_, ok := fx.e.GetDigitalTwin("S1")
	require.False(t, ok)
	require.Empty(t, fx.rec.kinds())
}

func TestResolveAlert_Idempotent(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	r := record("S1", 0, 0)
	r.Sensors = &model.Sensors{Shock: f(12)}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))
	active, _ := fx.e.GetActiveAlerts("S1")
	require.Len(t, active, 1)
	id := active[0].ID

	require.NoError(t, fx.e.ResolveAlert(ctx, "S1", id))
	tw, _ := fx.e.GetDigitalTwin("S1")
	first := *tw.Alerts[0].ResolvedAt

	fx.rec.reset()
	require.NoError(t, fx.e.ResolveAlert(ctx, "S1", id))
	tw, _ = fx.e.GetDigitalTwin("S1")
	require.Equal(t, first, *tw.Alerts[0].ResolvedAt)
	require.Empty(t, fx.rec.kinds(), "no event for a no-op resolve")
}

func TestResolveAlert_NotFound(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	err := fx.e.ResolveAlert(ctx, "nope", "a1")
	require.True(t, IsNotFound(err))
	require.ErrorIs(t, err, store.ErrNotFound)
	require.Contains(t, err.Error(), "shipment")

	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", 0, 0)))
	err = fx.e.ResolveAlert(ctx, "S1", "missing")
	require.True(t, IsNotFound(err))
	require.Contains(t, err.Error(), `alert "missing"`)

	_, ok := fx.e.GetDigitalTwin("nope")
	require.False(t, ok, "resolve never creates twins")
}

func TestGetActiveAlerts(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.e.GetActiveAlerts("S1")
	require.True(t, IsNotFound(err))

	r := record("S1", 0, 0)
	r.Sensors = &model.Sensors{Humidity: f(90)}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))
	r = record("S1", 0, 0)
	r.Sensors = &model.Sensors{Vibration: f(6)}
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))
	r = record("S1", 0, 0)
	r.Battery = f(5)
	require.NoError(t, fx.e.IngestTelemetry(ctx, r))

	active, err := fx.e.GetActiveAlerts("S1")
	require.NoError(t, err)
	require.Len(t, active, 3)
	require.Equal(t, model.AlertHumidity, active[0].Type)
	require.Equal(t, model.AlertVibration, active[1].Type)
	require.Equal(t, model.AlertBattery, active[2].Type)
	require.True(t, active[0].CreatedAt.Before(active[1].CreatedAt))

	require.NoError(t, fx.e.ResolveAlert(ctx, "S1", active[1].ID))
	active, _ = fx.e.GetActiveAlerts("S1")
	require.Len(t, active, 2)
	require.Equal(t, model.AlertHumidity, active[0].Type)
	require.Equal(t, model.AlertBattery, active[1].Type)
}

func TestIngest_ValidationLeavesStateUntouched(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", 1, 1)))
	before, _ := fx.e.GetDigitalTwin("S1")
	fx.rec.reset()

	bad := map[string]func(r *model.TelemetryRecord){
		"missing shipment": func(r *model.TelemetryRecord) { r.ShipmentID = "" },
		"missing device":   func(r *model.TelemetryRecord) { r.DeviceID = "" },
		"blank shipment":   func(r *model.TelemetryRecord) { r.ShipmentID = "  " },
		"blank device":     func(r *model.TelemetryRecord) { r.DeviceID = "\t" },
		"missing time":     func(r *model.TelemetryRecord) { r.Timestamp = time.Time{} },
		"missing location": func(r *model.TelemetryRecord) { r.Location = nil },
		"missing lat":      func(r *model.TelemetryRecord) { r.Location.Latitude = nil },
		"lat range":        func(r *model.TelemetryRecord) { r.Location.Latitude = f(91) },
		"lon range":        func(r *model.TelemetryRecord) { r.Location.Longitude = f(-181) },
		"accuracy":         func(r *model.TelemetryRecord) { r.Location.Accuracy = f(0) },
		"humidity":         func(r *model.TelemetryRecord) { r.Sensors = &model.Sensors{Humidity: f(101)} },
		"vibration":        func(r *model.TelemetryRecord) { r.Sensors = &model.Sensors{Vibration: f(-1)} },
		"tilt":             func(r *model.TelemetryRecord) { r.Sensors = &model.Sensors{Tilt: f(361)} },
		"nan temperature":  func(r *model.TelemetryRecord) { r.Sensors = &model.Sensors{Temperature: f(math.NaN())} },
		"battery":          func(r *model.TelemetryRecord) { r.Battery = f(101) },
		"signal":           func(r *model.TelemetryRecord) { r.Signal = &model.Signal{Strength: 5} },
	}
	for name, mutate := range bad {
		r := record("S1", 50, 50)
		r.Sensors = &model.Sensors{Temperature: f(99)}
		mutate(&r)
		err := fx.e.IngestTelemetry(ctx, r)
		require.True(t, IsValidation(err), name)
	}

	after, _ := fx.e.GetDigitalTwin("S1")
	require.Equal(t, before, after)
	require.Empty(t, fx.rec.kinds())

	err := fx.e.IngestTelemetry(ctx, record("S9", 100, 0))
	require.True(t, IsValidation(err))
	_, ok := fx.e.GetDigitalTwin("S9")
	require.False(t, ok, "invalid records never create twins")
}

func TestValidationError_Fields(t *testing.T) {
	e := New()
	r := record("S1", 95, 0)
	r.Battery = f(-1)

	err := e.IngestTelemetry(context.Background(), r)
	var ve *ValidationError
	require.True(t, errors.As(err, &ve))

	fields := map[string]string{}
	for _, v := range ve.Violations {
		fields[v.Field] = v.Reason
	}
	require.Equal(t, "must be <= 90", fields["location.latitude"])
	require.Equal(t, "must be >= 0", fields["battery"])

	err = e.SetGeofence(context.Background(), "S1", model.Geofence{Radius: math.Inf(1)})
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []Violation{{Field: "radius", Reason: "must be a finite number"}}, ve.Violations)

	r = record(" ", 0, 0)
	err = e.IngestTelemetry(context.Background(), r)
	require.True(t, errors.As(err, &ve))
	require.Equal(t, []Violation{{Field: "shipmentId", Reason: "is required"}}, ve.Violations)
}

func TestObserverFailureDoesNotAffectIngest(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	require.NoError(t, fx.e.Subscribe(events.KindTwinUpdated, func(context.Context, events.Event) error {
		return errors.New("downstream down")
	}))
	require.NoError(t, fx.e.Subscribe(events.KindTwinUpdated, func(context.Context, events.Event) error {
		panic("boom")
	}))

	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", 0, 0)))
	tw, ok := fx.e.GetDigitalTwin("S1")
	require.True(t, ok)
	require.Equal(t, 1, tw.TelemetryCount)

	require.ErrorIs(t, fx.e.Subscribe("bogus", fx.rec.handle), events.ErrUnknownKind)
}

func TestObserverMayReadTwin(t *testing.T) {
	e := New()
	ctx := context.Background()

	var seen int
	e.Notifier().OnTwinUpdated(func(_ context.Context, ev events.TwinUpdated) error {
		tw, ok := e.GetDigitalTwin(ev.ShipmentID)
		if ok {
			seen = tw.TelemetryCount
		}
		return nil
	})

	require.NoError(t, e.IngestTelemetry(ctx, record("S1", 0, 0)))
	require.Equal(t, 1, seen)
}

func TestObserverResolvesRaisedAlert(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.e.Notifier().OnAlertRaised(func(ctx context.Context, ev events.AlertRaised) error {
		return fx.e.ResolveAlert(ctx, ev.ShipmentID, ev.Alert.ID)
	})

	r := record("S1", 0, 0)
	r.Battery = f(5)
	done := make(chan error, 1)
	go func() { done <- fx.e.IngestTelemetry(ctx, r) }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ingest blocked on observer resolving its alert")
	}

	active, err := fx.e.GetActiveAlerts("S1")
	require.NoError(t, err)
	require.Empty(t, active)
	require.Equal(t, []events.Kind{
		events.KindAlertRaised, events.KindTwinUpdated, events.KindAlertResolved,
	}, fx.rec.kinds())

	// The shipment keeps accepting mutations afterwards.
	require.NoError(t, fx.e.IngestTelemetry(ctx, record("S1", 1, 1)))
	tw, _ := fx.e.GetDigitalTwin("S1")
	require.Equal(t, 2, tw.TelemetryCount)
}

func TestObserverIngestsOnGeofenceSet(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	fx.e.Notifier().OnGeofenceSet(func(ctx context.Context, ev events.GeofenceSet) error {
		lat, lon := north(5000)
		return fx.e.IngestTelemetry(ctx, record(ev.ShipmentID, lat, lon))
	})

	done := make(chan error, 1)
	go func() {
		done <- fx.e.SetGeofence(ctx, "S1", model.Geofence{Radius: 1000})
	}()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("SetGeofence blocked on observer ingesting")
	}

	tw, ok := fx.e.GetDigitalTwin("S1")
	require.True(t, ok)
	require.Equal(t, 1, tw.TelemetryCount)
	require.False(t, tw.GeofenceStatus.Inside)
	require.Equal(t, events.KindGeofenceSet, fx.rec.kinds()[0])
}

func TestConcurrentConflictingIngests(t *testing.T) {
	e := New()
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("S%d", i)
		a := record(id, 1, 1)
		a.Sensors = &model.Sensors{Temperature: f(10), Humidity: f(10)}
		a.Battery = f(10)
		b := record(id, 2, 2)
		b.Sensors = &model.Sensors{Temperature: f(20), Humidity: f(20)}
		b.Battery = f(90)

		var wg sync.WaitGroup
		for _, r := range []model.TelemetryRecord{a, b} {
			wg.Add(1)
			go func(r model.TelemetryRecord) {
				defer wg.Done()
				assert.NoError(t, e.IngestTelemetry(ctx, r))
			}(r)
		}
		wg.Wait()

		tw, _ := e.GetDigitalTwin(id)
		require.Equal(t, 2, tw.TelemetryCount)
		require.Len(t, tw.LocationHistory, 1)
		last := tw.CurrentLocation.Latitude
		want := map[float64]float64{1: 10, 2: 20}[last]
		require.InDelta(t, want, *tw.LatestSensors.Temperature, 0)
		require.InDelta(t, want, *tw.LatestSensors.Humidity, 0)
		// The earlier record's location must be in history.
		require.InDelta(t, 3-last, tw.LocationHistory[0].Latitude, 0)
		// Battery 10 breaches regardless of order and alerts stay open.
		active, err := e.GetActiveAlerts(id)
		require.NoError(t, err)
		require.Len(t, active, 1)
	}
	require.Len(t, e.GetAllDigitalTwins(), 50)
}

func TestConcurrentShipmentsIndependent(t *testing.T) {
	e := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("S%d", i)
			for j := 0; j < 100; j++ {
				assert.NoError(t, e.IngestTelemetry(ctx, record(id, float64(j%90), 0)))
				_, _ = e.GetDigitalTwin(id)
				_ = e.GetAllDigitalTwins()
			}
		}(i)
	}
	wg.Wait()

	for _, tw := range e.GetAllDigitalTwins() {
		require.Equal(t, 100, tw.TelemetryCount)
		require.Len(t, tw.LocationHistory, DefaultHistorySize)
	}
}
