package voice

import (
	"testing"
	"time"

	"radiohub/internal/event"
	"radiohub/internal/notify"
	"radiohub/internal/protocol"
	"radiohub/internal/schedule"
)

type scriptedDice struct {
	draws []int
	rolls int
}

func (d *scriptedDice) Roll() int {
	draw := d.draws[d.rolls%len(d.draws)]
	d.rolls++
	return draw
}

type engineFixture struct {
	engine    *Engine
	scheduler *schedule.Manual
	recorder  *event.Recorder[protocol.Message]
	dice      *scriptedDice
}

func newFixture(draws ...int) engineFixture {
	scheduler := schedule.NewManual()
	recorder := event.NewRecorder[protocol.Message]()
	dice := &scriptedDice{draws: draws}
	engine := NewEngine(Options{
		Scheduler: scheduler,
		Publisher: recorder,
		Stamper:   protocol.NewStamperWithClock(time.UTC, func() time.Time { return time.Date(2024, 3, 1, 14, 5, 6, 0, time.UTC) }),
		Dice:      dice,
	})
	return engineFixture{engine: engine, scheduler: scheduler, recorder: recorder, dice: dice}
}

func eventNames(messages []protocol.Message) []string {
	names := make([]string, 0, len(messages))
	for _, message := range messages {
		names = append(names, message.Event)
	}
	return names
}

func assertEvents(t *testing.T, got []protocol.Message, want ...string) {
	t.Helper()
	names := eventNames(got)
	if len(names) != len(want) {
		t.Fatalf("expected events %v, got %v", want, names)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Fatalf("expected events %v, got %v", want, names)
		}
	}
}

func TestRequestGrantsFreeChannel(t *testing.T) {
	fixture := newFixture(1)
	fixture.engine.Request("12345", "A")

	assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest)
	if _, known := fixture.engine.Locks().Channel("A"); known {
		t.Fatal("locks must not be created before the decision")
	}

	fixture.scheduler.Advance(DefaultDecisionDelay - time.Millisecond)
	assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest)

	fixture.scheduler.Advance(time.Millisecond)
	assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest, protocol.OutVoiceChannelGrant)

	if locked, _ := fixture.engine.Locks().Channel("A"); !locked {
		t.Fatal("expected channel lock after grant")
	}
	if locked, _ := fixture.engine.Locks().RID("12345"); !locked {
		t.Fatal("expected rid lock after grant")
	}
	grant := fixture.recorder.Events()[1].Data.(protocol.CallPayload)
	if grant.RID != "12345" || grant.Channel != "A" || grant.Stamp != "March 1, 2024 at 2:05:06 PM" {
		t.Fatalf("unexpected grant payload %#v", grant)
	}
}

func TestRequestDeniedOnThree(t *testing.T) {
	fixture := newFixture(3)
	fixture.engine.Request("12345", "A")
	fixture.scheduler.Advance(DefaultDecisionDelay)

	assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest, protocol.OutVoiceChannelDeny)
	locked, known := fixture.engine.Locks().Channel("A")
	if locked || !known {
		t.Fatalf("expected known unlocked channel, got locked=%v known=%v", locked, known)
	}
	if locked, known := fixture.engine.Locks().RID("12345"); locked || !known {
		t.Fatalf("expected known unlocked rid, got locked=%v known=%v", locked, known)
	}
}

func TestGrantIffDrawIsNotThree(t *testing.T) {
	for draw := 1; draw <= 5; draw++ {
		fixture := newFixture(draw)
		fixture.engine.Request("7", "B")
		fixture.scheduler.Advance(DefaultDecisionDelay)

		last := fixture.recorder.Events()[1].Event
		wantGrant := draw != 3
		if (last == protocol.OutVoiceChannelGrant) != wantGrant {
			t.Fatalf("draw %d: unexpected outcome %s", draw, last)
		}
	}
}

func TestRequestWithNonNumericRIDAlwaysDenied(t *testing.T) {
	for _, rid := range []string{"abc", "-1", "12a", ""} {
		fixture := newFixture(1)
		fixture.engine.Request(rid, "A")
		fixture.scheduler.Advance(DefaultDecisionDelay)

		assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest, protocol.OutVoiceChannelDeny)
		if fixture.dice.rolls != 0 {
			t.Fatalf("rid %q: dice must not be rolled", rid)
		}
		if _, known := fixture.engine.Locks().Channel("A"); known {
			t.Fatalf("rid %q: invalid request must not touch locks", rid)
		}
	}
}

func TestRequestOnLockedChannelDeniedAndUnlocks(t *testing.T) {
	fixture := newFixture(1)
	fixture.engine.ForceGrant("1", "A")
	fixture.recorder.Reset()

	fixture.engine.Request("2", "A")
	fixture.scheduler.Advance(DefaultDecisionDelay)

	assertEvents(t, fixture.recorder.Events(), protocol.OutVoiceChannelRequest, protocol.OutVoiceChannelDeny)
	if locked, _ := fixture.engine.Locks().Channel("A"); locked {
		t.Fatal("deny must clear the channel lock")
	}
	if locked, _ := fixture.engine.Locks().RID("1"); !locked {
		t.Fatal("deny must leave other rid locks alone")
	}
}

func TestConcurrentRequestsResolveAtDecisionTime(t *testing.T) {
	fixture := newFixture(1, 1)
	fixture.engine.Request("10", "A")
	fixture.scheduler.Advance(100 * time.Millisecond)
	fixture.engine.Request("20", "A")

	fixture.scheduler.Advance(DefaultDecisionDelay)

	assertEvents(t, fixture.recorder.Events(),
		protocol.OutVoiceChannelRequest,
		protocol.OutVoiceChannelRequest,
		protocol.OutVoiceChannelGrant,
		protocol.OutVoiceChannelDeny,
	)
	if fixture.dice.rolls != 2 {
		t.Fatalf("expected both requests to reach the roll, got %d", fixture.dice.rolls)
	}
	if locked, _ := fixture.engine.Locks().Channel("A"); locked {
		t.Fatal("second decision overrides the first grant's channel lock")
	}
	if locked, _ := fixture.engine.Locks().RID("10"); !locked {
		t.Fatal("first rid keeps its lock")
	}
}

func TestReleaseClearsLocks(t *testing.T) {
	fixture := newFixture(1)
	fixture.engine.Request("5", "C")
	fixture.scheduler.Advance(DefaultDecisionDelay)
	fixture.engine.Release("5", "C")

	events := fixture.recorder.Events()
	if events[len(events)-1].Event != protocol.OutVoiceChannelRelease {
		t.Fatalf("expected release broadcast, got %v", eventNames(events))
	}
	if locked, _ := fixture.engine.Locks().Channel("C"); locked {
		t.Fatal("expected channel unlocked after release")
	}
	if locked, _ := fixture.engine.Locks().RID("5"); locked {
		t.Fatal("expected rid unlocked after release")
	}

	fixture.engine.Request("5", "C")
	fixture.scheduler.Advance(DefaultDecisionDelay)
	events = fixture.recorder.Events()
	if events[len(events)-1].Event != protocol.OutVoiceChannelGrant {
		t.Fatalf("expected grant after release, got %v", eventNames(events))
	}
}

func TestAlertForceGrantsThenReleases(t *testing.T) {
	fixture := newFixture(1)
	fixture.engine.Alert(protocol.OutInformationAlert, "9", "D")

	assertEvents(t, fixture.recorder.Events(), protocol.OutInformationAlert, protocol.OutVoiceChannelGrant)
	if locked, _ := fixture.engine.Locks().Channel("D"); !locked {
		t.Fatal("expected alert channel locked")
	}

	fixture.scheduler.Advance(DefaultReleaseDelay)
	assertEvents(t, fixture.recorder.Events(),
		protocol.OutInformationAlert, protocol.OutVoiceChannelGrant, protocol.OutVoiceChannelRelease)
	if locked, _ := fixture.engine.Locks().Channel("D"); locked {
		t.Fatal("expected alert channel released")
	}
	if fixture.dice.rolls != 0 {
		t.Fatal("alerts bypass arbitration")
	}
}

func TestNotificationsFollowToggles(t *testing.T) {
	sink := notify.NewMemorySink()
	notifier := notify.NewNotifier(notify.Options{
		Sink:    sink,
		Enabled: map[notify.Kind]bool{notify.KindVoiceGrant: true},
	})
	scheduler := schedule.NewManual()
	engine := NewEngine(Options{
		Scheduler: scheduler,
		Publisher: event.NewRecorder[protocol.Message](),
		Notifier:  notifier,
		Dice:      DiceFunc(func() int { return 2 }),
	})

	engine.Request("44", "E")
	scheduler.Advance(DefaultDecisionDelay)
	notifier.Wait()

	events := sink.Events()
	if len(events) != 1 || events[0].Kind != notify.KindVoiceGrant {
		t.Fatalf("expected only the grant notification, got %#v", events)
	}
}

func TestRandomDiceStaysInRange(t *testing.T) {
	dice := RandomDice()
	for i := 0; i < 200; i++ {
		draw := dice.Roll()
		if draw < 1 || draw > 5 {
			t.Fatalf("draw %d out of range", draw)
		}
	}
}
