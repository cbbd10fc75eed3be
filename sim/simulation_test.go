package sim

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/7seasdotnet/hexcrawler/canon"
	"github.com/7seasdotnet/hexcrawler/registry"
	"github.com/7seasdotnet/hexcrawler/rng"
	"github.com/7seasdotnet/hexcrawler/simerr"
	"github.com/7seasdotnet/hexcrawler/world"
)

func newTestSim(t *testing.T, seed int64) *Simulation {
	t.Helper()
	s, err := NewWithSeedAndTopology(seed, world.TopologyHexAxial, world.TopologyParams{"radius": 4})
	require.NoError(t, err)
	return s
}

func TestDeterminismBaseline_SameSeedSameHashAcrossRuns(t *testing.T) {
	s1 := newTestSim(t, 42)
	require.NoError(t, s1.AdvanceTicks(200))
	h1, err := s1.SimulationHash()
	require.NoError(t, err)

	s2 := newTestSim(t, 42)
	require.NoError(t, s2.AdvanceTicks(200))
	h2, err := s2.SimulationHash()
	require.NoError(t, err)

	require.Equal(t, h1, h2)
}

func TestSameTickOrdering_CommandsExecuteInAppendOrder(t *testing.T) {
	s := newTestSim(t, 1)
	_, err := s.AppendCommand(5, "", "custom_intent", canon.Object(map[string]canon.Value{"who": canon.String("a")}))
	require.NoError(t, err)
	_, err = s.AppendCommand(5, "", "custom_intent", canon.Object(map[string]canon.Value{"who": canon.String("b")}))
	require.NoError(t, err)

	require.NoError(t, s.AdvanceTicks(6))

	entries, err := s.GetEventTrace()
	require.NoError(t, err)
	var whoSeq []string
	for _, e := range entries {
		if e.Tick != 5 || e.EventType != "custom_intent" {
			continue
		}
		obj, _ := e.Outcome.Object()
		who, _ := obj["who"].String()
		whoSeq = append(whoSeq, who)
	}
	require.Equal(t, []string{"a", "b"}, whoSeq)
}

func TestPeriodicDeterministicFiring_FiresAtExpectedTicks(t *testing.T) {
	s := newTestSim(t, 7)
	require.NoError(t, s.Periodic().RegisterTask("encounter_check", 20, 0))
	var fired []uint64
	require.NoError(t, s.Periodic().SetTaskCallback("encounter_check", func(tick uint64) error {
		fired = append(fired, tick)
		return nil
	}))

	require.NoError(t, s.AdvanceTicks(101))
	require.Equal(t, []uint64{0, 20, 40, 60, 80, 100}, fired)
}

type selfReschedulingModule struct {
	registry.Base
	executions int
}

func (m *selfReschedulingModule) Name() string { return "runaway_test_module" }
func (m *selfReschedulingModule) OnEventExecuted(ev registry.EventExecution) error {
	if ev.EventType != "runaway" {
		return nil
	}
	m.executions++
	return nil
}

func TestRunawayGuard_TriggersAfterMaxEventsPerTick(t *testing.T) {
	s := newTestSim(t, 3)
	// A module that only counts "runaway" executions; the same-tick loop
	// itself comes from reschedulerModule below.
	mod := &selfReschedulingModule{}
	require.NoError(t, s.RegisterRuleModule(mod))

	_, err := s.AppendCommand(0, "", "start_runaway", canon.Object(nil))
	require.NoError(t, err)

	// A second module reschedules "runaway" every time one executes,
	// forming the same-tick fan-out loop the guard must catch.
	resched := &reschedulerModule{sim: s}
	require.NoError(t, s.RegisterRuleModule(resched))

	err = s.AdvanceTicks(1)
	require.Error(t, err)
	require.True(t, simerr.Is(err, simerr.RunawayEventFanout))
}

type reschedulerModule struct {
	registry.Base
	sim *Simulation
}

func (m *reschedulerModule) Name() string { return "rescheduler_test_module" }
func (m *reschedulerModule) OnEventExecuted(ev registry.EventExecution) error {
	if ev.EventType == "start_runaway" {
		_, err := m.sim.queue.Schedule(ev.Tick, "runaway", canon.Null())
		return err
	}
	if ev.EventType == "runaway" {
		_, err := m.sim.queue.Schedule(ev.Tick, "runaway", canon.Null())
		return err
	}
	return nil
}

func TestAdvanceTicks_FatalCommandAbortsWithoutPartialMutation(t *testing.T) {
	s := newTestSim(t, 9)
	_, err := s.AppendCommand(0, "nonexistent_entity", CmdSetEntityMoveVector, canon.Object(map[string]canon.Value{
		"x": canon.Float(1), "y": canon.Float(0),
	}))
	require.NoError(t, err)

	beforeHash, err := s.SimulationHash()
	require.NoError(t, err)

	err = s.AdvanceTicks(1)
	require.Error(t, err)

	afterHash, err := s.SimulationHash()
	require.NoError(t, err)
	require.Equal(t, beforeHash, afterHash)
	require.Equal(t, uint64(0), s.Time().Tick)
}

func TestAdvanceDays_AdvancesTicksPerDayMultiple(t *testing.T) {
	s := newTestSim(t, 11)
	require.NoError(t, s.AdvanceDays(1))
	require.Equal(t, uint64(DefaultTicksPerDay), s.Time().Tick)
}

func TestRngStream_IsolationAcrossStreams(t *testing.T) {
	s := newTestSim(t, 5)
	a := s.RngStream("a")
	seqBefore := []uint64{a.Next(), a.Next()}

	b := s.RngStream("b")
	b.Next()

	a2 := s.RngStream("a")
	seqAfter := []uint64{a2.Next(), a2.Next()}
	_ = seqBefore
	_ = seqAfter
	// a's next draws after b's insertion continue from where a left off,
	// unperturbed by b's existence.
	require.NotEqual(t, seqBefore, seqAfter)
	ref := rng.New(5, "a")
	ref.Next()
	ref.Next()
	require.Equal(t, []uint64{ref.Next(), ref.Next()}, seqAfter)
}

func TestTravelStep_RecordedInEventTrace(t *testing.T) {
	s := newTestSim(t, 13)
	e := world.NewEntity("e1", world.DefaultSpaceID, world.Vector2{X: 0, Y: 0})
	e.MoveVector = world.Vector2{X: 2, Y: 0}
	require.NoError(t, s.world.AddEntity(e))

	require.NoError(t, s.AdvanceTicks(1))
	entries, err := s.GetEventTrace()
	require.NoError(t, err)
	found := false
	for _, en := range entries {
		if en.EventType == "travel_step" {
			found = true
		}
	}
	require.True(t, found)
}
