package events_test

import (
	"errors"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/odestep/internal/dynamo"
	"github.com/san-kum/odestep/internal/events"
)

// analyticStep serves an exact trajectory over [from, to].
type analyticStep struct {
	from, to float64
	at       float64
	y        func(t float64) dynamo.State
}

func newStep(from, to float64, y func(t float64) dynamo.State) *analyticStep {
	return &analyticStep{from: from, to: to, at: to, y: y}
}

func (s *analyticStep) PreviousTime() float64         { return s.from }
func (s *analyticStep) CurrentTime() float64          { return s.to }
func (s *analyticStep) InterpolatedTime() float64     { return s.at }
func (s *analyticStep) SetInterpolatedTime(t float64) { s.at = t }
func (s *analyticStep) InterpolatedState() dynamo.State {
	return s.y(s.at)
}
func (s *analyticStep) IsForward() bool { return s.to >= s.from }
func (s *analyticStep) Copy() dynamo.StepInterpolator {
	c := *s
	return &c
}

func identity(t float64) dynamo.State { return dynamo.State{t} }

func sine(omega float64) func(float64) dynamo.State {
	return func(t float64) dynamo.State { return dynamo.State{math.Sin(omega * t)} }
}

func crossing(level float64, action dynamo.EventAction) events.Func {
	return events.Func{
		GFunc: func(t float64, y dynamo.State) (float64, error) { return y[0] - level, nil },
		OnEvent: func(t float64, y dynamo.State, increasing bool) dynamo.EventAction {
			return action
		},
	}
}

var _ = Describe("Coordinator", func() {
	var c *events.Coordinator

	BeforeEach(func() {
		c = events.NewCoordinator()
	})

	Describe("registration", func() {
		It("rejects invalid parameters", func() {
			g := crossing(0, dynamo.Continue)
			Expect(c.Add(nil, 1, 1e-9)).NotTo(Succeed())
			Expect(c.Add(g, 0, 1e-9)).NotTo(Succeed())
			Expect(c.Add(g, math.NaN(), 1e-9)).NotTo(Succeed())
			Expect(c.Add(g, 1, 0)).NotTo(Succeed())
			Expect(c.Add(g, 1, math.Inf(1))).NotTo(Succeed())
			Expect(c.IsEmpty()).To(BeTrue())
		})

		It("accepts an unbounded check interval", func() {
			Expect(c.Add(crossing(0, dynamo.Continue), math.Inf(1), 1e-9)).To(Succeed())
			Expect(c.Len()).To(Equal(1))
			Expect(c.Functions()).To(HaveLen(1))
		})

		It("forgets everything on Clear", func() {
			Expect(c.Add(crossing(0, dynamo.Continue), 1, 1e-9)).To(Succeed())
			c.Clear()
			Expect(c.IsEmpty()).To(BeTrue())
			Expect(c.Fired()).To(BeEmpty())
		})
	})

	Describe("evaluating a step", func() {
		It("ignores steps without sign change", func() {
			Expect(c.Add(crossing(2, dynamo.Stop), 0.1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			found, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(math.IsNaN(c.EventTime())).To(BeTrue())
		})

		It("brackets the root to the threshold and keeps the later endpoint", func() {
			Expect(c.Add(crossing(0, dynamo.Stop), 0.25, 1e-10)).To(Succeed())
			Expect(c.Init(3, sine(1)(3))).To(Succeed())

			found, err := c.EvaluateStep(newStep(3, 4, sine(1)))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(c.EventTime()).To(BeNumerically("~", math.Pi, 1e-10))
			Expect(c.EventTime()).To(BeNumerically(">=", math.Pi))
		})

		It("samples at most maxCheckInterval apart", func() {
			Expect(c.Add(crossing(0, dynamo.Stop), 0.05, 1e-10)).To(Succeed())
			Expect(c.Init(0.01, sine(10)(0.01))).To(Succeed())

			found, err := c.EvaluateStep(newStep(0.01, 0.7, sine(10)))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(c.EventTime()).To(BeNumerically("~", math.Pi/10, 1e-9))
		})

		It("misses an even number of roots between two samples", func() {
			Expect(c.Add(crossing(0, dynamo.Stop), math.Inf(1), 1e-10)).To(Succeed())
			Expect(c.Init(0.01, sine(10)(0.01))).To(Succeed())

			found, err := c.EvaluateStep(newStep(0.01, 0.7, sine(10)))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
		})

		It("reports the earliest event across functions", func() {
			Expect(c.Add(crossing(0.5, dynamo.Stop), 1, 1e-10)).To(Succeed())
			Expect(c.Add(crossing(0.3, dynamo.Continue), 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			found, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			tEvent := c.EventTime()
			Expect(tEvent).To(BeNumerically("~", 0.3, 1e-10))

			found, err = c.EvaluateStep(newStep(0, tEvent, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())

			Expect(c.StepAccepted(tEvent, identity(tEvent), true)).To(Succeed())
			Expect(c.Fired()).To(HaveLen(1))
			Expect(c.Fired()[0].Index).To(Equal(1))
			Expect(c.Stopped()).To(BeFalse())
		})

		It("fires simultaneous events in registration order", func() {
			Expect(c.Add(crossing(0.4, dynamo.Continue), 1, 1e-10)).To(Succeed())
			Expect(c.Add(crossing(0.4, dynamo.Stop), 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			found, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			tEvent := c.EventTime()

			found, err = c.EvaluateStep(newStep(0, tEvent, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(c.StepAccepted(tEvent, identity(tEvent), true)).To(Succeed())

			fired := c.Fired()
			Expect(fired).To(HaveLen(2))
			Expect(fired[0].Index).To(Equal(0))
			Expect(fired[0].Action).To(Equal(dynamo.Continue))
			Expect(fired[1].Index).To(Equal(1))
			Expect(c.Stopped()).To(BeTrue())
		})

		It("does not find the same event again in the next step", func() {
			Expect(c.Add(crossing(0.5, dynamo.Continue), 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			_, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			tEvent := c.EventTime()
			_, err = c.EvaluateStep(newStep(0, tEvent, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.StepAccepted(tEvent, identity(tEvent), true)).To(Succeed())

			found, err := c.EvaluateStep(newStep(tEvent, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeFalse())
			Expect(c.StepAccepted(1, identity(1), true)).To(Succeed())
			Expect(c.Fired()).To(HaveLen(1))
		})

		It("reports the direction in time for backward steps", func() {
			var increasing []bool
			fn := events.Func{
				GFunc: func(t float64, y dynamo.State) (float64, error) { return y[0] - 0.5, nil },
				OnEvent: func(t float64, y dynamo.State, inc bool) dynamo.EventAction {
					increasing = append(increasing, inc)
					return dynamo.Stop
				},
			}
			Expect(c.Add(fn, 1, 1e-10)).To(Succeed())
			Expect(c.Init(1, identity(1))).To(Succeed())

			found, err := c.EvaluateStep(newStep(1, 0, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			tEvent := c.EventTime()
			Expect(tEvent).To(BeNumerically("<=", 0.5))
			Expect(tEvent).To(BeNumerically("~", 0.5, 1e-10))

			_, err = c.EvaluateStep(newStep(1, tEvent, identity))
			Expect(err).NotTo(HaveOccurred())
			Expect(c.StepAccepted(tEvent, identity(tEvent), false)).To(Succeed())
			Expect(increasing).To(Equal([]bool{true}))
		})
	})

	Describe("failures", func() {
		It("wraps switching function errors", func() {
			bad := errors.New("probe failed")
			fn := events.Func{GFunc: func(t float64, y dynamo.State) (float64, error) {
				if t > 0.5 {
					return 0, bad
				}
				return 1, nil
			}}
			Expect(c.Add(fn, 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			_, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).To(MatchError(dynamo.ErrEventLocalization))
			Expect(errors.Is(err, bad)).To(BeTrue())
		})

		It("gives up when the refinement cap is reached", func() {
			c.SetMaxIterations(3)
			Expect(c.Add(crossing(0.5, dynamo.Stop), 1, 1e-12)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			_, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(errors.Is(err, dynamo.ErrEventLocalization)).To(BeTrue())
		})
	})

	Describe("resetting the state", func() {
		It("lets the function change the state and re-evaluates every function", func() {
			fn := events.Func{
				GFunc: func(t float64, y dynamo.State) (float64, error) { return y[0] - 0.5, nil },
				OnEvent: func(t float64, y dynamo.State, inc bool) dynamo.EventAction {
					return dynamo.ResetState
				},
				Reset: func(t float64, y dynamo.State) error {
					y[0] = 0
					return nil
				},
			}
			Expect(c.Add(fn, 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())

			_, err := c.EvaluateStep(newStep(0, 1, identity))
			Expect(err).NotTo(HaveOccurred())
			tEvent := c.EventTime()
			_, err = c.EvaluateStep(newStep(0, tEvent, identity))
			Expect(err).NotTo(HaveOccurred())

			y := identity(tEvent)
			Expect(c.StepAccepted(tEvent, y, true)).To(Succeed())
			reset, err := c.Reset(tEvent, y)
			Expect(err).NotTo(HaveOccurred())
			Expect(reset).To(BeTrue())
			Expect(y[0]).To(Equal(0.0))

			// a second call has nothing left to apply
			reset, err = c.Reset(tEvent, y)
			Expect(err).NotTo(HaveOccurred())
			Expect(reset).To(BeFalse())

			// back below the level, so the next rise is a new event
			shifted := func(t float64) dynamo.State { return dynamo.State{t - tEvent} }
			found, err := c.EvaluateStep(newStep(tEvent, tEvent+1, shifted))
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeTrue())
			Expect(c.EventTime()).To(BeNumerically("~", tEvent+0.5, 1e-10))
		})

		It("reports reset failures", func() {
			fn := events.Func{
				GFunc: func(t float64, y dynamo.State) (float64, error) { return y[0] - 0.5, nil },
				OnEvent: func(t float64, y dynamo.State, inc bool) dynamo.EventAction {
					return dynamo.ResetState
				},
				Reset: func(t float64, y dynamo.State) error { return errors.New("read only") },
			}
			Expect(c.Add(fn, 1, 1e-10)).To(Succeed())
			Expect(c.Init(0, identity(0))).To(Succeed())
			_, _ = c.EvaluateStep(newStep(0, 1, identity))
			tEvent := c.EventTime()
			_, _ = c.EvaluateStep(newStep(0, tEvent, identity))
			Expect(c.StepAccepted(tEvent, identity(tEvent), true)).To(Succeed())

			_, err := c.Reset(tEvent, identity(tEvent))
			Expect(err).To(MatchError(ContainSubstring("read only")))
		})
	})
})
