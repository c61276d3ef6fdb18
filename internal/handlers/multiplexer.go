package handlers

import (
	"fmt"

	"github.com/san-kum/odestep/internal/dynamo"
)

// Multiplexer forwards every step to several handlers in registration order.
type Multiplexer struct {
	handlers []dynamo.StepHandler
}

func NewMultiplexer(handlers ...dynamo.StepHandler) *Multiplexer {
	m := &Multiplexer{}
	for _, h := range handlers {
		m.Add(h)
	}
	return m
}

func (m *Multiplexer) Add(h dynamo.StepHandler) {
	if h != nil {
		m.handlers = append(m.handlers, h)
	}
}

func (m *Multiplexer) Handlers() []dynamo.StepHandler { return m.handlers }

func (m *Multiplexer) RequiresDenseOutput() bool {
	for _, h := range m.handlers {
		if h.RequiresDenseOutput() {
			return true
		}
	}
	return false
}

func (m *Multiplexer) Reset() {
	for _, h := range m.handlers {
		h.Reset()
	}
}

// HandleStep stops at the first failing handler. Handlers registered later
// do not see the step.
func (m *Multiplexer) HandleStep(interp dynamo.StepInterpolator, isLast bool) error {
	for i, h := range m.handlers {
		if err := h.HandleStep(interp, isLast); err != nil {
			return fmt.Errorf("handlers: handler %d: %w", i, err)
		}
	}
	return nil
}
