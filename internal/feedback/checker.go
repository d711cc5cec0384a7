package feedback

// Control is a configured control surface button bound to a feedback rule.
type Control struct {
	Name    string  `json:"name"`
	Kind    Kind    `json:"kind"`
	Options Options `json:"options"`
}

// Sink receives the result of every re-check.
type Sink interface {
	PublishFeedback(control Control, style Style, override bool)
}

// Checker re-evaluates the configured controls whose kind changed.
type Checker struct {
	eval     *Evaluator
	controls []Control
	sinks    []Sink
}

// NewChecker конструктор.
func NewChecker(eval *Evaluator, controls []Control, sinks ...Sink) *Checker {
	return &Checker{eval: eval, controls: controls, sinks: sinks}
}

// AddSink registers s for subsequent checks.
func (c *Checker) AddSink(s Sink) {
	c.sinks = append(c.sinks, s)
}

// Controls returns the configured controls.
func (c *Checker) Controls() []Control {
	return c.controls
}

// Evaluate returns the current decision for control.
func (c *Checker) Evaluate(control Control) (Style, bool) {
	return c.eval.Evaluate(control.Kind, control.Options)
}

// Check re-evaluates every control of the given kinds.
func (c *Checker) Check(kinds ...Kind) {
	for _, ctl := range c.controls {
		if !contains(kinds, ctl.Kind) {
			continue
		}
		c.publish(ctl)
	}
}

// CheckAll re-evaluates every control.
func (c *Checker) CheckAll() {
	for _, ctl := range c.controls {
		c.publish(ctl)
	}
}

func (c *Checker) publish(ctl Control) {
	style, ok := c.eval.Evaluate(ctl.Kind, ctl.Options)
	for _, s := range c.sinks {
		s.PublishFeedback(ctl, style, ok)
	}
}

func contains(kinds []Kind, k Kind) bool {
	for _, kind := range kinds {
		if kind == k {
			return true
		}
	}
	return false
}
