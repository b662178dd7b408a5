package runloop

// RunConfig holds the recognized options for a single run. Zero values are
// filled in from DefaultRunConfig by the coordinator.
type RunConfig struct {
	// MaxIterations bounds the number of model turns. Doubled when the
	// caller flags a continue request.
	MaxIterations int
	// Temperature is forwarded to the gateway on every call.
	Temperature float64
	// Profile selects the wire shape for tool feedback and, when the
	// gateway routes by profile, the provider adapter.
	Profile string
	// Model overrides the adapter's default model when set.
	Model string
	// MaxTokens caps the model's output when set.
	MaxTokens int
	// AskBeforeContinue makes the iteration limit prompt the caller for a
	// continue decision instead of silently force-finishing.
	AskBeforeContinue bool
	// Continue marks this run as a continuation; the iteration budget is
	// doubled.
	Continue bool
}

// DefaultRunConfig returns the baseline run configuration.
func DefaultRunConfig() RunConfig {
	return RunConfig{
		MaxIterations: 10,
		Temperature:   0.7,
		Profile:       ProfilePlain,
	}
}

func (c RunConfig) withDefaults() RunConfig {
	def := DefaultRunConfig()
	if c.MaxIterations <= 0 {
		c.MaxIterations = def.MaxIterations
	}
	if c.Temperature == 0 {
		c.Temperature = def.Temperature
	}
	if c.Profile == "" {
		c.Profile = def.Profile
	}
	if c.Continue {
		c.MaxIterations *= 2
	}
	return c
}
