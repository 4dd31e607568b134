package metrics

// Nop satisfies the metrics interface and records nothing.
type Nop struct{}

func (Nop) RecordSpin(string, int) {}

func (Nop) RecordOutcome(string, string) {}

func (Nop) RecordAlert(string) {}

func (Nop) RecordArchived(string, int) {}

func (Nop) RecordError(string) {}

func (Nop) RecordLatency(string, float64) {}

func (Nop) SetStrategies(int, int, int) {}
