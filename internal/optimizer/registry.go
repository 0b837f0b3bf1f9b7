package optimizer

import (
	"codelens/internal/logging"
)

// Wildcard is the supported-types entry marking a processor as the default
// fallback for every content type.
const Wildcard = "*"

// Processor is the per-content-type strategy: token estimation, priority
// scoring, and content reduction for one family of item types.
type Processor interface {
	// Name identifies the processor in logs and strategy reports.
	Name() string

	// SupportedTypes lists the exact item types handled, or [Wildcard].
	SupportedTypes() []string

	// EstimateTokens approximates the serialized token cost of the item.
	EstimateTokens(item Item) int

	// CalculatePriority scores the item's importance given the full data set.
	CalculatePriority(item Item, data Data) float64

	// CanReduce reports whether ReduceContent would shrink this item.
	CanReduce(item Item) bool

	// ReduceContent returns a copy of the item with its content reduced by
	// roughly the given factor (0..1, fraction removed).
	ReduceContent(item Item, factor float64) Item
}

// Registry resolves item types to processors. Resolution is first-match-wins
// over registration order, falling back to the wildcard processor, which is
// always present (registered at construction).
type Registry struct {
	processors []Processor
	fallback   Processor
}

// NewRegistry creates a registry pre-populated with the code, document, and
// generic processors, in that order. The generic processor is the wildcard
// fallback.
func NewRegistry(cfg ProcessorConfig) *Registry {
	generic := NewGenericProcessor(cfg)
	r := &Registry{fallback: generic}
	r.Register(NewCodeProcessor(cfg))
	r.Register(NewDocumentProcessor(cfg))
	r.Register(generic)
	return r
}

// Register appends a processor. Registration order is significant: the first
// registered processor claiming a type wins resolution for it.
func (r *Registry) Register(p Processor) {
	r.processors = append(r.processors, p)
	logging.RegistryDebug("Registered processor %s for types %v", p.Name(), p.SupportedTypes())
}

// ProcessorFor resolves the processor for an exact item type, falling back
// to the default when no specific match exists.
func (r *Registry) ProcessorFor(itemType string) Processor {
	for _, p := range r.processors {
		for _, t := range p.SupportedTypes() {
			if t == itemType {
				return p
			}
		}
	}
	return r.fallback
}

// Default returns the wildcard processor.
func (r *Registry) Default() Processor {
	return r.fallback
}
