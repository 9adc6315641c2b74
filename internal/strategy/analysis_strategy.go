package strategy

import "fmt"

const (
	JSONStrategyName = "json"
	TextStrategyName = "text"
)

const jsonInstruction = `Identify every object, person, text and notable feature in this image. ` +
	`Respond only with a JSON array. Each element must be an object with the fields ` +
	`"class" (a short name), "confidence" (a number between 0 and 1) and ` +
	`"description" (one sentence). Do not wrap the array in markdown.`

const textInstruction = "Analyze this image and identify all objects, people, text, and notable features. " +
	"Provide a detailed list of everything you can detect."

// InstructionStrategy supplies the instruction text sent alongside the image
type InstructionStrategy interface {
	Instruction() string
	GetStrategyName() string
}

// JSONInstructionStrategy asks for a structured array of detections
type JSONInstructionStrategy struct{}

// NewJSONInstructionStrategy creates a new structured instruction strategy
func NewJSONInstructionStrategy() InstructionStrategy {
	return &JSONInstructionStrategy{}
}

func (s *JSONInstructionStrategy) Instruction() string {
	return jsonInstruction
}

// GetStrategyName returns the strategy name
func (s *JSONInstructionStrategy) GetStrategyName() string {
	return JSONStrategyName
}

// FreeTextInstructionStrategy asks for a loose descriptive list
type FreeTextInstructionStrategy struct{}

// NewFreeTextInstructionStrategy creates a new free-text instruction strategy
func NewFreeTextInstructionStrategy() InstructionStrategy {
	return &FreeTextInstructionStrategy{}
}

func (s *FreeTextInstructionStrategy) Instruction() string {
	return textInstruction
}

// GetStrategyName returns the strategy name
func (s *FreeTextInstructionStrategy) GetStrategyName() string {
	return TextStrategyName
}

// ForMode returns the strategy registered under name
func ForMode(name string) (InstructionStrategy, error) {
	switch name {
	case JSONStrategyName, "":
		return NewJSONInstructionStrategy(), nil
	case TextStrategyName:
		return NewFreeTextInstructionStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown instruction mode %q", name)
	}
}

// InstructionContext manages the instruction strategy
type InstructionContext struct {
	strategy InstructionStrategy
}

// NewInstructionContext creates a new instruction context
func NewInstructionContext(strategy InstructionStrategy) *InstructionContext {
	return &InstructionContext{
		strategy: strategy,
	}
}

// SetStrategy changes the instruction strategy
func (c *InstructionContext) SetStrategy(strategy InstructionStrategy) {
	c.strategy = strategy
}

// Instruction returns the text of the current strategy
func (c *InstructionContext) Instruction() string {
	return c.strategy.Instruction()
}

// GetCurrentStrategy returns the current strategy name
func (c *InstructionContext) GetCurrentStrategy() string {
	return c.strategy.GetStrategyName()
}
