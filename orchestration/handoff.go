// Handoff Protocol for Multi-Agent Coordination.
//
// Contracts describe what one agent must hand to the next. Output is checked
// against a JSON Schema document.
//
// Information Hiding:
// - Contract storage and lookup hidden
// - Schema compilation and violation flattening hidden

package orchestration

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/richinex/datagent/agent"
	"github.com/richinex/datagent/internal/jsonutil"
)

// Contract defines expected output from an agent.
type Contract struct {
	FromAgent          string
	ToAgent            *string // nil if no specific target
	Schema             []byte  // JSON Schema; empty accepts any output
	MaxExecutionTimeMs *uint64
}

type compiledContract struct {
	Contract
	schema *jsonschema.Schema
}

// Coordinator manages handoff contracts between agents.
type Coordinator struct {
	mu        sync.RWMutex
	contracts map[string]compiledContract
}

// NewCoordinator creates a new handoff coordinator.
func NewCoordinator() *Coordinator {
	return &Coordinator{
		contracts: make(map[string]compiledContract),
	}
}

// RegisterContract compiles the contract's schema and registers it under name.
func (c *Coordinator) RegisterContract(name string, contract Contract) error {
	compiled := compiledContract{Contract: contract}
	if len(contract.Schema) > 0 {
		schema, err := compileSchema(name, contract.Schema)
		if err != nil {
			return fmt.Errorf("failed to compile schema for contract %q: %w", name, err)
		}
		compiled.schema = schema
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.contracts[name] = compiled
	return nil
}

func compileSchema(name string, raw []byte) (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("invalid schema JSON: %w", err)
	}
	url := name + ".json"
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, err
	}
	return compiler.Compile(url)
}

// Validate validates agent output against a handoff contract.
func (c *Coordinator) Validate(contractName string, response *agent.Response) ValidationResult {
	c.mu.RLock()
	contract, exists := c.contracts[contractName]
	c.mu.RUnlock()

	if !exists {
		return NewValidationFailure([]ValidationError{{
			Field:     "contract",
			ErrorType: "ContractNotFound",
			Message:   fmt.Sprintf("Handoff contract '%s' not registered", contractName),
		}})
	}

	// Check response type
	switch response.Type {
	case agent.ResponseFailure:
		return NewValidationFailure([]ValidationError{
			mismatch("response", "AgentFailure", "Agent failed to complete task", "Success", "Failure"),
		})
	case agent.ResponseTimeout:
		return NewValidationFailure([]ValidationError{
			mismatch("response", "AgentTimeout", "Agent timed out before completing task", "Success", "Timeout"),
		})
	}

	var warnings []string
	if contract.MaxExecutionTimeMs != nil && response.Metadata.ExecutionTimeMs > *contract.MaxExecutionTimeMs {
		warnings = append(warnings, fmt.Sprintf(
			"Execution time (%dms) exceeded limit (%dms)",
			response.Metadata.ExecutionTimeMs,
			*contract.MaxExecutionTimeMs,
		))
	}

	if contract.schema == nil {
		return NewValidationSuccess().WithWarnings(warnings)
	}

	errs := validateAgainst(contract.schema, response.Result)
	if len(errs) == 0 {
		return NewValidationSuccess().WithWarnings(warnings)
	}
	return NewValidationFailure(errs).WithWarnings(warnings)
}

func validateAgainst(schema *jsonschema.Schema, output string) []ValidationError {
	extracted, err := jsonutil.ExtractJSON(output)
	if err != nil {
		return []ValidationError{mismatch("output", "InvalidJSON",
			"Agent output is not a JSON document", "JSON", "text")}
	}
	instance, err := jsonschema.UnmarshalJSON(strings.NewReader(extracted))
	if err != nil {
		return []ValidationError{mismatch("output", "InvalidJSON",
			fmt.Sprintf("Agent output is not valid JSON: %v", err), "JSON", "text")}
	}

	err = schema.Validate(instance)
	if err == nil {
		return nil
	}
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return []ValidationError{{Field: "output", ErrorType: "SchemaViolation", Message: err.Error()}}
	}
	return flattenViolations(verr)
}

// flattenViolations reports one error per leaf of the validation tree.
func flattenViolations(verr *jsonschema.ValidationError) []ValidationError {
	printer := message.NewPrinter(language.English)
	var out []ValidationError
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := "/" + strings.Join(e.InstanceLocation, "/")
			out = append(out, ValidationError{
				Field:     field,
				ErrorType: "SchemaViolation",
				Message:   e.ErrorKind.LocalizedString(printer),
			})
			return
		}
		for _, cause := range e.Causes {
			walk(cause)
		}
	}
	walk(verr)

	sort.SliceStable(out, func(i, j int) bool { return out[i].Field < out[j].Field })
	return out
}

func mismatch(field, errorType, msg, expected, actual string) ValidationError {
	return ValidationError{
		Field:     field,
		ErrorType: errorType,
		Message:   msg,
		Expected:  &expected,
		Actual:    &actual,
	}
}

// ContractNames returns all registered contract names, sorted.
func (c *Coordinator) ContractNames() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.contracts))
	for name := range c.contracts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetContract retrieves a contract by name.
func (c *Coordinator) GetContract(name string) (Contract, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	contract, exists := c.contracts[name]
	return contract.Contract, exists
}
