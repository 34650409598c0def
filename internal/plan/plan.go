// Package plan turns operation descriptors into ordered test scenarios.
// Each scenario carries its synthesized request data and expected
// outcome; the emitter consumes scenarios without mutating them.
package plan

import (
	"github.com/specforge/specforge/internal/spec"
)

// ScenarioType classifies what a scenario exercises.
type ScenarioType string

const (
	TypeSuccess       ScenarioType = "success"
	TypeError         ScenarioType = "error"
	TypeEdge          ScenarioType = "edge"
	TypeSecurity      ScenarioType = "security"
	TypeContract      ScenarioType = "contract"
	TypeBusinessLogic ScenarioType = "business-logic"
	TypeIntegration   ScenarioType = "integration"
)

// AuthMode describes how a scenario presents credentials.
type AuthMode string

const (
	AuthNone    AuthMode = "none"
	AuthValid   AuthMode = "valid"
	AuthInvalid AuthMode = "invalid"
	AuthExpired AuthMode = "expired"
)

// RequestData is the fully synthesized input for one test call.
type RequestData struct {
	PathParams  map[string]any
	QueryParams map[string]any
	Headers     map[string]string
	Body        any
}

// AuthSpec tells the emitter how to wire credentials for a scenario.
// Credentials are always referenced symbolically through an environment
// variable; the generator never resolves real secrets.
type AuthSpec struct {
	Mode   AuthMode
	Header string // header carrying the credential
	EnvVar string // environment variable the generated test reads
}

// Scenario is one planned test case. IDs are unique within an operation.
type Scenario struct {
	ID               string
	Name             string
	Type             ScenarioType
	Priority         int
	Tags             []string
	Method           spec.HTTPMethod
	Path             string
	Request          RequestData
	ExpectedStatus   int
	ExpectedResponse any // response template for structural assertions
	ResponseSchema   *spec.SchemaNode
	Auth             *AuthSpec
	Disabled         bool
	Comment          string
}

// Options enables or disables scenario families independently.
type Options struct {
	Boundary         bool
	LargePayload     bool
	Unicode          bool
	NullEmpty        bool
	Authorization    bool
	Contract         bool
	SecurityPayloads bool
	BusinessLogic    bool
}

// DefaultOptions enables every family.
func DefaultOptions() Options {
	return Options{
		Boundary:         true,
		LargePayload:     true,
		Unicode:          true,
		NullEmpty:        true,
		Authorization:    true,
		Contract:         true,
		SecurityPayloads: true,
		BusinessLogic:    true,
	}
}
