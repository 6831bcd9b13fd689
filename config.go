package swap

/*

Generalized from a flag-validation helper originally written for one-off
CLI tools: a small reflection-based rule engine so that `-flag` and env-var
driven config can be checked with the same vocabulary (NotEmpty, OneOf,
Requires) instead of a pile of hand-written if-blocks at startup.

*/

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"
	"time"
)

// FlagRule represents a validation rule that runs against a flag or env entry.
type FlagRule func(spec *FlagSpec, ctx *validationContext) error

// FlagSpec bundles a config entry's name, its backing pointer, and the rules to enforce on it.
type FlagSpec struct {
	Name  string
	Value any
	Rules []FlagRule
}

// ValidateConfigOrExit validates the provided specs and prints the help output on failure.
// fs may be nil when validating env-only config (no flag.FlagSet to print).
func ValidateConfigOrExit(fs *flag.FlagSet, specs []FlagSpec) {
	if err := runFlagValidations(specs); err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n\n", err)
		if fs != nil {
			fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
			fs.PrintDefaults()
		}
		os.Exit(2)
	}
}

// ValidateConfig runs the same rules as ValidateConfigOrExit but returns a
// *Error with KindConfigMissing instead of exiting the process, for use from
// library code (swap.Run) rather than the cmd/swap entrypoint.
func ValidateConfig(specs []FlagSpec) error {
	if err := runFlagValidations(specs); err != nil {
		return NewError(KindConfigMissing, err.Error(), err)
	}
	return nil
}

// NotEmpty asserts that the underlying string value is not blank.
func NotEmpty() FlagRule {
	return func(spec *FlagSpec, ctx *validationContext) error {
		value, ok := stringValue(spec.Value)
		if !ok {
			return fmt.Errorf("%s must be a string", spec.Name)
		}
		if strings.TrimSpace(value) == "" {
			return fmt.Errorf("%s must not be empty", spec.Name)
		}
		return nil
	}
}

// OneOf asserts that a string value is one of the provided options (case-insensitive).
func OneOf(options ...string) FlagRule {
	allowed := make(map[string]struct{}, len(options))
	for _, opt := range options {
		allowed[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	return func(spec *FlagSpec, ctx *validationContext) error {
		value, ok := stringValue(spec.Value)
		if !ok {
			return fmt.Errorf("%s must be a string", spec.Name)
		}
		normalized := strings.ToLower(strings.TrimSpace(value))
		if _, exists := allowed[normalized]; !exists {
			choices := make([]string, 0, len(allowed))
			for opt := range allowed {
				choices = append(choices, opt)
			}
			sort.Strings(choices)
			return fmt.Errorf("%s must be one of [%s]", spec.Name, strings.Join(choices, ", "))
		}
		return nil
	}
}

// Requires ensures that when the current entry is set, the dependent entry passes validation.
func Requires(dep string) FlagRule {
	return func(spec *FlagSpec, ctx *validationContext) error {
		if !valueProvided(spec.Value) {
			return nil
		}
		target, ok := ctx.registry[dep]
		if !ok {
			return fmt.Errorf("%s requires %s, but the dependency is not registered", spec.Name, dep)
		}
		if err := ctx.validate(target); err != nil {
			return fmt.Errorf("%s requires %s: %w", spec.Name, dep, err)
		}
		return nil
	}
}

// PositiveDuration asserts that the underlying *time.Duration value is > 0,
// for the configurable deadlines (first-quote, RPC, confirmation poll).
func PositiveDuration() FlagRule {
	return func(spec *FlagSpec, ctx *validationContext) error {
		d, ok := spec.Value.(*time.Duration)
		if !ok {
			return fmt.Errorf("%s must be a duration", spec.Name)
		}
		if *d <= 0 {
			return fmt.Errorf("%s must be a positive duration, got %s", spec.Name, d)
		}
		return nil
	}
}

type validationContext struct {
	registry   map[string]*FlagSpec
	validating map[string]bool
	validated  map[string]bool
}

func runFlagValidations(specs []FlagSpec) error {
	if len(specs) == 0 {
		return nil
	}
	ctx := &validationContext{
		registry:   make(map[string]*FlagSpec, len(specs)),
		validating: make(map[string]bool, len(specs)),
		validated:  make(map[string]bool, len(specs)),
	}
	for i := range specs {
		spec := &specs[i]
		if spec.Name == "" {
			return errors.New("config spec missing name")
		}
		if spec.Value == nil {
			return fmt.Errorf("%s is missing its backing pointer", spec.Name)
		}
		if _, exists := ctx.registry[spec.Name]; exists {
			return fmt.Errorf("%s defined more than once", spec.Name)
		}
		ctx.registry[spec.Name] = spec
	}
	for _, spec := range ctx.registry {
		if err := ctx.validate(spec); err != nil {
			return err
		}
	}
	return nil
}

func (ctx *validationContext) validate(spec *FlagSpec) error {
	if spec == nil {
		return nil
	}
	if ctx.validated[spec.Name] {
		return nil
	}
	if ctx.validating[spec.Name] {
		return nil
	}
	ctx.validating[spec.Name] = true
	defer delete(ctx.validating, spec.Name)
	for _, rule := range spec.Rules {
		if rule == nil {
			continue
		}
		if err := rule(spec, ctx); err != nil {
			return err
		}
	}
	ctx.validated[spec.Name] = true
	return nil
}

func stringValue(value any) (string, bool) {
	rv, ok := derefValue(value)
	if !ok || rv.Kind() != reflect.String {
		return "", false
	}
	return rv.String(), true
}

func valueProvided(value any) bool {
	rv, ok := derefValue(value)
	if !ok {
		return false
	}
	switch rv.Kind() {
	case reflect.String:
		return strings.TrimSpace(rv.String()) != ""
	case reflect.Bool:
		return rv.Bool()
	default:
		return !rv.IsZero()
	}
}

func derefValue(value any) (reflect.Value, bool) {
	if value == nil {
		return reflect.Value{}, false
	}
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Value{}, false
		}
		rv = rv.Elem()
	}
	if !rv.IsValid() {
		return reflect.Value{}, false
	}
	return rv, true
}

// Default endpoints and deadlines, per spec.md §6 and the configurable
// deadlines named throughout §2-§5.
const (
	DefaultWireEndpoint = "wss://swap-us.example-titan.network/v1/ws"

	DefaultFirstQuoteDeadline = 10 * time.Second
	DefaultRPCDeadline        = 15 * time.Second
	DefaultConfirmPollEvery   = 500 * time.Millisecond
	DefaultConfirmTimeout     = 60 * time.Second
)

// EnvConfig is the resolved runtime configuration: the three recognized
// environment variables plus the deadlines the spec marks configurable.
// cmd/swap populates this via viper (flags override env, env overrides
// these defaults) and passes it into Run.
type EnvConfig struct {
	WireEndpoint string
	WireAuth     string
	ChainRPCURL  string

	FirstQuoteDeadline time.Duration
	RPCDeadline        time.Duration
	ConfirmPollEvery   time.Duration
	ConfirmTimeout     time.Duration
}

// Validate checks the resolved env config, returning a KindConfigMissing
// *Error naming what's absent. WireEndpoint carries a default and is never
// empty in practice; WireAuth and ChainRPCURL have none and must be set.
func (c EnvConfig) Validate() error {
	specs := []FlagSpec{
		{Name: "WIRE_ENDPOINT", Value: &c.WireEndpoint, Rules: []FlagRule{NotEmpty()}},
		{Name: "WIRE_AUTH_TOKEN", Value: &c.WireAuth, Rules: []FlagRule{NotEmpty()}},
		{Name: "CHAIN_RPC_URL", Value: &c.ChainRPCURL, Rules: []FlagRule{NotEmpty()}},
		{Name: "first-quote-deadline", Value: &c.FirstQuoteDeadline, Rules: []FlagRule{PositiveDuration()}},
		{Name: "rpc-deadline", Value: &c.RPCDeadline, Rules: []FlagRule{PositiveDuration()}},
		{Name: "confirm-poll-every", Value: &c.ConfirmPollEvery, Rules: []FlagRule{PositiveDuration()}},
		{Name: "confirm-timeout", Value: &c.ConfirmTimeout, Rules: []FlagRule{PositiveDuration()}},
	}
	return ValidateConfig(specs)
}

// WithDefaults fills zero-valued deadline fields with the package defaults.
// Called after env/flag binding so an unset duration doesn't fail
// PositiveDuration validation.
func (c EnvConfig) WithDefaults() EnvConfig {
	if c.WireEndpoint == "" {
		c.WireEndpoint = DefaultWireEndpoint
	}
	if c.FirstQuoteDeadline == 0 {
		c.FirstQuoteDeadline = DefaultFirstQuoteDeadline
	}
	if c.RPCDeadline == 0 {
		c.RPCDeadline = DefaultRPCDeadline
	}
	if c.ConfirmPollEvery == 0 {
		c.ConfirmPollEvery = DefaultConfirmPollEvery
	}
	if c.ConfirmTimeout == 0 {
		c.ConfirmTimeout = DefaultConfirmTimeout
	}
	return c
}
