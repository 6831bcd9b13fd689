package swap

import (
	"testing"
	"time"
)

func TestValidateConfigNotEmptyRejectsBlank(t *testing.T) {
	blank := "   "
	err := ValidateConfig([]FlagSpec{{Name: "input", Value: &blank, Rules: []FlagRule{NotEmpty()}}})
	if err == nil {
		t.Fatal("expected a blank value to fail NotEmpty")
	}
}

func TestValidateConfigOneOfRejectsUnlisted(t *testing.T) {
	mode := "aggressive"
	err := ValidateConfig([]FlagSpec{{Name: "mode", Value: &mode, Rules: []FlagRule{OneOf("plain", "tui")}}})
	if err == nil {
		t.Fatal("expected an unlisted option to fail OneOf")
	}
}

func TestValidateConfigOneOfAcceptsCaseInsensitive(t *testing.T) {
	mode := "TUI"
	err := ValidateConfig([]FlagSpec{{Name: "mode", Value: &mode, Rules: []FlagRule{OneOf("plain", "tui")}}})
	if err != nil {
		t.Fatalf("expected a case-insensitive match to pass, got %v", err)
	}
}

func TestValidateConfigRequiresFailsWhenDependencyMissing(t *testing.T) {
	output := "USDC"
	input := ""
	specs := []FlagSpec{
		{Name: "output", Value: &output, Rules: []FlagRule{Requires("input")}},
		{Name: "input", Value: &input, Rules: []FlagRule{NotEmpty()}},
	}
	if err := ValidateConfig(specs); err == nil {
		t.Fatal("expected Requires to surface the dependency's own validation failure")
	}
}

func TestValidateConfigRequiresPassesWhenDependencySatisfied(t *testing.T) {
	output := "USDC"
	input := "SOL"
	specs := []FlagSpec{
		{Name: "output", Value: &output, Rules: []FlagRule{Requires("input")}},
		{Name: "input", Value: &input, Rules: []FlagRule{NotEmpty()}},
	}
	if err := ValidateConfig(specs); err != nil {
		t.Fatalf("expected Requires to pass once the dependency is satisfied, got %v", err)
	}
}

func TestEnvConfigValidateRejectsMissingFields(t *testing.T) {
	c := EnvConfig{WireEndpoint: DefaultWireEndpoint}.WithDefaults()
	if err := c.Validate(); err == nil {
		t.Fatal("expected missing WireAuth/ChainRPCURL to fail validation")
	}
	kind, ok := KindOf(c.Validate())
	if !ok || kind != KindConfigMissing {
		t.Fatalf("expected KindConfigMissing, got %v", c.Validate())
	}
}

func TestEnvConfigWithDefaultsFillsZeroDeadlines(t *testing.T) {
	c := EnvConfig{
		WireEndpoint: "wss://example",
		WireAuth:     "token",
		ChainRPCURL:  "https://rpc.example",
	}.WithDefaults()

	if c.FirstQuoteDeadline != DefaultFirstQuoteDeadline {
		t.Fatalf("got %s, want default %s", c.FirstQuoteDeadline, DefaultFirstQuoteDeadline)
	}
	if c.RPCDeadline != DefaultRPCDeadline {
		t.Fatalf("got %s, want default %s", c.RPCDeadline, DefaultRPCDeadline)
	}
	if c.ConfirmPollEvery != DefaultConfirmPollEvery {
		t.Fatalf("got %s, want default %s", c.ConfirmPollEvery, DefaultConfirmPollEvery)
	}
	if c.ConfirmTimeout != DefaultConfirmTimeout {
		t.Fatalf("got %s, want default %s", c.ConfirmTimeout, DefaultConfirmTimeout)
	}

	if err := c.Validate(); err != nil {
		t.Fatalf("expected a fully defaulted config to validate, got %v", err)
	}
}

func TestEnvConfigWithDefaultsPreservesExplicitDeadline(t *testing.T) {
	custom := 42 * time.Second
	c := EnvConfig{
		WireEndpoint:       "wss://example",
		WireAuth:           "token",
		ChainRPCURL:        "https://rpc.example",
		FirstQuoteDeadline: custom,
	}.WithDefaults()

	if c.FirstQuoteDeadline != custom {
		t.Fatalf("got %s, want explicit %s preserved", c.FirstQuoteDeadline, custom)
	}
}
