// Command swap is the CLI edge of the core: load .env, bind flags/env via
// viper, resolve the delegate keypair, and hand off to swap.Run. Usage
// errors talk to the terminal the teacher's way (log.Fatalf); errors the
// core returns are printed as they come, and a *swap.Error of kind
// user_cancelled is reported as "cancelled".
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/big"
	"os"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	swap "ridgeline/titan-swap"
	"ridgeline/titan-swap/internal/delegation"
	"ridgeline/titan-swap/internal/display"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		log.Fatalf("%v", err)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "swap",
		Short: "Stream ranked swap quotes and submit the winner",
		RunE:  runSwap,
	}

	cmd.Flags().String("hotwallet", "", "Path to the delegate keygen file used to sign transactions")
	cmd.Flags().String("rpc", "", "Chain RPC endpoint (overrides CHAIN_RPC_URL)")
	cmd.Flags().String("wire-endpoint", "", "Quote-stream WebSocket endpoint (overrides WIRE_ENDPOINT)")
	cmd.Flags().String("input", "", "Input token symbol or mint address")
	cmd.Flags().String("output", "", "Output token symbol or mint address")
	cmd.Flags().String("amount", "", "Input amount, in human units (decimal)")
	cmd.Flags().Bool("no-tui", false, "Render a single final summary instead of a live terminal table")
	cmd.Flags().Duration("first-quote-deadline", swap.DefaultFirstQuoteDeadline, "Deadline for the first usable quote batch")
	cmd.Flags().Duration("rpc-deadline", swap.DefaultRPCDeadline, "Per-RPC-call deadline")
	cmd.Flags().Duration("confirm-poll-every", swap.DefaultConfirmPollEvery, "Confirmation poll interval")
	cmd.Flags().Duration("confirm-timeout", swap.DefaultConfirmTimeout, "Confirmation poll deadline")

	v := viper.New()
	v.SetEnvPrefix("")
	v.AutomaticEnv()
	_ = v.BindPFlag("hotwallet", cmd.Flags().Lookup("hotwallet"))
	_ = v.BindPFlag("rpc", cmd.Flags().Lookup("rpc"))
	_ = v.BindPFlag("wire-endpoint", cmd.Flags().Lookup("wire-endpoint"))
	cmd.SetContext(context.WithValue(context.Background(), viperKey{}, v))

	return cmd
}

type viperKey struct{}

func runSwap(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: failed to load .env: %v", err)
	}

	v, _ := cmd.Context().Value(viperKey{}).(*viper.Viper)
	if v == nil {
		v = viper.New()
		v.AutomaticEnv()
	}

	hotwalletPath, _ := cmd.Flags().GetString("hotwallet")
	inputSym, _ := cmd.Flags().GetString("input")
	outputSym, _ := cmd.Flags().GetString("output")
	amount, _ := cmd.Flags().GetString("amount")
	noTUI, _ := cmd.Flags().GetBool("no-tui")
	firstQuoteDeadline, _ := cmd.Flags().GetDuration("first-quote-deadline")
	rpcDeadline, _ := cmd.Flags().GetDuration("rpc-deadline")
	confirmPollEvery, _ := cmd.Flags().GetDuration("confirm-poll-every")
	confirmTimeout, _ := cmd.Flags().GetDuration("confirm-timeout")
	rpcFlag, _ := cmd.Flags().GetString("rpc")
	wireFlag, _ := cmd.Flags().GetString("wire-endpoint")

	validations := []swap.FlagSpec{
		{Name: "hotwallet", Value: &hotwalletPath, Rules: []swap.FlagRule{swap.NotEmpty()}},
		{Name: "input", Value: &inputSym, Rules: []swap.FlagRule{swap.NotEmpty()}},
		{Name: "output", Value: &outputSym, Rules: []swap.FlagRule{swap.NotEmpty()}},
		{Name: "amount", Value: &amount, Rules: []swap.FlagRule{swap.NotEmpty()}},
	}
	swap.ValidateConfigOrExit(nil, validations)

	rpcURL := firstNonEmpty(rpcFlag, v.GetString("CHAIN_RPC_URL"))
	wireEndpoint := firstNonEmpty(wireFlag, v.GetString("WIRE_ENDPOINT"))

	cfg := swap.EnvConfig{
		WireEndpoint:       wireEndpoint,
		WireAuth:           v.GetString("WIRE_AUTH_TOKEN"),
		ChainRPCURL:        rpcURL,
		FirstQuoteDeadline: firstQuoteDeadline,
		RPCDeadline:        rpcDeadline,
		ConfirmPollEvery:   confirmPollEvery,
		ConfirmTimeout:     confirmTimeout,
	}

	payer, err := solana.PrivateKeyFromSolanaKeygenFile(hotwalletPath)
	if err != nil {
		log.Fatalf("failed to load delegate keypair from %s: %v", hotwalletPath, err)
	}
	// The delegate key lives in memory only for the duration of this one
	// swap; zeroing it here (rather than relying on GC) bounds how long the
	// raw key material sits in a live stack frame after use.
	defer zeroizeKey(&payer)

	del := delegation.Delegation{
		DelegateKeypair: payer,
		AllowedPrograms: map[string]struct{}{"Titan": {}},
		MaxSOLPerTx:     hugeCapDefault(),
		MaxTokenPerTx:   hugeCapDefault(),
		ExpiresAt:       time.Now().Add(3 * time.Minute),
	}

	logEntry := logrus.NewEntry(logrus.StandardLogger()).WithField("component", "cmd.swap")

	var disp swap.Display
	if noTUI || !isTTY(os.Stdout) {
		disp = &display.Plain{
			InputSymbol:  inputSym,
			OutputSymbol: outputSym,
			Print: func(s string) {
				fmt.Fprintln(os.Stdout, s)
			},
		}
	} else {
		disp = &display.TUI{InputSymbol: inputSym, OutputSymbol: outputSym}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	result, err := swap.Run(ctx, swap.Params{
		Config:                cfg,
		Delegation:            del,
		InputSymbolOrAddress:  inputSym,
		OutputSymbolOrAddress: outputSym,
		AmountHuman:           amount,
		FeePayer:              payer.PublicKey(),
		Display:               disp,
		Log:                   logEntry,
	})
	if err != nil {
		var swapErr *swap.Error
		if errors.As(err, &swapErr) && swapErr.Kind == swap.KindUserCancelled {
			fmt.Fprintln(os.Stdout, "cancelled")
			return nil
		}
		return err
	}

	fmt.Fprintf(os.Stdout, "ok: %s (status=%s)\n%s\n%s\n",
		truncateMiddle(result.Signature.String(), 6, 6), result.Status, result.Signature, result.ExplorerURL)
	return nil
}

// truncateMiddle shortens s to its first head and last tail runes, joined by
// an ellipsis, so the success line stays readable next to the full signature
// printed on the line below it. s passes through unchanged if it's already
// short enough that truncating wouldn't save anything.
func truncateMiddle(s string, head, tail int) string {
	rs := []rune(s)
	if len(rs) <= head+tail {
		return s
	}
	return string(rs[:head]) + "…" + string(rs[len(rs)-tail:])
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// hugeCapDefault is the CLI's placeholder delegation cap until a real
// per-session cap is wired in from an enclosing agent's policy layer; this
// command is a stand-in caller for the core, not the core's policy source.
func hugeCapDefault() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), 64)
}

func zeroizeKey(key *solana.PrivateKey) {
	for i := range *key {
		(*key)[i] = 0
	}
}

func isTTY(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
