package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/consensys/gnark/logger"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	provablevm "github.com/PolyhedraZK/ProvableVM"
	"github.com/PolyhedraZK/ProvableVM/field"
	"github.com/PolyhedraZK/ProvableVM/keystore"
	"github.com/PolyhedraZK/ProvableVM/loader"
	"github.com/PolyhedraZK/ProvableVM/proof"
	"github.com/PolyhedraZK/ProvableVM/vm"
)

var errRejected = errors.New("proof rejected")

type options struct {
	maxSteps   int
	maxProgram int
	stackDepth int
	memorySize int
	logLevel   string
	keysDir    string

	prove     bool
	proofFile string
	traceFile string

	output     string
	commitment string
}

func (o *options) config() (vm.Config, error) {
	return vm.NewConfig(
		vm.WithMaxSteps(o.maxSteps),
		vm.WithMaxProgramLen(o.maxProgram),
		vm.WithStackDepth(o.stackDepth),
		vm.WithMemorySize(o.memorySize),
	)
}

func (o *options) engine() (*provablevm.Engine, *keystore.Dir, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, nil, err
	}
	store, err := keystore.Open(o.keysDir)
	if err != nil {
		return nil, nil, err
	}
	e, err := provablevm.New(provablevm.WithConfig(cfg), provablevm.WithKeyStore(store))
	if err != nil {
		return nil, nil, err
	}
	return e, store, nil
}

func newRootCmd(stderr io.Writer) *cobra.Command {
	o := &options{}
	root := &cobra.Command{
		Use:           "provablevm",
		Short:         "Run stack machine programs and prove their execution",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			lvl, err := zerolog.ParseLevel(o.logLevel)
			if err != nil {
				return err
			}
			logger.Set(zerolog.New(zerolog.ConsoleWriter{Out: stderr, TimeFormat: "15:04:05"}).
				Level(lvl).With().Timestamp().Logger())
			return nil
		},
	}

	def := vm.DefaultConfig()
	flags := root.PersistentFlags()
	flags.IntVar(&o.maxSteps, "max-steps", def.MaxSteps, "Trace length the circuit is built for.")
	flags.IntVar(&o.maxProgram, "max-program", def.MaxProgramLen, "Number of program slots in the circuit.")
	flags.IntVar(&o.stackDepth, "stack", def.StackDepth, "Operand stack depth.")
	flags.IntVar(&o.memorySize, "memory", def.MemorySize, "Number of memory cells.")
	flags.StringVar(&o.logLevel, "log-level", "info", "One of trace, debug, info, warn, error.")
	flags.StringVar(&o.keysDir, "keys", "keys", "Directory holding proving and verifying keys.")

	root.AddCommand(setupCmd(o), runCmd(o), verifyCmd(o))
	return root
}

func setupCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Generate and store the key pair for the configured shape",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := o.config()
			if err != nil {
				return err
			}
			store, err := keystore.Open(o.keysDir)
			if err != nil {
				return err
			}
			pk, vk, err := proof.Setup(cfg)
			if err != nil {
				return err
			}
			if err := store.Save(cfg, pk, vk); err != nil {
				return err
			}
			fp := vk.Fingerprint()
			fmt.Fprintf(cmd.OutOrStdout(), "%s\n%s\nverifying key %x\n", store.ProvingKeyPath(cfg), store.VerifyingKeyPath(cfg), fp)
			return nil
		},
	}
}

func runCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run PROGRAM",
		Short: "Execute a program from the empty state, optionally proving the run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			e, _, err := o.engine()
			if err != nil {
				return err
			}
			x, err := e.Execute(program, vm.NewState(e.Config()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "final: %s\n", x.Final)
			fmt.Fprintf(out, "output: %s\n", field.String(x.Output()))
			fmt.Fprintf(out, "steps: %d\n", x.Trace.Executed())
			fmt.Fprintf(out, "commitment: %s\n", field.String(x.Commitment))

			if o.traceFile != "" {
				data, err := vm.EncodeTrace(e.Config(), x.Trace)
				if err != nil {
					return err
				}
				if err := os.WriteFile(o.traceFile, data, 0o644); err != nil {
					return err
				}
			}
			if !o.prove {
				return nil
			}
			p, err := e.Prove(x)
			if err != nil {
				return err
			}
			data, err := p.MarshalBinary()
			if err != nil {
				return err
			}
			path := o.proofFile
			if path == "" {
				path = args[0] + ".proof"
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(out, "proof: %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&o.prove, "prove", false, "Generate a proof of the run.")
	cmd.Flags().StringVar(&o.proofFile, "proof", "", "Proof output file, defaults to PROGRAM.proof.")
	cmd.Flags().StringVar(&o.traceFile, "trace", "", "Write the execution trace as CBOR to this file.")
	return cmd
}

func verifyCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify PROGRAM PROOF",
		Short: "Check a proof that PROGRAM halts with the given output",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			program, err := loader.LoadFile(args[0])
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[1])
			if err != nil {
				return err
			}
			var p proof.Proof
			if err := p.UnmarshalBinary(data); err != nil {
				return err
			}
			output, err := field.Parse(o.output)
			if err != nil {
				return err
			}
			var opts []provablevm.VerifyOption
			if o.commitment != "" {
				c, err := field.Parse(o.commitment)
				if err != nil {
					return fmt.Errorf("commitment: %w", err)
				}
				opts = append(opts, provablevm.WithCommitment(c))
			}
			e, store, err := o.engine()
			if err != nil {
				return err
			}
			vk, err := store.LoadVerifyingKey(e.Config())
			if err != nil {
				return err
			}
			ok, err := e.VerifyWithKey(vk, &p, program, vm.NewState(e.Config()), output, opts...)
			if err != nil {
				return err
			}
			if !ok {
				return errRejected
			}
			fmt.Fprintln(cmd.OutOrStdout(), "proof accepted")
			return nil
		},
	}
	cmd.Flags().StringVar(&o.output, "output", "", "Expected top of the final stack.")
	cmd.Flags().StringVar(&o.commitment, "commitment", "", "Expected trace commitment, defaults to the one in the proof.")
	if err := cmd.MarkFlagRequired("output"); err != nil {
		panic(err)
	}
	return cmd
}

// run executes the command line and returns the process exit code.
func run(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(stderr, err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
